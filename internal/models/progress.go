package models

import "time"

// LessonProgress marks a lesson as completed by a user. One row per (user, lesson).
type LessonProgress struct {
	ID          uint       `gorm:"primaryKey" json:"-"`
	UserID      uint       `gorm:"not null;uniqueIndex:ux_progress_user_lesson,priority:1" json:"-"`
	LessonID    uint       `gorm:"not null;uniqueIndex:ux_progress_user_lesson,priority:2" json:"lessonId"`
	Completed   bool       `gorm:"not null;default:false" json:"completed"`
	CompletedAt *time.Time `json:"completedAt"`
}

// TableName implements the GORM tabler interface.
func (LessonProgress) TableName() string { return "lesson_progress" }
