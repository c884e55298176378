package models

import "time"

// Lesson holds course content metadata.
type Lesson struct {
	ID        uint         `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Title     string       `gorm:"not null" json:"title"`
	Intro     string       `json:"intro"`
	VideoID   string       `json:"video_id"`
	Summary   string       `json:"summary"`
	Resources []LessonLink `gorm:"serializer:json" json:"resources"`
	Downloads []LessonLink `gorm:"serializer:json" json:"downloads"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// LessonLink is a named external resource attached to a lesson.
type LessonLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
