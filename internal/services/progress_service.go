package services

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/sellerspro/internal/models"
)

// ProgressService records lesson completion per user.
type ProgressService struct {
	db    *gorm.DB
	clock Clock
}

// NewProgressService constructs a ProgressService.
func NewProgressService(db *gorm.DB, clock Clock) *ProgressService {
	return &ProgressService{db: db, clock: clock}
}

// MarkCompleted upserts the (user, lesson) row in a single statement. The
// first completion instant is kept on repeats.
func (s *ProgressService) MarkCompleted(ctx context.Context, userID, lessonID uint) error {
	now := s.clock.now()
	record := models.LessonProgress{
		UserID:      userID,
		LessonID:    lessonID,
		Completed:   true,
		CompletedAt: &now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "lesson_id"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "completed"}, Value: true},
			{Column: clause.Column{Name: "completed_at"}, Value: gorm.Expr("COALESCE(lesson_progress.completed_at, excluded.completed_at)")},
		},
	}).Create(&record).Error
	if err != nil {
		return storageErr("mark lesson completed", err)
	}
	return nil
}

// Progress returns the user's records ordered by lesson id.
func (s *ProgressService) Progress(ctx context.Context, userID uint) ([]models.LessonProgress, error) {
	records := make([]models.LessonProgress, 0)
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("lesson_id asc").
		Find(&records).Error; err != nil {
		return nil, storageErr("load progress", err)
	}
	return records, nil
}
