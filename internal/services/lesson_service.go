package services

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/sellerspro/internal/models"
)

// LessonService stores course content metadata.
type LessonService struct {
	db *gorm.DB
}

// NewLessonService constructs a LessonService.
func NewLessonService(db *gorm.DB) *LessonService {
	return &LessonService{db: db}
}

// Save creates the lesson or replaces its content if the id already exists.
func (s *LessonService) Save(ctx context.Context, lesson *models.Lesson) error {
	if lesson.Resources == nil {
		lesson.Resources = []models.LessonLink{}
	}
	if lesson.Downloads == nil {
		lesson.Downloads = []models.LessonLink{}
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "intro", "video_id", "summary", "resources", "downloads", "updated_at",
		}),
	}).Create(lesson).Error
	if err != nil {
		return storageErr("save lesson", err)
	}
	return nil
}

// List returns all lessons ordered by id.
func (s *LessonService) List(ctx context.Context) ([]models.Lesson, error) {
	lessons := make([]models.Lesson, 0)
	if err := s.db.WithContext(ctx).Order("id asc").Find(&lessons).Error; err != nil {
		return nil, storageErr("list lessons", err)
	}
	return lessons, nil
}

// Get loads a single lesson.
func (s *LessonService) Get(ctx context.Context, id uint) (*models.Lesson, error) {
	var lesson models.Lesson
	if err := s.db.WithContext(ctx).First(&lesson, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLessonNotFound
		}
		return nil, storageErr("get lesson", err)
	}
	return &lesson, nil
}
