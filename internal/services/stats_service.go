package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/example/sellerspro/internal/models"
)

// Stats are the aggregate figures shown on the admin dashboard.
type Stats struct {
	TotalUsers          int64 `json:"total_users"`
	ActiveSubscriptions int64 `json:"active_subscriptions"`
	CompletedLessons    int64 `json:"completed_lessons"`
	LoginsToday         int64 `json:"logins_today"`
}

// StatsService computes read-only aggregates over users, logins and progress.
type StatsService struct {
	db    *gorm.DB
	clock Clock
}

// NewStatsService constructs a StatsService.
func NewStatsService(db *gorm.DB, clock Clock) *StatsService {
	return &StatsService{db: db, clock: clock}
}

// Collect gathers the dashboard counters. "Today" starts at UTC midnight.
// Subscriptions past their end date are not counted even while still
// flagged active.
func (s *StatsService) Collect(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	var stats Stats

	if err := db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, storageErr("count users", err)
	}

	now := s.clock.now()
	if err := db.Model(&models.User{}).
		Where("subscription_active = ?", true).
		Where("(subscription_end_date IS NULL OR subscription_end_date > ?)", now).
		Count(&stats.ActiveSubscriptions).Error; err != nil {
		return nil, storageErr("count subscriptions", err)
	}

	if err := db.Model(&models.LessonProgress{}).
		Where("completed = ?", true).
		Count(&stats.CompletedLessons).Error; err != nil {
		return nil, storageErr("count completed lessons", err)
	}

	midnight := now.Truncate(24 * time.Hour)
	if err := db.Model(&models.LoginHistory{}).
		Where("login_time >= ?", midnight).
		Count(&stats.LoginsToday).Error; err != nil {
		return nil, storageErr("count logins", err)
	}

	return &stats, nil
}
