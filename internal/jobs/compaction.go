package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/example/sellerspro/internal/models"
)

// Compactor deletes passcodes and sessions that expired more than retention
// ago. Expiry is always checked at read time, so this only reclaims space.
type Compactor struct {
	db        *gorm.DB
	retention time.Duration
	log       *logrus.Logger
	now       func() time.Time
}

// NewCompactor constructs a Compactor.
func NewCompactor(db *gorm.DB, retention time.Duration, log *logrus.Logger) *Compactor {
	return &Compactor{db: db, retention: retention, log: log, now: time.Now}
}

// Result counts the rows removed by one run.
type Result struct {
	OTPs     int64
	Sessions int64
}

// Run performs a single compaction pass.
func (c *Compactor) Run(ctx context.Context) (Result, error) {
	cutoff := c.now().UTC().Add(-c.retention)
	var result Result

	res := c.db.WithContext(ctx).Where("expires_at < ?", cutoff).Delete(&models.OTP{})
	if res.Error != nil {
		return result, fmt.Errorf("delete expired otps: %w", res.Error)
	}
	result.OTPs = res.RowsAffected

	res = c.db.WithContext(ctx).Where("expires_at < ?", cutoff).Delete(&models.Session{})
	if res.Error != nil {
		return result, fmt.Errorf("delete expired sessions: %w", res.Error)
	}
	result.Sessions = res.RowsAffected

	return result, nil
}

// Schedule starts a cron scheduler running the compactor on spec. Stop the
// returned scheduler on shutdown.
func (c *Compactor) Schedule(spec string) (*cron.Cron, error) {
	scheduler := cron.New()

	_, err := scheduler.AddFunc(spec, func() {
		result, err := c.Run(context.Background())
		if err != nil {
			c.log.WithError(err).Error("compaction failed")
			return
		}
		c.log.WithFields(logrus.Fields{
			"otps":     result.OTPs,
			"sessions": result.Sessions,
		}).Info("compaction finished")
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}

	scheduler.Start()
	return scheduler, nil
}
