package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/example/sellerspro/internal/models"
	"github.com/example/sellerspro/internal/utils"
)

const maxTokenAttempts = 3

// SessionService mints bearer tokens for verified users.
type SessionService struct {
	db       *gorm.DB
	ttl      time.Duration
	clock    Clock
	generate func() (string, error)
}

// NewSessionService constructs a SessionService whose tokens live for ttl.
func NewSessionService(db *gorm.DB, ttl time.Duration, clock Clock) *SessionService {
	return &SessionService{db: db, ttl: ttl, clock: clock, generate: utils.RandomToken}
}

// Create persists a new session for userID and returns its token. The login
// is recorded and the user's last-login stamp updated in the same
// transaction. A token collision is rejected by the unique index and retried
// with a fresh token, never overwriting the existing session.
func (s *SessionService) Create(ctx context.Context, userID uint, ip string) (string, time.Time, error) {
	return s.CreateTx(s.db.WithContext(ctx), userID, ip)
}

// CreateTx is Create running on tx. Inside an open transaction each attempt
// runs in a savepoint, so a rejected token leaves the outer transaction usable.
func (s *SessionService) CreateTx(tx *gorm.DB, userID uint, ip string) (string, time.Time, error) {
	now := s.clock.now()
	expiresAt := now.Add(s.ttl)

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := s.generate()
		if err != nil {
			return "", time.Time{}, err
		}

		err = tx.Transaction(func(tx *gorm.DB) error {
			session := models.Session{Token: token, UserID: userID, CreatedAt: now, ExpiresAt: expiresAt}
			if err := tx.Create(&session).Error; err != nil {
				return err
			}

			if err := tx.Create(&models.LoginHistory{UserID: userID, IPAddress: ip, LoginTime: now}).Error; err != nil {
				return err
			}

			return tx.Model(&models.User{}).Where("id = ?", userID).Update("last_login_at", now).Error
		})
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		if err != nil {
			return "", time.Time{}, storageErr("create session", err)
		}

		return token, expiresAt, nil
	}

	return "", time.Time{}, storageErr("create session", gorm.ErrDuplicatedKey)
}
