package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/example/sellerspro/internal/models"
	"github.com/example/sellerspro/internal/utils"
)

// UserSummary is what a successful verification resolves to.
type UserSummary struct {
	ID           uint
	TelegramID   string
	FirstName    string
	LastName     string
	Subscription models.Subscription
}

// OTPService issues and consumes one-time passcodes.
//
// Codes are not unique across identities: verification matches on the code
// value alone, so the code space must stay wide enough that simultaneously
// valid codes practically never collide. Issuing a new code leaves earlier
// unconsumed codes for the same identity valid until they expire.
type OTPService struct {
	db       *gorm.DB
	ttl      time.Duration
	length   int
	clock    Clock
	generate func() (string, error)
}

// NewOTPService constructs an OTPService producing codes of the given length
// that stay valid for ttl.
func NewOTPService(db *gorm.DB, ttl time.Duration, length int, clock Clock) *OTPService {
	return &OTPService{
		db:     db,
		ttl:    ttl,
		length: length,
		clock:  clock,
		generate: func() (string, error) {
			return utils.NumericCode(length)
		},
	}
}

// Length is the number of digits in issued codes.
func (s *OTPService) Length() int {
	return s.length
}

// TTL is how long an issued code stays valid.
func (s *OTPService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a fresh code for externalID.
func (s *OTPService) Issue(ctx context.Context, externalID string) (string, time.Time, error) {
	code, err := s.generate()
	if err != nil {
		return "", time.Time{}, err
	}

	now := s.clock.now()
	otp := models.OTP{
		TelegramID: externalID,
		Code:       code,
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(&otp).Error; err != nil {
		return "", time.Time{}, storageErr("issue otp", err)
	}

	return code, otp.ExpiresAt, nil
}

// Verify consumes code and returns the owning user. Unknown, consumed and
// expired codes all yield ErrInvalidOrExpiredCode. Consumption is a
// conditional update on consumed = false, so among concurrent callers
// presenting the same code exactly one wins.
func (s *OTPService) Verify(ctx context.Context, code string) (*UserSummary, error) {
	return s.VerifyThen(ctx, code, nil)
}

// VerifyThen is Verify with then running inside the consuming transaction
// once the owner is known. An error from then rolls the consumption back.
func (s *OTPService) VerifyThen(ctx context.Context, code string, then func(tx *gorm.DB, user *UserSummary) error) (*UserSummary, error) {
	now := s.clock.now()
	var summary *UserSummary

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var otp models.OTP
		err := tx.Where("code = ? AND consumed = ? AND expires_at > ?", code, false, now).
			Order("id desc").
			First(&otp).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidOrExpiredCode
		}
		if err != nil {
			return storageErr("find otp", err)
		}

		res := tx.Model(&models.OTP{}).
			Where("id = ? AND consumed = ?", otp.ID, false).
			Updates(map[string]interface{}{"consumed": true, "consumed_at": now})
		if res.Error != nil {
			return storageErr("consume otp", res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrInvalidOrExpiredCode
		}

		var user models.User
		err = tx.Where("telegram_id = ?", otp.TelegramID).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No owner: roll back so the code is not burnt.
			return ErrInvalidOrExpiredCode
		}
		if err != nil {
			return storageErr("find otp owner", err)
		}

		summary = &UserSummary{
			ID:           user.ID,
			TelegramID:   user.TelegramID,
			FirstName:    user.FirstName,
			LastName:     user.LastName,
			Subscription: user.Subscription,
		}
		if then != nil {
			return then(tx, summary)
		}
		return nil
	})
	if err != nil {
		var storage *StorageError
		if errors.Is(err, ErrInvalidOrExpiredCode) || errors.As(err, &storage) {
			return nil, err
		}
		return nil, storageErr("verify otp", err)
	}

	return summary, nil
}
