package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/sellerspro/internal/models"
)

// Profile carries the display attributes the bot learns about an identity.
type Profile struct {
	FirstName   string
	LastName    string
	Username    string
	PhoneNumber string
}

// manualIDPrefix marks users an admin whitelisted before they ever opened
// the bot. The placeholder is replaced by the real Telegram id on first
// contact from the same phone number.
const manualIDPrefix = "manual_"

// NormalizePhone reduces a phone number to "+" followed by its digits.
func NormalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return ""
	}
	return "+" + digits.String()
}

// IdentityService maps Telegram identities to internal users.
type IdentityService struct {
	db    *gorm.DB
	clock Clock
}

// NewIdentityService constructs an IdentityService. A nil clock means time.Now.
func NewIdentityService(db *gorm.DB, clock Clock) *IdentityService {
	return &IdentityService{db: db, clock: clock}
}

// ResolveOrCreate returns the internal id for externalID, inserting a user on
// first sight and refreshing profile attributes and last-seen otherwise.
// The upsert and the id read share one transaction.
func (s *IdentityService) ResolveOrCreate(ctx context.Context, externalID string, profile Profile) (uint, error) {
	now := s.clock.now()
	user := models.User{
		TelegramID:   externalID,
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		Username:     profile.Username,
		PhoneNumber:  profile.PhoneNumber,
		Subscription: models.Subscription{Type: models.SubscriptionBasic},
		LastSeenAt:   &now,
	}

	var stored models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "telegram_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"first_name", "last_name", "username", "phone_number", "last_seen_at", "updated_at",
			}),
		}).Create(&user).Error
		if err != nil {
			return err
		}
		return tx.Select("id").Where("telegram_id = ?", externalID).First(&stored).Error
	})
	if err != nil {
		return 0, storageErr("resolve identity", err)
	}

	return stored.ID, nil
}

// Exists reports whether a user is registered for externalID.
func (s *IdentityService) Exists(ctx context.Context, externalID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("telegram_id = ?", externalID).
		Count(&count).Error; err != nil {
		return false, storageErr("lookup identity", err)
	}
	return count > 0, nil
}

// GetUser loads a user by internal id.
func (s *IdentityService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storageErr("get user", err)
	}
	return &user, nil
}

// CheckAccess reports whether the user's subscription is currently usable.
// A subscription found past its end date is switched off in storage.
func (s *IdentityService) CheckAccess(ctx context.Context, user *models.User) (bool, error) {
	now := s.clock.now()
	sub := user.Subscription

	if sub.Active && sub.EndDate != nil && !sub.EndDate.After(now) {
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("subscription_active", false).Error; err != nil {
			return false, storageErr("expire subscription", err)
		}
		user.Subscription.Active = false
	}

	return user.Subscription.HasAccess(now), nil
}

// UpdateSubscription sets the plan for a user, running for days from now.
func (s *IdentityService) UpdateSubscription(ctx context.Context, userID uint, plan string, days int, active bool) error {
	start := s.clock.now()
	end := start.Add(time.Duration(days) * 24 * time.Hour)

	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"subscription_type":       plan,
			"subscription_active":     active,
			"subscription_start_date": start,
			"subscription_end_date":   end,
		})
	if res.Error != nil {
		return storageErr("update subscription", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListUsers returns users newest first along with the total count.
func (s *IdentityService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, int64, error) {
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, storageErr("count users", err)
	}

	var users []models.User
	if err := db.Order("created_at desc, id desc").
		Limit(limit).Offset(offset).
		Find(&users).Error; err != nil {
		return nil, 0, storageErr("list users", err)
	}

	return users, total, nil
}

// WhitelistEntry is an admin-created user awaiting their first bot contact.
type WhitelistEntry struct {
	PhoneNumber string
	FirstName   string
	LastName    string
	TelegramID  string
	Days        int
}

// AddWhitelisted creates a user with an active premium subscription running
// for entry.Days. Without a Telegram id the user gets a placeholder that
// ClaimWhitelisted later swaps for the real one.
func (s *IdentityService) AddWhitelisted(ctx context.Context, entry WhitelistEntry) (*models.User, error) {
	now := s.clock.now()
	phone := NormalizePhone(entry.PhoneNumber)
	telegramID := entry.TelegramID
	if telegramID == "" {
		telegramID = fmt.Sprintf("%s%d", manualIDPrefix, now.UnixNano())
	}
	end := now.Add(time.Duration(entry.Days) * 24 * time.Hour)

	user := models.User{
		TelegramID:  telegramID,
		FirstName:   entry.FirstName,
		LastName:    entry.LastName,
		PhoneNumber: phone,
		Subscription: models.Subscription{
			Type:      models.SubscriptionPremium,
			Active:    true,
			StartDate: &now,
			EndDate:   &end,
		},
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).
			Where("phone_number = ? OR telegram_id = ?", phone, telegramID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUserExists
		}
		return tx.Create(&user).Error
	})
	switch {
	case errors.Is(err, ErrUserExists), errors.Is(err, gorm.ErrDuplicatedKey):
		return nil, ErrUserExists
	case err != nil:
		return nil, storageErr("add whitelisted user", err)
	}

	return &user, nil
}

// ClaimWhitelisted attaches externalID to a whitelisted user registered
// under phone. It reports false when there is nothing to claim or
// externalID already has its own user.
func (s *IdentityService) ClaimWhitelisted(ctx context.Context, phone, externalID string) (bool, error) {
	phone = NormalizePhone(phone)
	if phone == "" {
		return false, nil
	}

	claimed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("telegram_id = ?", externalID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		var placeholder models.User
		err := tx.Where("phone_number = ? AND telegram_id LIKE ?", phone, manualIDPrefix+"%").
			Order("id").
			First(&placeholder).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		res := tx.Model(&models.User{}).
			Where("id = ? AND telegram_id = ?", placeholder.ID, placeholder.TelegramID).
			Update("telegram_id", externalID)
		if res.Error != nil {
			return res.Error
		}
		claimed = res.RowsAffected == 1
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("claim whitelisted user", err)
	}

	return claimed, nil
}

// DeleteUser removes a user together with their sessions, login history,
// progress and passcodes.
func (s *IdentityService) DeleteUser(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id", "telegram_id").First(&user, id).Error; err != nil {
			return err
		}

		for _, model := range []interface{}{&models.Session{}, &models.LoginHistory{}, &models.LessonProgress{}} {
			if err := tx.Where("user_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("telegram_id = ?", user.TelegramID).Delete(&models.OTP{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.User{}, id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return storageErr("delete user", err)
	}
	return nil
}
