package models

import (
	"time"
)

// Subscription plans.
const (
	SubscriptionBasic   = "basic"
	SubscriptionPremium = "premium"
)

// User is a learner known by their Telegram identity.
type User struct {
	BaseModel
	TelegramID   string       `gorm:"uniqueIndex;not null" json:"telegram_id"`
	FirstName    string       `json:"first_name"`
	LastName     string       `json:"last_name"`
	Username     string       `json:"username"`
	PhoneNumber  string       `json:"phone_number"`
	Subscription Subscription `gorm:"embedded;embeddedPrefix:subscription_" json:"subscription"`
	LastLoginAt  *time.Time   `json:"last_login_at"`
	LastSeenAt   *time.Time   `json:"last_seen_at"`
}

// Subscription is the paid access state of a user.
type Subscription struct {
	Type      string     `gorm:"not null;default:basic" json:"type"`
	Active    bool       `gorm:"not null;default:false;index" json:"active"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

// HasAccess reports whether the subscription grants access at the given instant.
func (s Subscription) HasAccess(now time.Time) bool {
	return s.Active && (s.EndDate == nil || s.EndDate.After(now))
}

// LoginHistory records every successful sign-in.
type LoginHistory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	IPAddress string    `json:"ip_address"`
	LoginTime time.Time `gorm:"index;not null" json:"login_time"`
}

// TableName implements the GORM tabler interface.
func (LoginHistory) TableName() string { return "login_history" }
