package models

import "time"

// OTP is a one-time passcode delivered to a Telegram identity.
// Codes are looked up by value across all identities.
type OTP struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	TelegramID string     `gorm:"index;not null" json:"telegram_id"`
	Code       string     `gorm:"index;not null" json:"-"`
	ExpiresAt  time.Time  `gorm:"index;not null" json:"expires_at"`
	Consumed   bool       `gorm:"not null;default:false" json:"consumed"`
	ConsumedAt *time.Time `json:"consumed_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TableName implements the GORM tabler interface.
func (OTP) TableName() string { return "otps" }
