package models

import "time"

// Lead sources and statuses.
const (
	LeadSourceWebsite = "website"
	LeadSourceAmoCRM  = "amocrm"

	LeadStatusNew = "new"
)

// Lead is a prospective customer captured from the landing page or the CRM.
type Lead struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"not null" json:"name"`
	Phone      string    `gorm:"index" json:"phone"`
	Email      string    `json:"email"`
	Source     string    `gorm:"not null;index:idx_leads_source_external" json:"source"`
	ExternalID string    `gorm:"index:idx_leads_source_external" json:"external_id,omitempty"`
	Status     string    `gorm:"not null;default:new" json:"status"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
}
