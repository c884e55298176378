package services

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/example/sellerspro/internal/models"
)

// AmoCRMLead is one lead carried by an amoCRM "leads[add]" webhook.
type AmoCRMLead struct {
	ExternalID string
	Name       string
	Phone      string
	Email      string
}

// LeadService stores leads from the landing page and the CRM.
type LeadService struct {
	db    *gorm.DB
	clock Clock
}

// NewLeadService constructs a LeadService.
func NewLeadService(db *gorm.DB, clock Clock) *LeadService {
	return &LeadService{db: db, clock: clock}
}

// Submit records a lead left on the website.
func (s *LeadService) Submit(ctx context.Context, name, phone string) (*models.Lead, error) {
	lead := models.Lead{
		Name:      strings.TrimSpace(name),
		Phone:     NormalizePhone(phone),
		Source:    models.LeadSourceWebsite,
		Status:    models.LeadStatusNew,
		CreatedAt: s.clock.now(),
	}
	if err := s.db.WithContext(ctx).Create(&lead).Error; err != nil {
		return nil, storageErr("submit lead", err)
	}
	return &lead, nil
}

// ImportAmoCRM stores CRM leads, skipping any already known by amoCRM id or
// phone number. It returns how many were created.
func (s *LeadService) ImportAmoCRM(ctx context.Context, leads []AmoCRMLead) (int, error) {
	created := 0
	for _, in := range leads {
		lead := models.Lead{
			Name:       in.Name,
			Phone:      NormalizePhone(in.Phone),
			Email:      strings.TrimSpace(in.Email),
			Source:     models.LeadSourceAmoCRM,
			ExternalID: in.ExternalID,
			Status:     models.LeadStatusNew,
			Notes:      fmt.Sprintf("Lead from amoCRM (ID: %s)", in.ExternalID),
			CreatedAt:  s.clock.now(),
		}
		if lead.Name == "" {
			lead.Name = "Unknown"
		}

		inserted := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			known, err := knownLead(tx, lead)
			if err != nil || known {
				return err
			}
			inserted = true
			return tx.Create(&lead).Error
		})
		if err != nil {
			return created, storageErr("import amocrm lead", err)
		}
		if inserted {
			created++
		}
	}
	return created, nil
}

func knownLead(tx *gorm.DB, lead models.Lead) (bool, error) {
	var count int64
	if lead.ExternalID != "" {
		if err := tx.Model(&models.Lead{}).
			Where("source = ? AND external_id = ?", lead.Source, lead.ExternalID).
			Count(&count).Error; err != nil || count > 0 {
			return count > 0, err
		}
	}
	if lead.Phone != "" {
		if err := tx.Model(&models.Lead{}).Where("phone = ?", lead.Phone).Count(&count).Error; err != nil {
			return false, err
		}
	}
	return count > 0, nil
}

// List returns leads newest first along with the total count.
func (s *LeadService) List(ctx context.Context, limit, offset int) ([]models.Lead, int64, error) {
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Lead{}).Count(&total).Error; err != nil {
		return nil, 0, storageErr("count leads", err)
	}

	leads := []models.Lead{}
	if err := db.Order("id desc").Limit(limit).Offset(offset).Find(&leads).Error; err != nil {
		return nil, 0, storageErr("list leads", err)
	}
	return leads, total, nil
}

// ParseAmoCRMWebhook extracts the added leads from an amoCRM webhook form.
// amoCRM flattens each lead into keys such as "leads[add][0][name]" and
// "leads[add][0][custom_fields][1][values][0][value]".
func ParseAmoCRMWebhook(form url.Values) []AmoCRMLead {
	byIndex := map[string]map[string]string{}
	for key, values := range form {
		rest, ok := strings.CutPrefix(key, "leads[add][")
		if !ok || len(values) == 0 {
			continue
		}
		index, field, ok := strings.Cut(rest, "]")
		if !ok || field == "" {
			continue
		}
		if byIndex[index] == nil {
			byIndex[index] = map[string]string{}
		}
		byIndex[index][field] = values[0]
	}

	indexes := make([]string, 0, len(byIndex))
	for index := range byIndex {
		indexes = append(indexes, index)
	}
	sort.Slice(indexes, func(i, j int) bool {
		a, errA := strconv.Atoi(indexes[i])
		b, errB := strconv.Atoi(indexes[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return indexes[i] < indexes[j]
	})

	leads := make([]AmoCRMLead, 0, len(indexes))
	for _, index := range indexes {
		fields := byIndex[index]
		leads = append(leads, AmoCRMLead{
			ExternalID: strings.TrimSpace(fields["[id]"]),
			Name:       strings.TrimSpace(fields["[name]"]),
			Phone:      amoCRMField(fields, "phone", "tel"),
			Email:      amoCRMField(fields, "email"),
		})
	}
	return leads
}

// amoCRMField finds a contact value either in a custom field whose code or
// name matches one of kinds, or in a plain key naming it.
func amoCRMField(fields map[string]string, kinds ...string) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	matches := func(s string) bool {
		s = strings.ToLower(s)
		for _, kind := range kinds {
			if strings.Contains(s, kind) {
				return true
			}
		}
		return false
	}

	for _, key := range keys {
		prefix, ok := strings.CutSuffix(key, "[code]")
		if !ok {
			prefix, ok = strings.CutSuffix(key, "[name]")
		}
		if !ok || !strings.HasPrefix(prefix, "[custom_fields]") || !matches(fields[key]) {
			continue
		}
		if value := strings.TrimSpace(fields[prefix+"[values][0][value]"]); value != "" {
			return value
		}
	}

	for _, key := range keys {
		if strings.HasPrefix(key, "[custom_fields]") || !matches(key) {
			continue
		}
		if value := strings.TrimSpace(fields[key]); value != "" {
			return value
		}
	}
	return ""
}
