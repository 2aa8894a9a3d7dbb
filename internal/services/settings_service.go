package services

import (
	"context"
	"fmt"
	"strings"

	"boekhouding/internal/core"
	"boekhouding/internal/storage"
)

// SettingsPatch carries a partial settings update. Nil fields keep their
// current value.
type SettingsPatch struct {
	CompanyName            *string `json:"companyName"`
	ContactPerson          *string `json:"contactPerson"`
	Address                *string `json:"address"`
	PostalCode             *string `json:"postalCode"`
	City                   *string `json:"city"`
	Phone                  *string `json:"phone"`
	Email                  *string `json:"email"`
	Website                *string `json:"website"`
	KvkNumber              *string `json:"kvkNumber"`
	VatID                  *string `json:"vatId"`
	IBAN                   *string `json:"iban"`
	DefaultPaymentTermDays *int    `json:"defaultPaymentTermDays"`
	FiscalYear             *int    `json:"fiscalYear"`
}

// Apply returns s with the non-nil patch fields merged in.
func (p SettingsPatch) Apply(s core.CompanySettings) core.CompanySettings {
	str := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	str(&s.CompanyName, p.CompanyName)
	str(&s.ContactPerson, p.ContactPerson)
	str(&s.Address, p.Address)
	str(&s.PostalCode, p.PostalCode)
	str(&s.City, p.City)
	str(&s.Phone, p.Phone)
	str(&s.Email, p.Email)
	str(&s.Website, p.Website)
	str(&s.KvkNumber, p.KvkNumber)
	str(&s.VatID, p.VatID)
	str(&s.IBAN, p.IBAN)
	if p.DefaultPaymentTermDays != nil {
		s.DefaultPaymentTermDays = *p.DefaultPaymentTermDays
	}
	if p.FiscalYear != nil {
		s.FiscalYear = *p.FiscalYear
	}
	return s
}

type SettingsService struct {
	store storage.SettingsStore
}

func NewSettingsService(store storage.SettingsStore) *SettingsService {
	return &SettingsService{store: store}
}

func (s *SettingsService) Get(ctx context.Context) (core.CompanySettings, error) {
	return s.store.GetOrCreateSettings(ctx)
}

func (s *SettingsService) Update(ctx context.Context, patch SettingsPatch) (core.CompanySettings, error) {
	current, err := s.store.GetOrCreateSettings(ctx)
	if err != nil {
		return core.CompanySettings{}, fmt.Errorf("load settings: %w", err)
	}
	next := patch.Apply(current)
	if err := next.Validate(); err != nil {
		return core.CompanySettings{}, err
	}
	updated, err := s.store.UpdateSettings(ctx, next)
	if err != nil {
		return core.CompanySettings{}, fmt.Errorf("update settings: %w", err)
	}
	return updated, nil
}
