package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"boekhouding/internal/core"
)

const settingsColumns = `company_name, contact_person, address, postal_code, city, phone, email,
	website, kvk_number, vat_id, iban, default_payment_term_days, fiscal_year, updated_at`

// GetOrCreateSettings returns the singleton settings row, inserting the
// defaults on first access. Concurrent first calls converge on one row.
func (r *Repository) GetOrCreateSettings(ctx context.Context) (core.CompanySettings, error) {
	s, err := r.loadSettings(ctx)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return core.CompanySettings{}, core.NewStorageError("get settings", err)
	}

	def := core.DefaultCompanySettings()
	def.UpdatedAt = time.Now().UTC()
	_, err = r.exec(ctx, r.db,
		r.dialect.insertIgnore("company_settings", "id, "+settingsColumns, 15),
		append([]any{1}, settingsArgs(def)...)...)
	if err != nil {
		return core.CompanySettings{}, core.NewStorageError("create settings", err)
	}
	slog.InfoContext(ctx, "Company settings initialized", "fiscal_year", def.FiscalYear)

	s, err = r.loadSettings(ctx)
	if err != nil {
		return core.CompanySettings{}, core.NewStorageError("get settings", err)
	}
	return s, nil
}

func (r *Repository) UpdateSettings(ctx context.Context, s core.CompanySettings) (core.CompanySettings, error) {
	if _, err := r.GetOrCreateSettings(ctx); err != nil {
		return core.CompanySettings{}, err
	}
	s.UpdatedAt = time.Now().UTC()
	_, err := r.exec(ctx, r.db, `UPDATE company_settings SET company_name = ?, contact_person = ?,
		address = ?, postal_code = ?, city = ?, phone = ?, email = ?, website = ?, kvk_number = ?,
		vat_id = ?, iban = ?, default_payment_term_days = ?, fiscal_year = ?, updated_at = ?
		WHERE id = 1`, settingsArgs(s)...)
	if err != nil {
		return core.CompanySettings{}, core.NewStorageError("update settings", err)
	}
	return s, nil
}

func (r *Repository) loadSettings(ctx context.Context) (core.CompanySettings, error) {
	var (
		s       core.CompanySettings
		updated string
	)
	err := r.queryRow(ctx, r.db, "SELECT "+settingsColumns+" FROM company_settings WHERE id = 1").
		Scan(&s.CompanyName, &s.ContactPerson, &s.Address, &s.PostalCode, &s.City, &s.Phone,
			&s.Email, &s.Website, &s.KvkNumber, &s.VatID, &s.IBAN, &s.DefaultPaymentTermDays,
			&s.FiscalYear, &updated)
	if err != nil {
		return core.CompanySettings{}, err
	}
	s.UpdatedAt = parseTimestamp(updated)
	return s, nil
}

func settingsArgs(s core.CompanySettings) []any {
	return []any{
		s.CompanyName, s.ContactPerson, s.Address, s.PostalCode, s.City, s.Phone, s.Email,
		s.Website, s.KvkNumber, s.VatID, s.IBAN, s.DefaultPaymentTermDays, s.FiscalYear,
		formatTimestamp(s.UpdatedAt),
	}
}
