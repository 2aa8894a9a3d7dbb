package core

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
	// Passiva is a balance-sheet item; it is stored but excluded from
	// profit/loss and VAT reporting.
	Passiva TransactionType = "PASSIVA"
)

const (
	maxDescriptionLength = 500
	maxNameLength        = 200

	DefaultCompanyName     = "Mijn Bedrijf B.V."
	DefaultPaymentTermDays = 30
	UncategorizedLabel     = "Overig"
	NoRelationLabel        = "-"
)

type (
	TransactionType string

	Date struct {
		time.Time
	}

	Transaction struct {
		ID            string          `json:"id"`
		Date          Date            `json:"date"`
		Description   string          `json:"description"`
		Type          TransactionType `json:"type"`
		AmountExclVat Money           `json:"amountExclVat"`
		VatRate       VatRate         `json:"vatRate"`
		VatAmount     Money           `json:"vatAmount"`     // derived, see ApplyVat
		AmountInclVat Money           `json:"amountInclVat"` // derived, see ApplyVat
		Category      string          `json:"category"`
		RelationID    string          `json:"relationId,omitempty"` // empty when not linked
		CreatedAt     time.Time       `json:"createdAt"`
		UpdatedAt     time.Time       `json:"updatedAt"`
	}

	Relation struct {
		ID         string    `json:"id"`
		Number     int64     `json:"number"`
		Name       string    `json:"name"`
		Address    string    `json:"address"`
		PostalCode string    `json:"postalCode"`
		City       string    `json:"city"`
		Phone      string    `json:"phone"`
		Email      string    `json:"email"`
		VatNumber  string    `json:"vatNumber"`
		Notes      string    `json:"notes"`
		CreatedAt  time.Time `json:"createdAt"`
		UpdatedAt  time.Time `json:"updatedAt"`
	}

	CompanySettings struct {
		CompanyName            string    `json:"companyName"`
		ContactPerson          string    `json:"contactPerson"`
		Address                string    `json:"address"`
		PostalCode             string    `json:"postalCode"`
		City                   string    `json:"city"`
		Phone                  string    `json:"phone"`
		Email                  string    `json:"email"`
		Website                string    `json:"website"`
		KvkNumber              string    `json:"kvkNumber"`
		VatID                  string    `json:"vatId"`
		IBAN                   string    `json:"iban"`
		DefaultPaymentTermDays int       `json:"defaultPaymentTermDays"`
		FiscalYear             int       `json:"fiscalYear"`
		UpdatedAt              time.Time `json:"updatedAt"`
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, NewValidationError("date", "must be formatted as YYYY-MM-DD")
	}
	return Date{Time: t}, nil
}

// Today returns the current date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Quarter returns the calendar quarter (1-4) the date falls in.
func (d Date) Quarter() int {
	return (d.Month()-1)/3 + 1
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// Between reports whether d lies in [start, end], both inclusive.
func (d Date) Between(start, end Date) bool {
	return !d.Before(start.Time) && !d.After(end.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	// Accept full timestamps too, keeping only the calendar day.
	if len(s) > len(time.DateOnly) {
		s = s[:len(time.DateOnly)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return NewValidationError("date", "is required")
	}
	return nil
}

// ParseTransactionType maps user input onto the closed set of types.
func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(strings.ToUpper(strings.TrimSpace(s))); t {
	case Income, Expense, Passiva:
		return t, nil
	default:
		return "", NewValidationError("type", fmt.Sprintf("unknown transaction type %q (want INCOME, EXPENSE or PASSIVA)", s))
	}
}

// IsProfitAndLoss reports whether the type takes part in P&L and VAT figures.
func (t TransactionType) IsProfitAndLoss() bool {
	return t == Income || t == Expense
}

// ApplyVat recomputes VatAmount and AmountInclVat from AmountExclVat and VatRate.
func (t *Transaction) ApplyVat() {
	t.VatAmount = VatAmount(t.AmountExclVat, t.VatRate)
	t.AmountInclVat = AmountInclVat(t.AmountExclVat, t.VatAmount)
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return NewValidationError("description", "is required")
	}
	if utf8.RuneCountInString(t.Description) > maxDescriptionLength {
		return NewValidationError("description", fmt.Sprintf("too long (max %d characters)", maxDescriptionLength))
	}
	if _, err := ParseTransactionType(string(t.Type)); err != nil {
		return err
	}
	if t.AmountExclVat.Cents < 0 {
		return NewValidationError("amountExclVat", "must not be negative")
	}
	if t.AmountExclVat.Cents > MaxAmountCents {
		return NewValidationError("amountExclVat", "is too large")
	}
	if _, err := ParseVatRate(string(t.VatRate)); err != nil {
		return err
	}
	return nil
}

// CategoryOrDefault returns the trimmed category or the uncategorized bucket.
func (t Transaction) CategoryOrDefault() string {
	if c := strings.TrimSpace(t.Category); c != "" {
		return c
	}
	return UncategorizedLabel
}

func (r Relation) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return NewValidationError("name", "is required")
	}
	if utf8.RuneCountInString(r.Name) > maxNameLength {
		return NewValidationError("name", fmt.Sprintf("too long (max %d characters)", maxNameLength))
	}
	return nil
}

// DefaultCompanySettings returns the record created on first access.
func DefaultCompanySettings() CompanySettings {
	return CompanySettings{
		CompanyName:            DefaultCompanyName,
		DefaultPaymentTermDays: DefaultPaymentTermDays,
		FiscalYear:             time.Now().Year(),
	}
}

func (s CompanySettings) Validate() error {
	if strings.TrimSpace(s.CompanyName) == "" {
		return NewValidationError("companyName", "is required")
	}
	if s.DefaultPaymentTermDays < 0 || s.DefaultPaymentTermDays > 365 {
		return NewValidationError("defaultPaymentTermDays", "must be between 0 and 365")
	}
	if s.FiscalYear < 1900 || s.FiscalYear > 9999 {
		return NewValidationError("fiscalYear", "must be between 1900 and 9999")
	}
	return nil
}
