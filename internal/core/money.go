// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents. Conversions to and from decimal text go
// through shopspring/decimal so rounding never touches binary floats.
package core

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Money is an amount in euro cents.
type Money struct {
	Cents int64
}

// MaxAmountCents bounds every amount accepted from input: one trillion euros.
const MaxAmountCents = 100_000_000_000_000

var maxAmount = decimal.New(MaxAmountCents, -2)

// InRange reports whether d, in euros, is within ±MaxAmountCents.
func InRange(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(maxAmount)
}

// NewMoneyFromDecimal rounds d half-up (away from zero) to whole cents.
// Callers check InRange first; larger values do not fit in int64 cents.
func NewMoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Shift(2).Round(0).IntPart()}
}

// ParseAmount converts user input such as "12,34" or "12.345" to Money.
//
// It accepts both dot and comma decimal separators and performs half-up
// rounding on the third decimal place. Negative values are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,345") -> 12.35
//	ParseAmount("0")      -> 0.00
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return Money{}, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			// Rejects signs, exponents and thousands separators.
			return Money{}, ErrInvalidAmount
		}
	}
	if s == "." {
		return Money{}, ErrInvalidAmount
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !InRange(d) {
		return Money{}, ErrInvalidAmount
	}
	return NewMoneyFromDecimal(d), nil
}

// Decimal returns the amount as an exact decimal in euros.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Euros returns the euro value as a float64 for display purposes.
// Use cents for calculations.
func (m Money) Euros() float64 {
	return m.Decimal().InexactFloat64()
}

// String renders the amount with exactly two decimals, e.g. "1234.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) IsNegative() bool  { return m.Cents < 0 }

// MarshalJSON writes a plain JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string; a decimal
// comma is allowed in the string form.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(bytes.TrimSpace(data), `"`))
	if raw == "" || raw == "null" {
		*m = Money{}
		return nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
	if err != nil {
		return NewValidationError("amount", "must be a decimal number")
	}
	if !InRange(d) {
		return NewValidationError("amount", "is too large")
	}
	*m = NewMoneyFromDecimal(d)
	return nil
}
