package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// VatRate selects one of the Dutch VAT tariffs.
type VatRate string

const (
	VatNone VatRate = "NONE"
	VatLow  VatRate = "LOW"
	VatHigh VatRate = "HIGH"
)

var hundred = decimal.NewFromInt(100)

// VatPercentage is the only place that knows the tariff percentages.
// Unknown or unset rates map to 0.
func VatPercentage(rate VatRate) int64 {
	switch rate {
	case VatLow:
		return 9
	case VatHigh:
		return 21
	default:
		return 0
	}
}

// Percentage is a shorthand for VatPercentage(r).
func (r VatRate) Percentage() int64 {
	return VatPercentage(r)
}

// ParseVatRate validates user input against the known tariffs.
func ParseVatRate(s string) (VatRate, error) {
	switch r := VatRate(strings.ToUpper(strings.TrimSpace(s))); r {
	case VatNone, VatLow, VatHigh:
		return r, nil
	default:
		return "", NewValidationError("vatRate", fmt.Sprintf("unknown VAT rate %q (want NONE, LOW or HIGH)", s))
	}
}

// VatAmount returns amountExclVat * percentage / 100 rounded to whole cents,
// halves away from zero. Negative amounts are allowed for corrections.
func VatAmount(amountExclVat Money, rate VatRate) Money {
	vat := amountExclVat.Decimal().
		Mul(decimal.NewFromInt(VatPercentage(rate))).
		Div(hundred)
	return NewMoneyFromDecimal(vat)
}

// AmountInclVat adds a VAT amount to its base. The VAT is taken as given so
// callers may combine an externally sourced VAT figure with a base.
func AmountInclVat(amountExclVat, vatAmount Money) Money {
	return amountExclVat.Add(vatAmount)
}
