// Package render turns report view models into text tables, PNG charts and
// Dutch-formatted amounts for the command-line tools. The aggregator never
// formats currency; it all happens here.
package render

import (
	"strconv"
	"strings"

	"boekhouding/internal/core"
)

// FormatEuros renders m the Dutch way: "€ 1.234,56", "€ -0,50".
func FormatEuros(m core.Money) string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	frac := cents % 100

	var b strings.Builder
	b.WriteString("€ ")
	b.WriteString(sign)
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	if frac < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(frac, 10))
	return b.String()
}

// FormatVatRate renders a tariff as "21%".
func FormatVatRate(r core.VatRate) string {
	return strconv.FormatInt(r.Percentage(), 10) + "%"
}
