package google

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"boekhouding/internal/core"
	"boekhouding/internal/report"
)

// lastColumn is the column of the final field in a VAT row.
const lastColumn = "Q"

// amountColumns are the indexes of money cells in a VAT row.
var amountColumns = []int{3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

func headerRow() []any {
	return []any{
		"Kwartaal", "Van", "Tot",
		"Omzet 21% grondslag", "Omzet 21% btw",
		"Omzet 9% grondslag", "Omzet 9% btw",
		"Omzet 0%",
		"Kosten 21% grondslag", "Kosten 21% btw",
		"Kosten 9% grondslag", "Kosten 9% btw",
		"Kosten 0%",
		"BTW over omzet", "Voorbelasting", "Saldo", "Status",
	}
}

// vatRow lays out r in the column order of headerRow. Amounts are sent as
// numbers so the sheet can format and sum them.
func vatRow(r report.QuarterlyVatReport) []any {
	status := "Terug te vragen"
	if r.Payable() {
		status = "Te betalen"
	}
	return []any{
		r.Label(), r.Start.String(), r.End.String(),
		r.Income21.Base.Euros(), r.Income21.Vat.Euros(),
		r.Income9.Base.Euros(), r.Income9.Vat.Euros(),
		r.Income0.Base.Euros(),
		r.Expense21.Base.Euros(), r.Expense21.Vat.Euros(),
		r.Expense9.Base.Euros(), r.Expense9.Vat.Euros(),
		r.Expense0.Base.Euros(),
		r.TotalVatOnIncome.Euros(), r.TotalVatOnExpenses.Euros(), r.TotalVatDue.Euros(),
		status,
	}
}

// sameRow reports whether a row read back from the sheet carries the same
// quarter label and amounts as want. Dates and status are derived from
// those and are not compared, since the sheet may reformat them.
func sameRow(got, want []any) bool {
	if len(got) < len(want)-1 {
		return false
	}
	if strings.TrimSpace(fmt.Sprint(got[0])) != fmt.Sprint(want[0]) {
		return false
	}
	for _, i := range amountColumns {
		a, ok := parseEurosToCents(got[i])
		if !ok {
			return false
		}
		b, _ := parseEurosToCents(want[i])
		if a != b {
			return false
		}
	}
	return true
}

// parseEurosToCents reads a cell value as returned by the Sheets API:
// a number, or a string with an optional euro sign, thousands dots and a
// decimal comma ("€ -1.234,56").
func parseEurosToCents(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		d := decimal.NewFromFloat(n)
		if !core.InRange(d) {
			return 0, false
		}
		return core.NewMoneyFromDecimal(d).Cents, true
	case int:
		return int64(n) * 100, true
	case int64:
		return n * 100, true
	}

	s := strings.TrimSpace(fmt.Sprint(v))
	s = strings.TrimSpace(strings.TrimPrefix(s, "€"))
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !core.InRange(d) {
		return 0, false
	}
	return core.NewMoneyFromDecimal(d).Cents, true
}
