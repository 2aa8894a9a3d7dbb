package report

import (
	"fmt"
	"time"

	"boekhouding/internal/core"
)

// VatBucket accumulates base and VAT for a taxed rate.
type VatBucket struct {
	Base core.Money `json:"base"`
	Vat  core.Money `json:"vat"`
}

// BaseBucket accumulates the base of zero-rated transactions.
type BaseBucket struct {
	Base core.Money `json:"base"`
}

// QuarterlyVatReport is the input for a quarterly VAT return.
//
// TotalVatDue is positive when tax is owed and negative when a refund is due.
type QuarterlyVatReport struct {
	Year               int        `json:"year"`
	Quarter            int        `json:"quarter"`
	Start              core.Date  `json:"start"`
	End                core.Date  `json:"end"`
	Income21           VatBucket  `json:"income21"`
	Income9            VatBucket  `json:"income9"`
	Income0            BaseBucket `json:"income0"`
	Expense21          VatBucket  `json:"expense21"`
	Expense9           VatBucket  `json:"expense9"`
	Expense0           BaseBucket `json:"expense0"`
	TotalVatOnIncome   core.Money `json:"totalVatOnIncome"`
	TotalVatOnExpenses core.Money `json:"totalVatOnExpenses"`
	TotalVatDue        core.Money `json:"totalVatDue"`
}

// Payable reports whether VAT is owed (true) or refundable (false).
func (r QuarterlyVatReport) Payable() bool {
	return !r.TotalVatDue.IsNegative()
}

// Label returns "2024-Q1" style identification.
func (r QuarterlyVatReport) Label() string {
	return QuarterLabel(r.Year, r.Quarter)
}

// QuarterLabel formats a year and quarter as "2024-Q1".
func QuarterLabel(year, quarter int) string {
	return fmt.Sprintf("%d-Q%d", year, quarter)
}

// ValidateQuarter rejects quarters outside 1-4.
func ValidateQuarter(quarter int) error {
	if quarter < 1 || quarter > 4 {
		return core.NewValidationError("quarter", fmt.Sprintf("must be between 1 and 4, got %d", quarter))
	}
	return nil
}

// QuarterRange returns the first day of month 3q-2 and the last day of
// month 3q. The quarter is validated before any date arithmetic.
func QuarterRange(year, quarter int) (core.Date, core.Date, error) {
	if err := ValidateQuarter(quarter); err != nil {
		return core.Date{}, core.Date{}, err
	}
	firstMonth := 3*quarter - 2
	start := core.NewDate(year, firstMonth, 1)
	// Day 0 of the following month is the last day of month 3q.
	end := core.Date{Time: time.Date(year, time.Month(3*quarter+1), 0, 0, 0, 0, 0, time.UTC)}
	return start, end, nil
}

// BuildQuarterlyVatReport partitions the transactions dated inside the
// quarter into the six (type, rate) buckets. VAT amounts are the already
// rounded per-transaction values; sums are exact in cents. PASSIVA rows are
// not part of the VAT return and are skipped.
func BuildQuarterlyVatReport(txs []core.Transaction, year, quarter int) (QuarterlyVatReport, error) {
	start, end, err := QuarterRange(year, quarter)
	if err != nil {
		return QuarterlyVatReport{}, err
	}

	r := QuarterlyVatReport{Year: year, Quarter: quarter, Start: start, End: end}
	for _, tx := range txs {
		if !tx.Date.Between(start, end) {
			continue
		}
		switch tx.Type {
		case core.Income:
			addToBuckets(tx, &r.Income21, &r.Income9, &r.Income0)
		case core.Expense:
			addToBuckets(tx, &r.Expense21, &r.Expense9, &r.Expense0)
		}
	}

	r.TotalVatOnIncome = r.Income21.Vat.Add(r.Income9.Vat)
	r.TotalVatOnExpenses = r.Expense21.Vat.Add(r.Expense9.Vat)
	r.TotalVatDue = r.TotalVatOnIncome.Sub(r.TotalVatOnExpenses)
	return r, nil
}

func addToBuckets(tx core.Transaction, high, low *VatBucket, zero *BaseBucket) {
	switch tx.VatRate.Percentage() {
	case core.VatHigh.Percentage():
		high.Base = high.Base.Add(tx.AmountExclVat)
		high.Vat = high.Vat.Add(tx.VatAmount)
	case core.VatLow.Percentage():
		low.Base = low.Base.Add(tx.AmountExclVat)
		low.Vat = low.Vat.Add(tx.VatAmount)
	default:
		zero.Base = zero.Base.Add(tx.AmountExclVat)
	}
}
