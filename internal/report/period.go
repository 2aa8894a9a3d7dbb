// Package report holds the VAT and profit/loss aggregation.
//
// Every function here is pure: it takes already fetched and validated
// transactions and returns a view model. Nothing blocks, nothing is shared,
// so callers may use them from any number of goroutines.
package report

import (
	"sort"

	"boekhouding/internal/core"
)

// DefaultRecentLimit is the size of the recent-activity list on the dashboard.
const DefaultRecentLimit = 10

// PeriodSummary holds the P&L totals of a date range.
type PeriodSummary struct {
	Start         core.Date  `json:"start"`
	End           core.Date  `json:"end"`
	TotalIncome   core.Money `json:"totalIncome"`
	TotalExpenses core.Money `json:"totalExpenses"`
	Result        core.Money `json:"result"`
}

// TransactionView is a transaction enriched for display.
type TransactionView struct {
	ID            string               `json:"id"`
	Date          core.Date            `json:"date"`
	Description   string               `json:"description"`
	Type          core.TransactionType `json:"type"`
	AmountExclVat core.Money           `json:"amountExclVat"`
	VatRate       core.VatRate         `json:"vatRate"`
	VatAmount     core.Money           `json:"vatAmount"`
	AmountInclVat core.Money           `json:"amountInclVat"`
	Category      string               `json:"category"`
	RelationID    string               `json:"relationId,omitempty"`
	RelationName  string               `json:"relationName"`
}

// SummarizePeriod sums AmountExclVat of INCOME and EXPENSE transactions dated
// within [start, end]. Other types are ignored.
func SummarizePeriod(txs []core.Transaction, start, end core.Date) PeriodSummary {
	s := PeriodSummary{Start: start, End: end}
	for _, tx := range txs {
		if !tx.Date.Between(start, end) {
			continue
		}
		switch tx.Type {
		case core.Income:
			s.TotalIncome = s.TotalIncome.Add(tx.AmountExclVat)
		case core.Expense:
			s.TotalExpenses = s.TotalExpenses.Add(tx.AmountExclVat)
		}
	}
	s.Result = s.TotalIncome.Sub(s.TotalExpenses)
	return s
}

// YearRange returns January 1st and December 31st of year.
func YearRange(year int) (core.Date, core.Date) {
	return core.NewDate(year, 1, 1), core.NewDate(year, 12, 31)
}

// RecentTransactions returns the limit most recently dated transactions,
// newest first, ties broken by descending ID. A non-positive limit means
// DefaultRecentLimit. Transactions whose relation is unknown show "-".
func RecentTransactions(txs []core.Transaction, relations []core.Relation, limit int) []TransactionView {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	sorted := make([]core.Transaction, len(txs))
	copy(sorted, txs)
	SortNewestFirst(sorted)
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	names := make(map[string]string, len(relations))
	for _, r := range relations {
		names[r.ID] = r.Name
	}

	views := make([]TransactionView, 0, len(sorted))
	for _, tx := range sorted {
		views = append(views, NewTransactionView(tx, names))
	}
	return views
}

// NewTransactionView builds the display row for tx using a relation-name index.
func NewTransactionView(tx core.Transaction, relationNames map[string]string) TransactionView {
	name := core.NoRelationLabel
	if n, ok := relationNames[tx.RelationID]; ok && tx.RelationID != "" {
		name = n
	}
	return TransactionView{
		ID:            tx.ID,
		Date:          tx.Date,
		Description:   tx.Description,
		Type:          tx.Type,
		AmountExclVat: tx.AmountExclVat,
		VatRate:       tx.VatRate,
		VatAmount:     tx.VatAmount,
		AmountInclVat: tx.AmountInclVat,
		Category:      tx.Category,
		RelationID:    tx.RelationID,
		RelationName:  name,
	}
}

// SortNewestFirst orders transactions by date descending, then ID descending.
func SortNewestFirst(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date.Time) {
			return txs[i].Date.After(txs[j].Date.Time)
		}
		return txs[i].ID > txs[j].ID
	})
}

// Dashboard is the yearly overview with the recent-activity list.
type Dashboard struct {
	Year    int               `json:"year"`
	Summary PeriodSummary     `json:"summary"`
	Recent  []TransactionView `json:"recent"`
}
