package report

import (
	"sort"

	"boekhouding/internal/core"
)

// CategoryAmount is one row of a category breakdown.
type CategoryAmount struct {
	Category string     `json:"category"`
	Amount   core.Money `json:"amount"`
}

// CategoryBreakdown groups income and expenses by category independently,
// since a category name has no fixed type.
type CategoryBreakdown struct {
	IncomeByCategory  []CategoryAmount `json:"incomeByCategory"`
	ExpenseByCategory []CategoryAmount `json:"expenseByCategory"`
	TotalIncome       core.Money       `json:"totalIncome"`
	TotalExpenses     core.Money       `json:"totalExpenses"`
}

// ProfitAndLoss is the yearly P&L statement.
type ProfitAndLoss struct {
	Year      int               `json:"year"`
	Summary   PeriodSummary     `json:"summary"`
	Breakdown CategoryBreakdown `json:"breakdown"`
}

// BreakdownByCategory groups the given (already period-filtered) transactions
// by category. Uncategorized rows land in "Overig". Rows are sorted by amount
// descending, then by name. The totals equal SummarizePeriod over the same set.
func BreakdownByCategory(txs []core.Transaction) CategoryBreakdown {
	income := map[string]core.Money{}
	expense := map[string]core.Money{}

	var b CategoryBreakdown
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			c := tx.CategoryOrDefault()
			income[c] = income[c].Add(tx.AmountExclVat)
			b.TotalIncome = b.TotalIncome.Add(tx.AmountExclVat)
		case core.Expense:
			c := tx.CategoryOrDefault()
			expense[c] = expense[c].Add(tx.AmountExclVat)
			b.TotalExpenses = b.TotalExpenses.Add(tx.AmountExclVat)
		}
	}
	b.IncomeByCategory = sortedAmounts(income)
	b.ExpenseByCategory = sortedAmounts(expense)
	return b
}

// BuildProfitAndLoss filters txs to the calendar year and aggregates them.
func BuildProfitAndLoss(txs []core.Transaction, year int) ProfitAndLoss {
	start, end := YearRange(year)
	inYear := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Date.Between(start, end) {
			inYear = append(inYear, tx)
		}
	}
	return ProfitAndLoss{
		Year:      year,
		Summary:   SummarizePeriod(inYear, start, end),
		Breakdown: BreakdownByCategory(inYear),
	}
}

func sortedAmounts(m map[string]core.Money) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(m))
	for name, amount := range m {
		out = append(out, CategoryAmount{Category: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Category < out[j].Category
	})
	return out
}
