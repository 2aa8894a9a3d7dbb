package render

import (
	"errors"
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"

	"boekhouding/internal/report"
)

// ErrEmptyChart is returned when every category amount is zero.
var ErrEmptyChart = errors.New("no amounts to chart")

// ChartKind selects which half of the category breakdown is drawn.
type ChartKind string

const (
	ChartIncome  ChartKind = "income"
	ChartExpense ChartKind = "expense"
)

// ParseChartKind validates a -kind flag value.
func ParseChartKind(s string) (ChartKind, error) {
	switch k := ChartKind(s); k {
	case ChartIncome, ChartExpense:
		return k, nil
	default:
		return "", fmt.Errorf("unknown chart kind %q (want income or expense)", s)
	}
}

// CategoryChart writes a PNG bar chart of the P&L categories of kind.
func CategoryChart(w io.Writer, pl report.ProfitAndLoss, kind ChartKind) error {
	rows := pl.Breakdown.IncomeByCategory
	title := fmt.Sprintf("Omzet per categorie %d", pl.Year)
	if kind == ChartExpense {
		rows = pl.Breakdown.ExpenseByCategory
		title = fmt.Sprintf("Kosten per categorie %d", pl.Year)
	}

	var bars []chart.Value
	maxValue := 0.0
	for _, c := range rows {
		v := c.Amount.Euros()
		if v > maxValue {
			maxValue = v
		}
		bars = append(bars, chart.Value{Label: c.Category, Value: v})
	}
	if maxValue <= 0 {
		return ErrEmptyChart
	}

	barChart := chart.BarChart{
		Title: title,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    40,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
		},
		Width:    800,
		Height:   400,
		BarWidth: 60,
		Bars:     bars,
	}
	// Bars start at zero; equal amounts would otherwise give an empty range.
	barChart.YAxis.Range = &chart.ContinuousRange{Min: 0, Max: maxValue}
	barChart.YAxis.ValueFormatter = func(v interface{}) string {
		if vf, isFloat := v.(float64); isFloat {
			return fmt.Sprintf("€ %.0f", vf)
		}
		return ""
	}

	if err := barChart.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
