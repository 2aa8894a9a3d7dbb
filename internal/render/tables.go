package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"boekhouding/internal/report"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	return table
}

// VatReportTable writes the quarterly VAT return: one row per bucket, then
// the totals and the balance.
func VatReportTable(w io.Writer, r report.QuarterlyVatReport) {
	fmt.Fprintf(w, "BTW-aangifte %s (%s t/m %s)\n", r.Label(), r.Start, r.End)

	table := newTable(w, "Rubriek", "Grondslag", "BTW")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT})
	table.Append([]string{"Omzet hoog (21%)", FormatEuros(r.Income21.Base), FormatEuros(r.Income21.Vat)})
	table.Append([]string{"Omzet laag (9%)", FormatEuros(r.Income9.Base), FormatEuros(r.Income9.Vat)})
	table.Append([]string{"Omzet 0%", FormatEuros(r.Income0.Base), ""})
	table.Append([]string{"Kosten hoog (21%)", FormatEuros(r.Expense21.Base), FormatEuros(r.Expense21.Vat)})
	table.Append([]string{"Kosten laag (9%)", FormatEuros(r.Expense9.Base), FormatEuros(r.Expense9.Vat)})
	table.Append([]string{"Kosten 0%", FormatEuros(r.Expense0.Base), ""})
	table.Append([]string{"BTW over omzet", "", FormatEuros(r.TotalVatOnIncome)})
	table.Append([]string{"Voorbelasting", "", FormatEuros(r.TotalVatOnExpenses)})

	status := "Terug te vragen"
	if r.Payable() {
		status = "Te betalen"
	}
	table.SetFooter([]string{status, "", FormatEuros(r.TotalVatDue)})
	table.Render()
}

// ProfitAndLossTable writes the yearly result followed by the income and
// expense categories.
func ProfitAndLossTable(w io.Writer, pl report.ProfitAndLoss) {
	fmt.Fprintf(w, "Winst- en verliesrekening %d\n", pl.Year)

	table := newTable(w, "Soort", "Categorie", "Bedrag")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	for _, c := range pl.Breakdown.IncomeByCategory {
		table.Append([]string{"Omzet", c.Category, FormatEuros(c.Amount)})
	}
	table.Append([]string{"Omzet", "Totaal", FormatEuros(pl.Summary.TotalIncome)})
	for _, c := range pl.Breakdown.ExpenseByCategory {
		table.Append([]string{"Kosten", c.Category, FormatEuros(c.Amount)})
	}
	table.Append([]string{"Kosten", "Totaal", FormatEuros(pl.Summary.TotalExpenses)})
	table.SetFooter([]string{"Resultaat", "", FormatEuros(pl.Summary.Result)})
	table.Render()
}

// SummaryTable writes a dashboard period summary.
func SummaryTable(w io.Writer, d report.Dashboard) {
	fmt.Fprintf(w, "Overzicht %d\n", d.Year)

	table := newTable(w, "Omzet", "Kosten", "Resultaat")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT})
	table.Append([]string{
		FormatEuros(d.Summary.TotalIncome),
		FormatEuros(d.Summary.TotalExpenses),
		FormatEuros(d.Summary.Result),
	})
	table.Render()
}

// TransactionsTable writes one row per transaction in the given order.
func TransactionsTable(w io.Writer, txs []report.TransactionView) {
	table := newTable(w, "Datum", "Omschrijving", "Soort", "Relatie", "Categorie", "Excl. BTW", "BTW", "Tarief", "Incl. BTW")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
	})
	for _, tx := range txs {
		table.Append([]string{
			tx.Date.String(),
			tx.Description,
			string(tx.Type),
			tx.RelationName,
			tx.Category,
			FormatEuros(tx.AmountExclVat),
			FormatEuros(tx.VatAmount),
			FormatVatRate(tx.VatRate),
			FormatEuros(tx.AmountInclVat),
		})
	}
	table.SetFooter([]string{"", "", "", "", "", "", "", "Aantal", strconv.Itoa(len(txs))})
	table.Render()
}
