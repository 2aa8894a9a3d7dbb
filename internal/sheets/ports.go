// Package sheets defines where finished reports are published outside the
// service, such as the bookkeeper's shared spreadsheet.
package sheets

import (
	"context"

	"boekhouding/internal/report"
)

// Ports for outbound adapters.
type (
	// VatReportExporter writes one quarterly VAT report, replacing any
	// earlier export of the same quarter. It returns a reference to the
	// written location.
	VatReportExporter interface {
		ExportVatReport(ctx context.Context, r report.QuarterlyVatReport) (ref string, err error)
	}
)
