package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"boekhouding/internal/report"
	ports "boekhouding/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID string
	// SheetName is the tab base name; the year is prefixed ("2024 BTW").
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Exporter writes quarterly VAT reports into a per-year tab: a header row
// followed by one row per quarter (row 2 is Q1, row 5 is Q4).
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

var _ ports.VatReportExporter = (*Exporter)(nil)

// New creates an Exporter. Extra client options replace the credential
// lookup, which tests use to point the client at a local server.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	sheetBase := strings.TrimSpace(cfg.SheetName)
	if sheetBase == "" {
		sheetBase = "BTW"
	}

	if len(opts) == 0 {
		creds, err := loadCredentials(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets exporter ready",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet_base", sheetBase)

	return &Exporter{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheetBase: sheetBase}, nil
}

// loadCredentials returns the service account JSON from the inline value,
// the configured file or GOOGLE_APPLICATION_CREDENTIALS, in that order.
func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read service account credentials", "path", file, "size", len(data))
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// ExportVatReport writes r into its quarter row. An identical existing row
// is left untouched.
func (e *Exporter) ExportVatReport(ctx context.Context, r report.QuarterlyVatReport) (string, error) {
	if err := report.ValidateQuarter(r.Quarter); err != nil {
		return "", err
	}
	if e.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(e.sheetBase, r.Year)
	if err := e.ensureSheet(ctx, sheet); err != nil {
		return "", err
	}

	headerRange := fmt.Sprintf("%s!A1:%s1", quoteSheet(sheet), lastColumn)
	header := &gsheet.ValueRange{Values: [][]any{headerRow()}}
	if _, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, headerRange, header).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("write header in %s: %w", sheet, err)
	}

	row := r.Quarter + 1
	rowRange := fmt.Sprintf("%s!A%d:%s%d", quoteSheet(sheet), row, lastColumn, row)
	want := vatRow(r)

	existing, err := e.svc.Spreadsheets.Values.Get(e.spreadsheetID, rowRange).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rowRange, err)
	}
	if len(existing.Values) > 0 && sameRow(existing.Values[0], want) {
		slog.DebugContext(ctx, "VAT report unchanged, skipping write", "quarter", r.Label())
		return rowRange, nil
	}

	vr := &gsheet.ValueRange{Values: [][]any{want}}
	if _, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, rowRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("write %s: %w", rowRange, err)
	}

	slog.InfoContext(ctx, "VAT report exported to Google Sheets",
		"quarter", r.Label(),
		"range", rowRange,
		"total_vat_due_cents", r.TotalVatDue.Cents)

	return rowRange, nil
}

// ensureSheet adds the tab when the spreadsheet does not have it yet.
func (e *Exporter) ensureSheet(ctx context.Context, title string) error {
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	slog.InfoContext(ctx, "Created sheet", "title", title)
	return nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

// quoteSheet quotes a tab name for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
