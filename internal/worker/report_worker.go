package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"boekhouding/internal/amqp"
	"boekhouding/internal/core"
	"boekhouding/internal/report"
	"boekhouding/internal/services"
	"boekhouding/internal/sheets"
	"boekhouding/internal/storage"
)

// ReportWorker keeps the exported quarterly VAT reports in line with the
// stored transactions.
type ReportWorker struct {
	reports  *services.ReportService
	exporter sheets.VatReportExporter
	settings storage.SettingsStore
	today    func() core.Date
}

func NewReportWorker(reports *services.ReportService, exporter sheets.VatReportExporter, settings storage.SettingsStore) *ReportWorker {
	return &ReportWorker{
		reports:  reports,
		exporter: exporter,
		settings: settings,
		today:    core.Today,
	}
}

type quarterKey struct {
	year, quarter int
}

// HandleTransactionChanged processes a single change event from AMQP: the
// cached reports of every affected period are dropped and each affected
// quarter is exported again. Any export failure is returned so the
// message is redelivered.
func (w *ReportWorker) HandleTransactionChanged(ctx context.Context, msg *amqp.TransactionChangedMessage) error {
	slog.InfoContext(ctx, "Processing transaction change",
		"action", msg.Action,
		"transaction_id", msg.TransactionID,
		"dates", msg.Dates)

	dates, err := msg.AffectedDates()
	if err != nil {
		return fmt.Errorf("read affected dates: %w", err)
	}
	w.reports.Invalidate(ctx, dates...)

	seen := make(map[quarterKey]struct{}, len(dates))
	var errs []error
	for _, d := range dates {
		k := quarterKey{d.Year(), d.Quarter()}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		if _, err := w.ExportQuarter(ctx, k.year, k.quarter); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ExportQuarter rebuilds one quarterly VAT report and hands it to the
// exporter.
func (w *ReportWorker) ExportQuarter(ctx context.Context, year, quarter int) (string, error) {
	r, err := w.reports.RebuildQuarterlyVat(ctx, year, quarter)
	if err != nil {
		return "", fmt.Errorf("build VAT report %s: %w", report.QuarterLabel(year, quarter), err)
	}
	ref, err := w.exporter.ExportVatReport(ctx, r)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to export VAT report",
			"quarter", r.Label(),
			"error", err)
		return "", fmt.Errorf("export VAT report %s: %w", r.Label(), err)
	}

	slog.InfoContext(ctx, "Exported VAT report",
		"quarter", r.Label(),
		"ref", ref,
		"total_vat_due_cents", r.TotalVatDue.Cents)
	return ref, nil
}

// ExportYear exports every quarter of year that has already started.
func (w *ReportWorker) ExportYear(ctx context.Context, year int) error {
	if err := services.ValidateYear(year); err != nil {
		return err
	}
	today := w.today()

	exported := 0
	var errs []error
	for q := 1; q <= 4; q++ {
		start, _, err := report.QuarterRange(year, q)
		if err != nil {
			return err
		}
		if start.After(today.Time) {
			break
		}
		if _, err := w.ExportQuarter(ctx, year, q); err != nil {
			errs = append(errs, err)
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Year export completed",
		"year", year,
		"exported", exported,
		"errors", len(errs))
	return errors.Join(errs...)
}

// ExportFiscalYear exports the quarters of the configured fiscal year.
// It runs at worker startup and periodically as a backup in case AMQP
// messages are lost.
func (w *ReportWorker) ExportFiscalYear(ctx context.Context) error {
	settings, err := w.settings.GetOrCreateSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	return w.ExportYear(ctx, settings.FiscalYear)
}
