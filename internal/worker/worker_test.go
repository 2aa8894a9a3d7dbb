package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"boekhouding/internal/amqp"
	"boekhouding/internal/cache"
	"boekhouding/internal/core"
	"boekhouding/internal/report"
	"boekhouding/internal/services"
	"boekhouding/internal/sheets/memory"
	storemem "boekhouding/internal/storage/memory"
)

type failingExporter struct{}

func (failingExporter) ExportVatReport(context.Context, report.QuarterlyVatReport) (string, error) {
	return "", errors.New("sheet unavailable")
}

func newTestWorker(t *testing.T) (*ReportWorker, *storemem.Store, *memory.Exporter, *cache.LRUCache[report.QuarterlyVatReport]) {
	t.Helper()
	store := storemem.New()
	vatCache := cache.NewLRUCache[report.QuarterlyVatReport](8, time.Hour)
	reports := services.NewReportService(store, services.ReportCaches{Vat: vatCache})
	exporter := memory.New()
	w := NewReportWorker(reports, exporter, store)
	w.today = func() core.Date { return core.NewDate(2024, 5, 20) }
	return w, store, exporter, vatCache
}

func storeTx(t *testing.T, store *storemem.Store, id string, date core.Date, typ core.TransactionType, cents int64, rate core.VatRate) {
	t.Helper()
	tx := core.Transaction{ID: id, Date: date, Description: id, Type: typ, AmountExclVat: core.Money{Cents: cents}, VatRate: rate}
	if _, err := store.CreateTransaction(context.Background(), tx); err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
}

func TestHandleTransactionChanged_ExportsAffectedQuarters(t *testing.T) {
	w, store, exporter, vatCache := newTestWorker(t)
	ctx := context.Background()

	storeTx(t, store, "a", core.NewDate(2024, 2, 1), core.Income, 10000, core.VatHigh)
	storeTx(t, store, "b", core.NewDate(2024, 4, 1), core.Expense, 10000, core.VatLow)

	// A stale cached Q1 must not be exported.
	vatCache.Set("vat:2024-Q1", report.QuarterlyVatReport{Year: 2024, Quarter: 1})

	msg := amqp.NewTransactionChangedMessage(amqp.ActionUpdated, "a",
		core.NewDate(2024, 2, 1), core.NewDate(2024, 3, 1), core.NewDate(2024, 4, 1))
	if err := w.HandleTransactionChanged(ctx, msg); err != nil {
		t.Fatalf("HandleTransactionChanged: %v", err)
	}

	if exporter.Writes() != 2 {
		t.Fatalf("expected one export per quarter, got %d", exporter.Writes())
	}
	q1, ok := exporter.Report("2024-Q1")
	if !ok || q1.TotalVatDue.Cents != 2100 {
		t.Errorf("Q1 export = %+v, ok=%v", q1, ok)
	}
	q2, ok := exporter.Report("2024-Q2")
	if !ok || q2.TotalVatDue.Cents != -900 || q2.Payable() {
		t.Errorf("Q2 export = %+v, ok=%v", q2, ok)
	}
}

func TestHandleTransactionChanged_ExportErrorIsReturned(t *testing.T) {
	store := storemem.New()
	reports := services.NewReportService(store, services.ReportCaches{})
	w := NewReportWorker(reports, failingExporter{}, store)

	msg := amqp.NewTransactionChangedMessage(amqp.ActionCreated, "x", core.NewDate(2024, 1, 1))
	if err := w.HandleTransactionChanged(context.Background(), msg); err == nil {
		t.Fatal("expected export error so the message is requeued")
	}
}

func TestExportYear_SkipsFutureQuarters(t *testing.T) {
	w, _, exporter, _ := newTestWorker(t)

	if err := w.ExportYear(context.Background(), 2024); err != nil {
		t.Fatalf("ExportYear: %v", err)
	}
	labels := exporter.Labels()
	if len(labels) != 2 || labels[0] != "2024-Q1" || labels[1] != "2024-Q2" {
		t.Fatalf("expected Q1 and Q2 only, got %v", labels)
	}

	if err := w.ExportYear(context.Background(), 1492); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestExportFiscalYear(t *testing.T) {
	w, store, exporter, vatCache := newTestWorker(t)
	ctx := context.Background()

	s, err := store.GetOrCreateSettings(ctx)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	s.FiscalYear = 2023
	if _, err := store.UpdateSettings(ctx, s); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	storeTx(t, store, "q3", core.NewDate(2023, 8, 1), core.Income, 10000, core.VatHigh)
	// Backup exports read the store, never a cached copy.
	vatCache.Set("vat:2023-Q3", report.QuarterlyVatReport{Year: 2023, Quarter: 3})

	if err := w.ExportFiscalYear(ctx); err != nil {
		t.Fatalf("ExportFiscalYear: %v", err)
	}
	if got := exporter.Labels(); len(got) != 4 || got[3] != "2023-Q4" {
		t.Fatalf("expected all 2023 quarters, got %v", got)
	}
	if q3, _ := exporter.Report("2023-Q3"); q3.TotalVatDue.Cents != 2100 {
		t.Errorf("Q3 exported from stale cache: %+v", q3)
	}
}

type countingExporter struct {
	calls atomic.Int32
}

func (c *countingExporter) ExportFiscalYear(context.Context) error {
	c.calls.Add(1)
	return nil
}

func TestExportProcessor_Lifecycle(t *testing.T) {
	exporter := &countingExporter{}
	p := NewExportProcessor(exporter, ExportProcessorConfig{Interval: 10 * time.Millisecond})

	if p.IsRunning() {
		t.Fatal("processor should not be running initially")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}

	deadline := time.Now().Add(2 * time.Second)
	for exporter.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if exporter.calls.Load() < 2 {
		t.Fatalf("expected startup and periodic exports, got %d", exporter.calls.Load())
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.IsRunning() {
		t.Error("processor should not be running after Stop")
	}
}

func TestExportProcessor_StopNotRunning(t *testing.T) {
	p := NewExportProcessor(&countingExporter{}, ExportProcessorConfig{})
	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
	if p.config.Interval != time.Hour {
		t.Errorf("expected default interval, got %v", p.config.Interval)
	}
}
