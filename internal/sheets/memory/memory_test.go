package memory

import (
	"context"
	"testing"

	"boekhouding/internal/core"
	"boekhouding/internal/report"
)

func TestExporterReplacesQuarter(t *testing.T) {
	e := New()
	ctx := context.Background()

	ref, err := e.ExportVatReport(ctx, report.QuarterlyVatReport{Year: 2024, Quarter: 2, TotalVatDue: core.Money{Cents: 100}})
	if err != nil || ref != "mem:2024-Q2" {
		t.Fatalf("unexpected export: ref=%q err=%v", ref, err)
	}
	if _, err := e.ExportVatReport(ctx, report.QuarterlyVatReport{Year: 2024, Quarter: 2, TotalVatDue: core.Money{Cents: 250}}); err != nil {
		t.Fatalf("second export: %v", err)
	}
	if _, err := e.ExportVatReport(ctx, report.QuarterlyVatReport{Year: 2024, Quarter: 1}); err != nil {
		t.Fatalf("third export: %v", err)
	}

	r, ok := e.Report("2024-Q2")
	if !ok || r.TotalVatDue.Cents != 250 {
		t.Fatalf("expected latest Q2 export, got %+v ok=%v", r, ok)
	}
	labels := e.Labels()
	if len(labels) != 2 || labels[0] != "2024-Q1" || labels[1] != "2024-Q2" {
		t.Fatalf("unexpected labels %v", labels)
	}
	if e.Writes() != 3 {
		t.Fatalf("expected 3 writes, got %d", e.Writes())
	}
}

func TestExporterRejectsInvalidQuarter(t *testing.T) {
	e := New()
	if _, err := e.ExportVatReport(context.Background(), report.QuarterlyVatReport{Year: 2024}); err == nil {
		t.Fatal("expected error for quarter 0")
	}
	if e.Writes() != 0 {
		t.Fatalf("failed export should not count")
	}
}
