package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"boekhouding/internal/report"
)

// Exporter keeps the last exported report per quarter. It stands in for
// the spreadsheet during development and in tests.
type Exporter struct {
	mu      sync.Mutex
	reports map[string]report.QuarterlyVatReport
	writes  int
}

func New() *Exporter {
	return &Exporter{reports: map[string]report.QuarterlyVatReport{}}
}

// ExportVatReport stores r, replacing an earlier export of the same quarter.
func (e *Exporter) ExportVatReport(_ context.Context, r report.QuarterlyVatReport) (string, error) {
	if err := report.ValidateQuarter(r.Quarter); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reports[r.Label()] = r
	e.writes++
	return fmt.Sprintf("mem:%s", r.Label()), nil
}

// Report returns the last export for "2024-Q1" style labels.
func (e *Exporter) Report(label string) (report.QuarterlyVatReport, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.reports[label]
	return r, ok
}

// Labels lists the exported quarters in ascending order.
func (e *Exporter) Labels() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.reports))
	for l := range e.reports {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Writes counts ExportVatReport calls that succeeded.
func (e *Exporter) Writes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writes
}
