package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ExportProcessorConfig holds configuration for the export processor
type ExportProcessorConfig struct {
	// Interval is how often the fiscal year is exported again (default: 1h)
	Interval time.Duration
}

// DefaultExportProcessorConfig returns sensible defaults
func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{Interval: time.Hour}
}

// FiscalYearExporter is implemented by ReportWorker.
type FiscalYearExporter interface {
	ExportFiscalYear(ctx context.Context) error
}

// ExportProcessor periodically re-exports the fiscal year so the sheet
// converges even when change events were missed.
type ExportProcessor struct {
	exporter FiscalYearExporter
	config   ExportProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewExportProcessor(exporter FiscalYearExporter, config ExportProcessorConfig) *ExportProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultExportProcessorConfig().Interval
	}
	return &ExportProcessor{exporter: exporter, config: config}
}

// Start begins the export loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Export processor started", "interval", p.config.Interval)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Export processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ExportProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// Export immediately on startup
	p.export(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.export(ctx)
		}
	}
}

func (p *ExportProcessor) export(ctx context.Context) {
	if err := p.exporter.ExportFiscalYear(ctx); err != nil {
		slog.ErrorContext(ctx, "Periodic VAT export failed", "error", err)
	}
}
