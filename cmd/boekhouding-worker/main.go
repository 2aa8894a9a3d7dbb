package main

import (
	"context"
	"errors"
	"os"
	"time"

	"boekhouding/internal/backend"
	"boekhouding/internal/cli"
	applog "boekhouding/internal/log"
	"boekhouding/internal/services"
	"boekhouding/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker, os.Stdout)
	logger.Info("Starting boekhouding-worker")

	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Warn("No AMQP_URL configured, relying on periodic exports only")
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	factory := backend.NewFactory(logger)
	b, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}
	exporter, err := factory.CreateExporter(context.Background(), backendCfg)
	if err != nil {
		_ = b.Close()
		cli.Fatal(logger, "Failed to initialize exporter", err)
	}

	reports := services.NewReportService(b.Store, b.Caches)
	reportWorker := worker.NewReportWorker(reports, exporter, b.Store)
	processor := worker.NewExportProcessor(reportWorker, worker.ExportProcessorConfig{
		Interval: cfg.ExportInterval,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Export processor stop error", applog.FieldError, err)
		}
		if err := b.Close(); err != nil {
			logger.Error("Backend close error", applog.FieldError, err)
		}
	})

	// The processor exports the fiscal year right away, which covers
	// changes made while the worker was down.
	if err := processor.Start(ctx); err != nil {
		cli.Fatal(logger, "Failed to start export processor", err)
	}

	if b.AMQP != nil {
		go func() {
			err := b.AMQP.ConsumeTransactionChanged(ctx, reportWorker.HandleTransactionChanged)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", applog.FieldError, err)
			}
		}()
	}

	<-ctx.Done()
	<-done
	logger.Info("Worker stopped gracefully")
}
