package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"boekhouding/internal/backend"
	"boekhouding/internal/cli"
	apphttp "boekhouding/internal/http"
	applog "boekhouding/internal/log"
	"boekhouding/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp, os.Stdout)

	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	b, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}

	reports := services.NewReportService(b.Store, b.Caches)
	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RequestTimeout:     cfg.RequestTimeout,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, apphttp.Deps{
		Store:        b.Store,
		Transactions: services.NewTransactionService(b.Store, reports, b.Publisher()),
		Relations:    services.NewRelationService(b.Store),
		Settings:     services.NewSettingsService(b.Store),
		Reports:      reports,
		Caches:       b.Caches,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := b.Close(); err != nil {
			logger.Error("Backend close error", applog.FieldError, err)
		}
	})

	logger.Info("Starting boekhouding server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"cache", cfg.CacheBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_ = b.Close()
		cli.Fatal(logger, "Server error", err)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
