package backend

import (
	"context"
	"fmt"
	"time"

	"boekhouding/internal/amqp"
	"boekhouding/internal/cache"
	applog "boekhouding/internal/log"
	"boekhouding/internal/report"
	"boekhouding/internal/services"
	"boekhouding/internal/sheets"
	gsheet "boekhouding/internal/sheets/google"
	memsheet "boekhouding/internal/sheets/memory"
	"boekhouding/internal/storage"
	"boekhouding/internal/storage/memory"
)

const (
	defaultCacheSize       = 256
	defaultCacheTTL        = 10 * time.Minute
	defaultCleanupInterval = 5 * time.Minute
	redisKeyPrefix         = "boekhouding:"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	b := &Backend{}
	store, err := f.openStore(ctx, config)
	if err != nil {
		return nil, err
	}
	b.Store = store
	b.addCleanup(store.Close)

	if err := f.createCaches(ctx, config, b); err != nil {
		_ = b.Close()
		return nil, err
	}

	// The broker is optional: the API keeps working without it and the
	// worker's periodic export catches up later.
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change events",
				applog.FieldError, err)
		} else {
			b.AMQP = client
			b.addCleanup(client.Close)
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.InfoContext(ctx, "Backend ready",
		"store", config.Type,
		"cache", cacheBackendOrDefault(config.CacheBackend),
		"amqp_enabled", b.AMQP != nil)
	return b, nil
}

func (f *DefaultFactory) openStore(ctx context.Context, config Config) (storage.Store, error) {
	switch config.Type {
	case MemoryStore:
		if config.MemoryDataFile == "" {
			return memory.New(), nil
		}
		store, err := memory.NewFromFile(config.MemoryDataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load memory store: %w", err)
		}
		return store, nil
	case SQLiteStore:
		return openRepository(ctx, storage.DialectSQLite, config.SQLiteDBPath)
	case PostgresStore:
		return openRepository(ctx, storage.DialectPostgres, config.DatabaseURL)
	case MySQLStore:
		return openRepository(ctx, storage.DialectMySQL, config.MySQLDSN)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func openRepository(ctx context.Context, dialect storage.Dialect, dsn string) (storage.Store, error) {
	repo, err := storage.Open(ctx, dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s repository: %w", dialect, err)
	}
	return repo, nil
}

func (f *DefaultFactory) createCaches(ctx context.Context, config Config, b *Backend) error {
	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	if config.CacheBackend == RedisCache {
		client, err := cache.NewRedisClient(ctx, config.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to initialize redis cache: %w", err)
		}
		b.addCleanup(client.Close)
		b.Caches = services.ReportCaches{
			Vat:           cache.NewRedisCache[report.QuarterlyVatReport](client, redisKeyPrefix, ttl, f.logger.Logger),
			ProfitAndLoss: cache.NewRedisCache[report.ProfitAndLoss](client, redisKeyPrefix, ttl, f.logger.Logger),
		}
		return nil
	}

	size := config.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	vat := cache.NewLRUCache[report.QuarterlyVatReport](size, ttl)
	pl := cache.NewLRUCache[report.ProfitAndLoss](size, ttl)
	b.Caches = services.ReportCaches{Vat: vat, ProfitAndLoss: pl}

	interval := config.CacheCleanupInterval
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	manager := cache.NewManager(f.logger.WithComponent(applog.ComponentCache).Logger)
	manager.Register(vat)
	manager.Register(pl)
	manager.StartCleanup(interval)
	b.addCleanup(func() error {
		manager.Stop()
		return nil
	})
	return nil
}

// CreateExporter implements Factory.CreateExporter
func (f *DefaultFactory) CreateExporter(ctx context.Context, config Config) (sheets.VatReportExporter, error) {
	if config.Sheets.SpreadsheetID == "" {
		f.logger.WarnContext(ctx, "No spreadsheet configured, VAT reports are kept in memory only")
		return memsheet.New(), nil
	}
	exporter, err := gsheet.New(ctx, config.Sheets)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets exporter: %w", err)
	}
	return exporter, nil
}

func cacheBackendOrDefault(c CacheBackend) CacheBackend {
	if c == "" {
		return LRUCache
	}
	return c
}
