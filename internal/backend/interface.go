// Package backend assembles the store, report caches, change publisher
// and VAT exporter selected by configuration.
package backend

import (
	"context"
	"errors"
	"sync"
	"time"

	"boekhouding/internal/amqp"
	"boekhouding/internal/services"
	"boekhouding/internal/sheets"
	gsheet "boekhouding/internal/sheets/google"
	"boekhouding/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Backend holds the wired infrastructure. Close releases it in reverse
// order of creation.
type Backend struct {
	Store  storage.Store
	Caches services.ReportCaches
	// AMQP is nil when no broker is configured.
	AMQP *amqp.Client

	mu       sync.Mutex
	cleanups []CleanupFunc
	closed   bool
}

// Publisher returns the change publisher, or nil without a broker. The
// explicit nil keeps a nil *amqp.Client out of the interface.
func (b *Backend) Publisher() services.Publisher {
	if b.AMQP == nil {
		return nil
	}
	return b.AMQP
}

func (b *Backend) addCleanup(fn CleanupFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleanups = append(b.cleanups, fn)
}

// Close runs every cleanup once and joins their errors.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		if err := b.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens the store, builds the caches and connects to the
	// broker when one is configured.
	CreateBackend(ctx context.Context, config Config) (*Backend, error)
	// CreateExporter returns the Google Sheets exporter, or an in-memory
	// one when no spreadsheet is configured.
	CreateExporter(ctx context.Context, config Config) (sheets.VatReportExporter, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type StoreType

	SQLiteDBPath   string
	DatabaseURL    string
	MySQLDSN       string
	MemoryDataFile string

	CacheBackend         CacheBackend
	CacheSize            int
	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration
	RedisURL             string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	Sheets gsheet.Config
}

// StoreType selects where transactions are kept.
type StoreType string

const (
	MemoryStore   StoreType = "memory"
	SQLiteStore   StoreType = "sqlite"
	PostgresStore StoreType = "postgres"
	MySQLStore    StoreType = "mysql"
)

// String implements fmt.Stringer
func (st StoreType) String() string {
	return string(st)
}

// IsValid returns true if the store type is valid
func (st StoreType) IsValid() bool {
	switch st {
	case MemoryStore, SQLiteStore, PostgresStore, MySQLStore:
		return true
	default:
		return false
	}
}

// CacheBackend selects the report cache implementation.
type CacheBackend string

const (
	LRUCache   CacheBackend = "lru"
	RedisCache CacheBackend = "redis"
)
