package backend

import (
	"fmt"

	"boekhouding/internal/config"
	gsheet "boekhouding/internal/sheets/google"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	storeType := StoreType(appConfig.DataBackend)
	if !storeType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	cfg := Config{
		Type: storeType,

		SQLiteDBPath:   appConfig.SQLiteDBPath,
		DatabaseURL:    appConfig.DatabaseURL,
		MySQLDSN:       appConfig.MySQLDSN,
		MemoryDataFile: appConfig.MemoryDataFile,

		CacheBackend: CacheBackend(appConfig.CacheBackend),
		CacheSize:    appConfig.CacheSize,
		CacheTTL:     appConfig.CacheTTL,
		RedisURL:     appConfig.RedisURL,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		Sheets: gsheet.Config{
			SpreadsheetID:   appConfig.GoogleSpreadsheetID,
			SheetName:       appConfig.GoogleVatSheetName,
			CredentialsJSON: appConfig.GoogleServiceAccountJSON,
			CredentialsFile: appConfig.GoogleServiceAccountFile,
		},
	}
	return cfg, cfg.Validate()
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s (valid: %v)", c.Type, GetStoreTypes())
	}

	switch c.Type {
	case SQLiteStore:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresStore:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres backend")
		}
	case MySQLStore:
		if c.MySQLDSN == "" {
			return fmt.Errorf("MySQL DSN is required for mysql backend")
		}
	case MemoryStore:
		// An empty data file keeps everything in memory only.
	}

	switch c.CacheBackend {
	case "", LRUCache:
	case RedisCache:
		if c.RedisURL == "" {
			return fmt.Errorf("redis URL is required for the redis cache")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s", c.CacheBackend)
	}

	return nil
}

// GetStoreTypes returns all valid store types
func GetStoreTypes() []StoreType {
	return []StoreType{MemoryStore, SQLiteStore, PostgresStore, MySQLStore}
}
