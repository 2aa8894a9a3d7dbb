package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// RunMigrations applies the embedded migrations for dialect. It uses its own
// connection because the migrate driver closes the handle it is given.
func RunMigrations(dialect Dialect, dsn string) error {
	if dialect == DialectMySQL {
		// Migration files hold several statements each.
		cfg, err := gomysql.ParseDSN(dsn)
		if err != nil {
			return fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.MultiStatements = true
		dsn = cfg.FormatDSN()
	}

	migrateDB, err := openDB(dialect, dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := migrationDriver(dialect, migrateDB)
	if err != nil {
		return fmt.Errorf("create %s driver: %w", dialect, err)
	}

	d, err := iofs.New(migrationsFS, "migrations/"+dialect.String())
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, dialect.String(), driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func migrationDriver(dialect Dialect, db *sql.DB) (database.Driver, error) {
	switch dialect {
	case DialectSQLite:
		return sqlite.WithInstance(db, &sqlite.Config{})
	case DialectPostgres:
		return migratepgx.WithInstance(db, &migratepgx.Config{})
	case DialectMySQL:
		return migratemysql.WithInstance(db, &migratemysql.Config{})
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}
