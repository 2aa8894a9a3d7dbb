package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect names a supported SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

func (d Dialect) String() string {
	return string(d)
}

// IsValid reports whether d is a supported dialect.
func (d Dialect) IsValid() bool {
	switch d {
	case DialectSQLite, DialectPostgres, DialectMySQL:
		return true
	default:
		return false
	}
}

// rebind rewrites "?" placeholders into the dialect's bind syntax.
// Queries in this package never contain literal question marks.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// insertIgnore builds an INSERT that silently skips primary key conflicts.
func (d Dialect) insertIgnore(table, columns string, nargs int) string {
	values := strings.TrimSuffix(strings.Repeat("?, ", nargs), ", ")
	switch d {
	case DialectMySQL:
		return fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)", table, columns, values)
	default:
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO NOTHING", table, columns, values)
	}
}
