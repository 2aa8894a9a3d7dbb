package storage

import (
	"context"

	"boekhouding/internal/core"
)

// TransactionFilter narrows FindTransactions. Zero values mean "any".
type TransactionFilter struct {
	From       core.Date
	To         core.Date
	Type       core.TransactionType
	RelationID string
	Limit      int
}

// ForYear limits the filter to one calendar year.
func (f TransactionFilter) ForYear(year int) TransactionFilter {
	f.From = core.NewDate(year, 1, 1)
	f.To = core.NewDate(year, 12, 31)
	return f
}

// RelationFilter narrows FindRelations. Search matches name or city,
// case-insensitively.
type RelationFilter struct {
	Search string
}

// Ports implemented by every store.
type (
	// TransactionStore returns transactions newest first (date, then id
	// descending) with VAT fields recomputed on read.
	TransactionStore interface {
		FindTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id string) error
	}

	// RelationStore returns relations ordered by number. CreateRelation
	// assigns the next number under mutual exclusion.
	RelationStore interface {
		FindRelations(ctx context.Context, f RelationFilter) ([]core.Relation, error)
		GetRelation(ctx context.Context, id string) (core.Relation, error)
		CreateRelation(ctx context.Context, r core.Relation) (core.Relation, error)
		UpdateRelation(ctx context.Context, r core.Relation) (core.Relation, error)
		DeleteRelation(ctx context.Context, id string) error
	}

	SettingsStore interface {
		GetOrCreateSettings(ctx context.Context) (core.CompanySettings, error)
		UpdateSettings(ctx context.Context, s core.CompanySettings) (core.CompanySettings, error)
	}

	// Store bundles the three ports with lifecycle methods.
	Store interface {
		TransactionStore
		RelationStore
		SettingsStore
		Ping(ctx context.Context) error
		Close() error
	}
)
