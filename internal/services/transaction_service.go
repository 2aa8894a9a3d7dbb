package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"boekhouding/internal/amqp"
	"boekhouding/internal/core"
	"boekhouding/internal/report"
	"boekhouding/internal/storage"
)

// Publisher announces transaction changes to other processes.
type Publisher interface {
	PublishTransactionChanged(ctx context.Context, msg *amqp.TransactionChangedMessage) error
}

// TransactionService validates and stores transactions, then invalidates
// cached reports and publishes a change event. Publishing is best effort:
// the transaction is already stored when it runs.
type TransactionService struct {
	store     storage.Store
	reports   *ReportService
	publisher Publisher
}

// NewTransactionService wires the service. reports and publisher may be nil.
func NewTransactionService(store storage.Store, reports *ReportService, publisher Publisher) *TransactionService {
	return &TransactionService{store: store, reports: reports, publisher: publisher}
}

// List returns the filtered transactions, newest first, with relation names.
func (s *TransactionService) List(ctx context.Context, f storage.TransactionFilter) ([]report.TransactionView, error) {
	txs, err := s.store.FindTransactions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	relations, err := s.store.FindRelations(ctx, storage.RelationFilter{})
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	return toViews(txs, relations), nil
}

func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// Create assigns an ID, derives VAT and stores tx.
func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx = normalizeTransaction(tx)
	if err := s.validate(ctx, tx, ""); err != nil {
		return core.Transaction{}, err
	}
	tx.ID = uuid.NewString()
	tx.ApplyVat()

	created, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	s.changed(ctx, amqp.ActionCreated, created.ID, created.Date)
	return created, nil
}

// Update replaces the editable fields of an existing transaction.
func (s *TransactionService) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	current, err := s.store.GetTransaction(ctx, tx.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	tx = normalizeTransaction(tx)
	if err := s.validate(ctx, tx, current.RelationID); err != nil {
		return core.Transaction{}, err
	}
	tx.ApplyVat()

	updated, err := s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	// Moving a transaction to another date makes both periods stale.
	s.changed(ctx, amqp.ActionUpdated, updated.ID, current.Date, updated.Date)
	return updated, nil
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	current, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.changed(ctx, amqp.ActionDeleted, id, current.Date)
	return nil
}

// validate checks tx and, when the link changes, that its relation exists.
// A link kept from storedRelationID may point at a deleted relation.
func (s *TransactionService) validate(ctx context.Context, tx core.Transaction, storedRelationID string) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if tx.RelationID == "" || tx.RelationID == storedRelationID {
		return nil
	}
	if _, err := s.store.GetRelation(ctx, tx.RelationID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NewValidationError("relationId", "refers to an unknown relation")
		}
		return fmt.Errorf("check relation: %w", err)
	}
	return nil
}

func (s *TransactionService) changed(ctx context.Context, action amqp.Action, id string, dates ...core.Date) {
	if s.reports != nil {
		s.reports.Invalidate(ctx, dates...)
	}
	if s.publisher == nil {
		return
	}
	msg := amqp.NewTransactionChangedMessage(action, id, dates...)
	if err := s.publisher.PublishTransactionChanged(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction change",
			"transaction_id", id,
			"action", action,
			"error", err)
	}
}

func normalizeTransaction(tx core.Transaction) core.Transaction {
	tx.Description = strings.TrimSpace(tx.Description)
	tx.Category = strings.TrimSpace(tx.Category)
	tx.RelationID = strings.TrimSpace(tx.RelationID)
	if t, err := core.ParseTransactionType(string(tx.Type)); err == nil {
		tx.Type = t
	}
	if r, err := core.ParseVatRate(string(tx.VatRate)); err == nil {
		tx.VatRate = r
	}
	return tx
}

func toViews(txs []core.Transaction, relations []core.Relation) []report.TransactionView {
	names := make(map[string]string, len(relations))
	for _, r := range relations {
		names[r.ID] = r.Name
	}
	views := make([]report.TransactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, report.NewTransactionView(tx, names))
	}
	return views
}
