package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"boekhouding/internal/core"
	"boekhouding/internal/report"
	"boekhouding/internal/storage"
)

// RelationDetail is a relation with its transactions, newest first.
type RelationDetail struct {
	core.Relation
	Transactions []report.TransactionView `json:"transactions"`
}

type RelationService struct {
	store storage.Store
}

func NewRelationService(store storage.Store) *RelationService {
	return &RelationService{store: store}
}

func (s *RelationService) List(ctx context.Context, search string) ([]core.Relation, error) {
	rels, err := s.store.FindRelations(ctx, storage.RelationFilter{Search: search})
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	return rels, nil
}

func (s *RelationService) Detail(ctx context.Context, id string) (RelationDetail, error) {
	rel, err := s.store.GetRelation(ctx, id)
	if err != nil {
		return RelationDetail{}, err
	}
	txs, err := s.store.FindTransactions(ctx, storage.TransactionFilter{RelationID: id})
	if err != nil {
		return RelationDetail{}, fmt.Errorf("list relation transactions: %w", err)
	}
	return RelationDetail{
		Relation:     rel,
		Transactions: toViews(txs, []core.Relation{rel}),
	}, nil
}

// Create stores r under a fresh ID; the store assigns the number.
func (s *RelationService) Create(ctx context.Context, r core.Relation) (core.Relation, error) {
	r = normalizeRelation(r)
	if err := r.Validate(); err != nil {
		return core.Relation{}, err
	}
	r.ID = uuid.NewString()

	created, err := s.store.CreateRelation(ctx, r)
	if err != nil {
		return core.Relation{}, fmt.Errorf("create relation: %w", err)
	}
	return created, nil
}

func (s *RelationService) Update(ctx context.Context, r core.Relation) (core.Relation, error) {
	r = normalizeRelation(r)
	if err := r.Validate(); err != nil {
		return core.Relation{}, err
	}
	return s.store.UpdateRelation(ctx, r)
}

// Delete removes the relation. Its transactions keep the dangling
// reference and are shown without a relation name.
func (s *RelationService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteRelation(ctx, id)
}

func normalizeRelation(r core.Relation) core.Relation {
	r.Name = strings.TrimSpace(r.Name)
	r.Address = strings.TrimSpace(r.Address)
	r.PostalCode = strings.ToUpper(strings.TrimSpace(r.PostalCode))
	r.City = strings.TrimSpace(r.City)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = strings.TrimSpace(r.Email)
	r.VatNumber = strings.ToUpper(strings.TrimSpace(r.VatNumber))
	r.Notes = strings.TrimSpace(r.Notes)
	return r
}
