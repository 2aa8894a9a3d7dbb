// Package memory provides an in-process Store, optionally persisted to a
// JSON file so data survives restarts during local development.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"boekhouding/internal/core"
	"boekhouding/internal/storage"
)

type Store struct {
	mu           sync.Mutex
	path         string // empty when not persisted
	transactions map[string]core.Transaction
	relations    map[string]core.Relation
	lastNumber   int64
	settings     *core.CompanySettings
}

// snapshot is the on-disk layout of a persisted store.
type snapshot struct {
	Transactions []core.Transaction    `json:"transactions"`
	Relations    []core.Relation       `json:"relations"`
	LastNumber   int64                 `json:"lastRelationNumber"`
	Settings     *core.CompanySettings `json:"settings,omitempty"`
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		transactions: make(map[string]core.Transaction),
		relations:    make(map[string]core.Relation),
	}
}

// NewFromFile loads path if it exists and writes every change back to it.
func NewFromFile(path string) (*Store, error) {
	s := New()
	s.path = path

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return s, nil
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for _, tx := range snap.Transactions {
		tx.ApplyVat()
		s.transactions[tx.ID] = tx
	}
	for _, r := range snap.Relations {
		s.relations[r.ID] = r
		s.lastNumber = max(s.lastNumber, r.Number)
	}
	s.lastNumber = max(s.lastNumber, snap.LastNumber)
	s.settings = snap.Settings

	slog.Info("Memory store loaded",
		"path", path,
		"transactions", len(s.transactions),
		"relations", len(s.relations))
	return s, nil
}

func (s *Store) FindTransactions(_ context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		if !f.From.IsZero() && tx.Date.Before(f.From.Time) {
			continue
		}
		if !f.To.IsZero() && tx.Date.After(f.To.Time) {
			continue
		}
		if f.Type != "" && tx.Type != f.Type {
			continue
		}
		if f.RelationID != "" && tx.RelationID != f.RelationID {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, core.NewNotFoundError("transaction", id)
	}
	return tx, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transactions[tx.ID]; exists {
		return core.Transaction{}, core.NewStorageError("create transaction", fmt.Errorf("duplicate id %q", tx.ID))
	}
	now := time.Now().UTC()
	tx.CreatedAt, tx.UpdatedAt = now, now
	tx.ApplyVat()
	s.transactions[tx.ID] = tx
	if err := s.commitLocked("create transaction", func() { delete(s.transactions, tx.ID) }); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.transactions[tx.ID]
	if !ok {
		return core.Transaction{}, core.NewNotFoundError("transaction", tx.ID)
	}
	tx.CreatedAt = current.CreatedAt
	tx.UpdatedAt = time.Now().UTC()
	tx.ApplyVat()
	s.transactions[tx.ID] = tx
	if err := s.commitLocked("update transaction", func() { s.transactions[tx.ID] = current }); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.transactions[id]
	if !ok {
		return core.NewNotFoundError("transaction", id)
	}
	delete(s.transactions, id)
	return s.commitLocked("delete transaction", func() { s.transactions[id] = current })
}

func (s *Store) FindRelations(_ context.Context, f storage.RelationFilter) ([]core.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]core.Relation, 0, len(s.relations))
	for _, r := range s.relations {
		if needle != "" &&
			!strings.Contains(strings.ToLower(r.Name), needle) &&
			!strings.Contains(strings.ToLower(r.City), needle) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *Store) GetRelation(_ context.Context, id string) (core.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.relations[id]
	if !ok {
		return core.Relation{}, core.NewNotFoundError("relation", id)
	}
	return r, nil
}

// CreateRelation assigns max(last issued, highest existing) + 1 while
// holding the store lock.
func (s *Store) CreateRelation(_ context.Context, r core.Relation) (core.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.relations[r.ID]; exists {
		return core.Relation{}, core.NewStorageError("create relation", fmt.Errorf("duplicate id %q", r.ID))
	}

	highest := s.lastNumber
	for _, existing := range s.relations {
		highest = max(highest, existing.Number)
	}
	previous := s.lastNumber
	r.Number = highest + 1
	s.lastNumber = r.Number

	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	s.relations[r.ID] = r
	if err := s.commitLocked("create relation", func() {
		delete(s.relations, r.ID)
		s.lastNumber = previous
	}); err != nil {
		return core.Relation{}, err
	}
	return r, nil
}

func (s *Store) UpdateRelation(_ context.Context, r core.Relation) (core.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.relations[r.ID]
	if !ok {
		return core.Relation{}, core.NewNotFoundError("relation", r.ID)
	}
	r.Number = current.Number
	r.CreatedAt = current.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	s.relations[r.ID] = r
	if err := s.commitLocked("update relation", func() { s.relations[r.ID] = current }); err != nil {
		return core.Relation{}, err
	}
	return r, nil
}

func (s *Store) DeleteRelation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.relations[id]
	if !ok {
		return core.NewNotFoundError("relation", id)
	}
	delete(s.relations, id)
	return s.commitLocked("delete relation", func() { s.relations[id] = current })
}

func (s *Store) GetOrCreateSettings(_ context.Context) (core.CompanySettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		def := core.DefaultCompanySettings()
		def.UpdatedAt = time.Now().UTC()
		s.settings = &def
		if err := s.commitLocked("create settings", func() { s.settings = nil }); err != nil {
			return core.CompanySettings{}, err
		}
	}
	return *s.settings, nil
}

func (s *Store) UpdateSettings(_ context.Context, cs core.CompanySettings) (core.CompanySettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.settings
	cs.UpdatedAt = time.Now().UTC()
	s.settings = &cs
	if err := s.commitLocked("update settings", func() { s.settings = previous }); err != nil {
		return core.CompanySettings{}, err
	}
	return cs, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// commitLocked persists the change just applied to the maps, running undo
// when the write fails so memory keeps matching the file.
func (s *Store) commitLocked(op string, undo func()) error {
	if err := s.saveLocked(op); err != nil {
		undo()
		return err
	}
	return nil
}

// saveLocked writes the snapshot atomically. Callers hold s.mu.
func (s *Store) saveLocked(op string) error {
	if s.path == "" {
		return nil
	}
	snap := snapshot{
		LastNumber: s.lastNumber,
		Settings:   s.settings,
	}
	for _, tx := range s.transactions {
		snap.Transactions = append(snap.Transactions, tx)
	}
	sort.Slice(snap.Transactions, func(i, j int) bool { return snap.Transactions[i].ID < snap.Transactions[j].ID })
	for _, r := range s.relations {
		snap.Relations = append(snap.Relations, r)
	}
	sort.Slice(snap.Relations, func(i, j int) bool { return snap.Relations[i].Number < snap.Relations[j].Number })

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return core.NewStorageError(op, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return core.NewStorageError(op, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return core.NewStorageError(op, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return core.NewStorageError(op, err)
	}
	return nil
}
