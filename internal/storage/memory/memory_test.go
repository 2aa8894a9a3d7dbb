package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"boekhouding/internal/core"
	"boekhouding/internal/storage"
)

func TestMemoryStoreRelationNumbering(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i, id := range []string{"a", "b", "c"} {
		r, err := s.CreateRelation(ctx, core.Relation{ID: id, Name: id})
		if err != nil || r.Number != int64(i+1) {
			t.Fatalf("unexpected create: r=%+v err=%v", r, err)
		}
	}

	// Gaps are not refilled.
	if err := s.DeleteRelation(ctx, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	r, _ := s.CreateRelation(ctx, core.Relation{ID: "d", Name: "d"})
	if r.Number != 4 {
		t.Fatalf("expected 4, got %d", r.Number)
	}

	// Neither is the highest one.
	if err := s.DeleteRelation(ctx, "d"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	r, _ = s.CreateRelation(ctx, core.Relation{ID: "e", Name: "e"})
	if r.Number != 5 {
		t.Fatalf("expected 5, got %d", r.Number)
	}
}

func TestMemoryStoreTransactions(t *testing.T) {
	ctx := context.Background()
	s := New()

	seed := []core.Transaction{
		{ID: "1", Date: core.NewDate(2024, 5, 1), Type: core.Income, VatRate: core.VatHigh, AmountExclVat: core.Money{Cents: 10000}},
		{ID: "2", Date: core.NewDate(2024, 5, 1), Type: core.Expense, VatRate: core.VatLow, AmountExclVat: core.Money{Cents: 5000}},
		{ID: "3", Date: core.NewDate(2023, 1, 1), Type: core.Income, VatRate: core.VatNone, AmountExclVat: core.Money{Cents: 700}},
	}
	for _, tx := range seed {
		if _, err := s.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, _ := s.FindTransactions(ctx, storage.TransactionFilter{})
	if len(got) != 3 || got[0].ID != "2" || got[1].ID != "1" || got[2].ID != "3" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[1].VatAmount.Cents != 2100 || got[1].AmountInclVat.Cents != 12100 {
		t.Fatalf("vat not applied: %+v", got[1])
	}

	got, _ = s.FindTransactions(ctx, storage.TransactionFilter{}.ForYear(2023))
	if len(got) != 1 || got[0].ID != "3" {
		t.Fatalf("year filter: %+v", got)
	}

	if _, err := s.UpdateTransaction(ctx, core.Transaction{ID: "missing"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.DeleteTransaction(ctx, "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetTransaction(ctx, "1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreSearchRelations(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.CreateRelation(ctx, core.Relation{ID: "a", Name: "Bakkerij Jansen", City: "Utrecht"})
	s.CreateRelation(ctx, core.Relation{ID: "b", Name: "Garage Smit", City: "Zeist"})

	got, _ := s.FindRelations(ctx, storage.RelationFilter{Search: "zEiSt"})
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("unexpected search result: %+v", got)
	}
}

func TestNewFromFilePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "data.json")

	s, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.CreateTransaction(ctx, core.Transaction{
		ID: "tx", Date: core.NewDate(2024, 2, 3), Description: "Lunch", Type: core.Expense,
		VatRate: core.VatLow, AmountExclVat: core.Money{Cents: 4999},
	})
	s.CreateRelation(ctx, core.Relation{ID: "r1", Name: "A"})
	s.CreateRelation(ctx, core.Relation{ID: "r2", Name: "B"})
	s.DeleteRelation(ctx, "r2")
	settings, _ := s.GetOrCreateSettings(ctx)
	settings.CompanyName = "Persisted B.V."
	s.UpdateSettings(ctx, settings)

	reloaded, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	tx, err := reloaded.GetTransaction(ctx, "tx")
	if err != nil || tx.Date.String() != "2024-02-03" || tx.VatAmount.Cents != 450 {
		t.Fatalf("transaction not restored: %+v err=%v", tx, err)
	}
	got, _ := reloaded.GetOrCreateSettings(ctx)
	if got.CompanyName != "Persisted B.V." {
		t.Fatalf("settings not restored: %+v", got)
	}
	r, _ := reloaded.CreateRelation(ctx, core.Relation{ID: "r3", Name: "C"})
	if r.Number != 3 {
		t.Fatalf("sequence not restored, got number %d", r.Number)
	}
}

func TestFailedSaveLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.json")

	s, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	tx := core.Transaction{
		ID: "tx", Date: core.NewDate(2024, 2, 3), Description: "Lunch", Type: core.Expense,
		VatRate: core.VatLow, AmountExclVat: core.Money{Cents: 4999},
	}
	if _, err := s.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if _, err := s.CreateRelation(ctx, core.Relation{ID: "r1", Name: "A"}); err != nil {
		t.Fatalf("create relation: %v", err)
	}

	// A directory in place of the temp file makes every write fail.
	if err := os.Mkdir(path+".tmp", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if _, err := s.CreateTransaction(ctx, core.Transaction{ID: "tx2", Date: tx.Date, Description: "x", Type: core.Income, VatRate: core.VatNone}); !errors.Is(err, core.ErrStorage) {
		t.Fatalf("create: expected storage error, got %v", err)
	}
	if _, err := s.GetTransaction(ctx, "tx2"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("failed create must not stay in memory, got %v", err)
	}

	changed := tx
	changed.Description = "Diner"
	if _, err := s.UpdateTransaction(ctx, changed); !errors.Is(err, core.ErrStorage) {
		t.Fatalf("update: expected storage error, got %v", err)
	}
	if got, _ := s.GetTransaction(ctx, "tx"); got.Description != "Lunch" {
		t.Errorf("failed update must be undone, got %q", got.Description)
	}

	if err := s.DeleteTransaction(ctx, "tx"); !errors.Is(err, core.ErrStorage) {
		t.Fatalf("delete: expected storage error, got %v", err)
	}
	if _, err := s.GetTransaction(ctx, "tx"); err != nil {
		t.Errorf("failed delete must be undone: %v", err)
	}

	if _, err := s.CreateRelation(ctx, core.Relation{ID: "r2", Name: "B"}); !errors.Is(err, core.ErrStorage) {
		t.Fatalf("create relation: expected storage error, got %v", err)
	}
	if err := s.DeleteRelation(ctx, "r1"); !errors.Is(err, core.ErrStorage) {
		t.Fatalf("delete relation: expected storage error, got %v", err)
	}
	if _, err := s.GetOrCreateSettings(ctx); !errors.Is(err, core.ErrStorage) {
		t.Fatalf("settings: expected storage error, got %v", err)
	}

	if err := os.Remove(path + ".tmp"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	r, err := s.CreateRelation(ctx, core.Relation{ID: "r2", Name: "B"})
	if err != nil {
		t.Fatalf("create relation after recovery: %v", err)
	}
	if r.Number != 2 {
		t.Errorf("failed create must not consume a number, got %d", r.Number)
	}
	if _, err := s.GetRelation(ctx, "r1"); err != nil {
		t.Errorf("failed delete of r1 must be undone: %v", err)
	}
}
