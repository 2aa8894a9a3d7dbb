package storage

import "testing"

func TestRebind(t *testing.T) {
	q := "SELECT id FROM transactions WHERE date >= ? AND date <= ? LIMIT ?"
	if got := DialectSQLite.rebind(q); got != q {
		t.Fatalf("sqlite must keep '?': %s", got)
	}
	if got := DialectMySQL.rebind(q); got != q {
		t.Fatalf("mysql must keep '?': %s", got)
	}
	want := "SELECT id FROM transactions WHERE date >= $1 AND date <= $2 LIMIT $3"
	if got := DialectPostgres.rebind(q); got != want {
		t.Fatalf("postgres got %s", got)
	}
}

func TestInsertIgnore(t *testing.T) {
	cases := map[Dialect]string{
		DialectSQLite:   "INSERT INTO t (id, a) VALUES (?, ?) ON CONFLICT (id) DO NOTHING",
		DialectPostgres: "INSERT INTO t (id, a) VALUES (?, ?) ON CONFLICT (id) DO NOTHING",
		DialectMySQL:    "INSERT IGNORE INTO t (id, a) VALUES (?, ?)",
	}
	for d, want := range cases {
		if got := d.insertIgnore("t", "id, a", 2); got != want {
			t.Fatalf("%s: got %q", d, got)
		}
	}
}

func TestDialectIsValid(t *testing.T) {
	for _, d := range []Dialect{DialectSQLite, DialectPostgres, DialectMySQL} {
		if !d.IsValid() {
			t.Fatalf("%s should be valid", d)
		}
	}
	if Dialect("oracle").IsValid() {
		t.Fatalf("oracle should be invalid")
	}
}
