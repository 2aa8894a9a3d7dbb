package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"boekhouding/internal/core"
)

const relationColumns = `id, number, name, address, postal_code, city, phone, email,
	vat_number, notes, created_at, updated_at`

func (r *Repository) FindRelations(ctx context.Context, f RelationFilter) ([]core.Relation, error) {
	query := "SELECT " + relationColumns + " FROM relations"
	var args []any
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		query += " WHERE LOWER(name) LIKE ? OR LOWER(city) LIKE ?"
		args = append(args, pattern, pattern)
	}
	query += " ORDER BY number ASC"

	rows, err := r.query(ctx, r.db, query, args...)
	if err != nil {
		return nil, core.NewStorageError("find relations", err)
	}
	defer rows.Close()

	var out []core.Relation
	for rows.Next() {
		rel, err := scanRelation(rows)
		if err != nil {
			return nil, core.NewStorageError("scan relation", err)
		}
		out = append(out, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("iterate relations", err)
	}
	return out, nil
}

func (r *Repository) GetRelation(ctx context.Context, id string) (core.Relation, error) {
	row := r.queryRow(ctx, r.db, "SELECT "+relationColumns+" FROM relations WHERE id = ?", id)
	rel, err := scanRelation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Relation{}, core.NewNotFoundError("relation", id)
	}
	if err != nil {
		return core.Relation{}, core.NewStorageError("get relation", err)
	}
	return rel, nil
}

// CreateRelation assigns the next relation number and inserts the row in a
// single transaction. The sequence row is locked first so concurrent
// creators across processes are serialized; the UNIQUE constraint on
// number backs this up.
func (r *Repository) CreateRelation(ctx context.Context, rel core.Relation) (core.Relation, error) {
	r.numberMu.Lock()
	defer r.numberMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Relation{}, core.NewStorageError("begin relation insert", err)
	}
	defer tx.Rollback()

	// A no-op write takes the row lock on every dialect.
	if _, err := r.exec(ctx, tx, "UPDATE relation_sequence SET last_number = last_number WHERE id = 1"); err != nil {
		return core.Relation{}, core.NewStorageError("lock relation sequence", err)
	}

	var last, highest int64
	if err := r.queryRow(ctx, tx, "SELECT last_number FROM relation_sequence WHERE id = 1").Scan(&last); err != nil {
		return core.Relation{}, core.NewStorageError("read relation sequence", err)
	}
	if err := r.queryRow(ctx, tx, "SELECT COALESCE(MAX(number), 0) FROM relations").Scan(&highest); err != nil {
		return core.Relation{}, core.NewStorageError("read max relation number", err)
	}
	rel.Number = max(last, highest) + 1

	if _, err := r.exec(ctx, tx, "UPDATE relation_sequence SET last_number = ? WHERE id = 1", rel.Number); err != nil {
		return core.Relation{}, core.NewStorageError("advance relation sequence", err)
	}

	now := time.Now().UTC()
	rel.CreatedAt, rel.UpdatedAt = now, now
	_, err = r.exec(ctx, tx, `INSERT INTO relations (`+relationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rel.ID, rel.Number, rel.Name, rel.Address, rel.PostalCode, rel.City, rel.Phone,
		rel.Email, rel.VatNumber, rel.Notes, formatTimestamp(now), formatTimestamp(now))
	if err != nil {
		return core.Relation{}, core.NewStorageError("create relation", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Relation{}, core.NewStorageError("commit relation", err)
	}

	slog.InfoContext(ctx, "Relation saved", "id", rel.ID, "number", rel.Number, "name", rel.Name)
	return rel, nil
}

// UpdateRelation rewrites the editable fields. Number and CreatedAt are kept.
func (r *Repository) UpdateRelation(ctx context.Context, rel core.Relation) (core.Relation, error) {
	current, err := r.GetRelation(ctx, rel.ID)
	if err != nil {
		return core.Relation{}, err
	}
	rel.Number = current.Number
	rel.CreatedAt = current.CreatedAt
	rel.UpdatedAt = time.Now().UTC()

	res, err := r.exec(ctx, r.db, `UPDATE relations SET name = ?, address = ?, postal_code = ?,
		city = ?, phone = ?, email = ?, vat_number = ?, notes = ?, updated_at = ? WHERE id = ?`,
		rel.Name, rel.Address, rel.PostalCode, rel.City, rel.Phone, rel.Email,
		rel.VatNumber, rel.Notes, formatTimestamp(rel.UpdatedAt), rel.ID)
	if err != nil {
		return core.Relation{}, core.NewStorageError("update relation", err)
	}
	if err := expectOneRow(res, "relation", rel.ID); err != nil {
		return core.Relation{}, err
	}
	return rel, nil
}

func (r *Repository) DeleteRelation(ctx context.Context, id string) error {
	res, err := r.exec(ctx, r.db, "DELETE FROM relations WHERE id = ?", id)
	if err != nil {
		return core.NewStorageError("delete relation", err)
	}
	if err := expectOneRow(res, "relation", id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Relation deleted", "id", id)
	return nil
}

func scanRelation(s rowScanner) (core.Relation, error) {
	var (
		rel              core.Relation
		created, updated string
	)
	err := s.Scan(&rel.ID, &rel.Number, &rel.Name, &rel.Address, &rel.PostalCode, &rel.City,
		&rel.Phone, &rel.Email, &rel.VatNumber, &rel.Notes, &created, &updated)
	if err != nil {
		return core.Relation{}, err
	}
	rel.CreatedAt = parseTimestamp(created)
	rel.UpdatedAt = parseTimestamp(updated)
	return rel, nil
}
