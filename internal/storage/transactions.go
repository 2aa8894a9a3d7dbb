package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"boekhouding/internal/core"
)

const transactionColumns = `id, date, description, type, amount_excl_vat_cents, vat_rate,
	vat_amount_cents, amount_incl_vat_cents, category, relation_id, created_at, updated_at`

func (r *Repository) FindTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.To.String())
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.RelationID != "" {
		where = append(where, "relation_id = ?")
		args = append(args, f.RelationID)
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.query(ctx, r.db, query, args...)
	if err != nil {
		return nil, core.NewStorageError("find transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, core.NewStorageError("scan transaction", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("iterate transactions", err)
	}
	return out, nil
}

func (r *Repository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.queryRow(ctx, r.db, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.NewNotFoundError("transaction", id)
	}
	if err != nil {
		return core.Transaction{}, core.NewStorageError("get transaction", err)
	}
	return tx, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	now := time.Now().UTC()
	tx.CreatedAt, tx.UpdatedAt = now, now
	tx.ApplyVat()

	_, err := r.exec(ctx, r.db, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Date.String(), tx.Description, string(tx.Type), tx.AmountExclVat.Cents,
		string(tx.VatRate), tx.VatAmount.Cents, tx.AmountInclVat.Cents, tx.Category,
		tx.RelationID, formatTimestamp(tx.CreatedAt), formatTimestamp(tx.UpdatedAt))
	if err != nil {
		return core.Transaction{}, core.NewStorageError("create transaction", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID,
		"dialect", r.dialect,
		"type", tx.Type,
		"date", tx.Date.String(),
		"amount_excl_vat_cents", tx.AmountExclVat.Cents)

	return tx, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	current, err := r.GetTransaction(ctx, tx.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.CreatedAt = current.CreatedAt
	tx.UpdatedAt = time.Now().UTC()
	tx.ApplyVat()

	res, err := r.exec(ctx, r.db, `UPDATE transactions SET date = ?, description = ?, type = ?,
		amount_excl_vat_cents = ?, vat_rate = ?, vat_amount_cents = ?, amount_incl_vat_cents = ?,
		category = ?, relation_id = ?, updated_at = ? WHERE id = ?`,
		tx.Date.String(), tx.Description, string(tx.Type), tx.AmountExclVat.Cents,
		string(tx.VatRate), tx.VatAmount.Cents, tx.AmountInclVat.Cents, tx.Category,
		tx.RelationID, formatTimestamp(tx.UpdatedAt), tx.ID)
	if err != nil {
		return core.Transaction{}, core.NewStorageError("update transaction", err)
	}
	if err := expectOneRow(res, "transaction", tx.ID); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.exec(ctx, r.db, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return core.NewStorageError("delete transaction", err)
	}
	if err := expectOneRow(res, "transaction", id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		tx                   core.Transaction
		date, txType, rate   string
		created, updated     string
		excl, vat, inclusive int64
	)
	err := s.Scan(&tx.ID, &date, &tx.Description, &txType, &excl, &rate,
		&vat, &inclusive, &tx.Category, &tx.RelationID, &created, &updated)
	if err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("row %s: %w", tx.ID, err)
	}
	tx.Date = d
	tx.Type = core.TransactionType(txType)
	tx.VatRate = core.VatRate(rate)
	tx.AmountExclVat = core.Money{Cents: excl}
	tx.CreatedAt = parseTimestamp(created)
	tx.UpdatedAt = parseTimestamp(updated)
	// Stored VAT columns are informational; the derived values always
	// follow from the base amount and rate.
	tx.ApplyVat()
	return tx, nil
}

func expectOneRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return core.NewStorageError("rows affected", err)
	}
	if n == 0 {
		return core.NewNotFoundError(entity, id)
	}
	return nil
}
