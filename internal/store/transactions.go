package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Olooce/ledgerly/internal/ledger"
	"github.com/shopspring/decimal"
)

// InsertTransaction adds a new transaction and assigns its local id.
// The last-modified timestamp is set to now.
func (db *DB) InsertTransaction(ctx context.Context, t *ledger.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	tagsJSON, err := json.Marshal(t.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	t.LastModified = ledger.NowMillis()

	res, err := db.conn.ExecContext(ctx, `
	INSERT INTO transactions (type, category, amount, date, note, payment_method, tags, is_deleted, last_modified)
	VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		t.Type,
		t.Category,
		t.Amount.String(),
		t.Date.Format(time.RFC3339),
		t.Note,
		t.PaymentMethod,
		string(tagsJSON),
		t.LastModified,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read transaction id: %w", err)
	}
	t.ID = id
	return nil
}

// UpsertTransaction inserts or replaces a transaction by its local id.
// Used by the sync pull path and by edits; the caller owns LastModified.
func (db *DB) UpsertTransaction(ctx context.Context, t *ledger.Transaction) error {
	tagsJSON, err := json.Marshal(t.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
	INSERT INTO transactions (id, type, category, amount, date, note, payment_method, tags, is_deleted, last_modified)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		type = excluded.type,
		category = excluded.category,
		amount = excluded.amount,
		date = excluded.date,
		note = excluded.note,
		payment_method = excluded.payment_method,
		tags = excluded.tags,
		is_deleted = excluded.is_deleted,
		last_modified = excluded.last_modified
	`

	_, err = db.conn.ExecContext(ctx, query,
		t.ID,
		t.Type,
		t.Category,
		t.Amount.String(),
		t.Date.Format(time.RFC3339),
		t.Note,
		t.PaymentMethod,
		string(tagsJSON),
		boolToInt(t.IsDeleted),
		t.LastModified,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert transaction %d: %w", t.ID, err)
	}
	return nil
}

// ListTransactions returns all live (non-tombstoned) transactions, newest first.
func (db *DB) ListTransactions(ctx context.Context) ([]*ledger.Transaction, error) {
	return db.listTransactions(ctx, false)
}

// ListTransactionsWithDeleted returns every transaction row including
// tombstones, so deletions can propagate on push.
func (db *DB) ListTransactionsWithDeleted(ctx context.Context) ([]*ledger.Transaction, error) {
	return db.listTransactions(ctx, true)
}

func (db *DB) listTransactions(ctx context.Context, includeDeleted bool) ([]*ledger.Transaction, error) {
	query := `
	SELECT id, type, category, amount, date, note, payment_method, tags, is_deleted, last_modified
	FROM transactions`
	if !includeDeleted {
		query += ` WHERE is_deleted = 0`
	}
	query += ` ORDER BY date DESC, id DESC`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTransaction returns one transaction by id, tombstoned or not.
// Returns sql.ErrNoRows via the wrap if it doesn't exist.
func (db *DB) GetTransaction(ctx context.Context, id int64) (*ledger.Transaction, error) {
	row := db.conn.QueryRowContext(ctx, `
	SELECT id, type, category, amount, date, note, payment_method, tags, is_deleted, last_modified
	FROM transactions WHERE id = ?`, id)

	t, err := scanTransaction(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %d: %w", id, err)
	}
	return t, nil
}

// SoftDeleteTransaction marks a transaction as deleted at the given timestamp.
// The row is retained as a tombstone until garbage collected.
func (db *DB) SoftDeleteTransaction(ctx context.Context, id, timestamp int64) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE transactions SET is_deleted = 1, last_modified = ? WHERE id = ?`,
		timestamp, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete transaction %d: %w", id, err)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (*ledger.Transaction, error) {
	var (
		t        ledger.Transaction
		amount   string
		date     string
		tagsJSON sql.NullString
		deleted  int
	)
	if err := s.Scan(&t.ID, &t.Type, &t.Category, &amount, &date, &t.Note, &t.PaymentMethod, &tagsJSON, &deleted, &t.LastModified); err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	var err error
	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	t.Date, err = time.Parse(time.RFC3339, date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	if tagsJSON.Valid && tagsJSON.String != "" && tagsJSON.String != "null" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &t.Tags); err != nil {
			return nil, fmt.Errorf("invalid tags %q: %w", tagsJSON.String, err)
		}
	}
	t.IsDeleted = deleted != 0
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
