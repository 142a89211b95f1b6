package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Olooce/ledgerly/internal/ledger"
	"github.com/shopspring/decimal"
)

// InsertRecurring adds a new recurring transaction and assigns its local id.
// NextDue is initialized to the start date when unset.
func (db *DB) InsertRecurring(ctx context.Context, rt *ledger.RecurringTransaction) error {
	if err := rt.Validate(); err != nil {
		return fmt.Errorf("invalid recurring transaction: %w", err)
	}
	if rt.NextDue.IsZero() {
		rt.NextDue = rt.StartDate
	}
	rt.LastModified = ledger.NowMillis()

	res, err := db.conn.ExecContext(ctx, `
	INSERT INTO recurring_transactions
		(type, category, amount, note, payment_method, frequency, start_date, end_date, next_due, is_deleted, last_modified)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		rt.Type,
		rt.Category,
		rt.Amount.String(),
		rt.Note,
		rt.PaymentMethod,
		string(rt.Frequency),
		rt.StartDate.Format(time.RFC3339),
		timeToNullString(rt.EndDate),
		rt.NextDue.Format(time.RFC3339),
		rt.LastModified,
	)
	if err != nil {
		return fmt.Errorf("failed to insert recurring transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read recurring transaction id: %w", err)
	}
	rt.ID = id
	return nil
}

// UpsertRecurring inserts or replaces a recurring transaction by its local id.
// The caller owns LastModified.
func (db *DB) UpsertRecurring(ctx context.Context, rt *ledger.RecurringTransaction) error {
	query := `
	INSERT INTO recurring_transactions
		(id, type, category, amount, note, payment_method, frequency, start_date, end_date, next_due, is_deleted, last_modified)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		type = excluded.type,
		category = excluded.category,
		amount = excluded.amount,
		note = excluded.note,
		payment_method = excluded.payment_method,
		frequency = excluded.frequency,
		start_date = excluded.start_date,
		end_date = excluded.end_date,
		next_due = excluded.next_due,
		is_deleted = excluded.is_deleted,
		last_modified = excluded.last_modified
	`
	_, err := db.conn.ExecContext(ctx, query,
		rt.ID,
		rt.Type,
		rt.Category,
		rt.Amount.String(),
		rt.Note,
		rt.PaymentMethod,
		string(rt.Frequency),
		rt.StartDate.Format(time.RFC3339),
		timeToNullString(rt.EndDate),
		rt.NextDue.Format(time.RFC3339),
		boolToInt(rt.IsDeleted),
		rt.LastModified,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert recurring transaction %d: %w", rt.ID, err)
	}
	return nil
}

// ListRecurring returns all live recurring transactions.
func (db *DB) ListRecurring(ctx context.Context) ([]*ledger.RecurringTransaction, error) {
	return db.listRecurring(ctx, false)
}

// ListRecurringWithDeleted returns every recurring row including tombstones.
func (db *DB) ListRecurringWithDeleted(ctx context.Context) ([]*ledger.RecurringTransaction, error) {
	return db.listRecurring(ctx, true)
}

func (db *DB) listRecurring(ctx context.Context, includeDeleted bool) ([]*ledger.RecurringTransaction, error) {
	query := `
	SELECT id, type, category, amount, note, payment_method, frequency, start_date, end_date, next_due, is_deleted, last_modified
	FROM recurring_transactions`
	if !includeDeleted {
		query += ` WHERE is_deleted = 0`
	}
	query += ` ORDER BY id`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring transactions: %w", err)
	}
	defer rows.Close()

	var out []*ledger.RecurringTransaction
	for rows.Next() {
		var (
			rt        ledger.RecurringTransaction
			amount    string
			frequency string
			start     string
			end       sql.NullString
			next      string
			deleted   int
		)
		if err := rows.Scan(&rt.ID, &rt.Type, &rt.Category, &amount, &rt.Note, &rt.PaymentMethod,
			&frequency, &start, &end, &next, &deleted, &rt.LastModified); err != nil {
			return nil, fmt.Errorf("failed to scan recurring transaction: %w", err)
		}
		rt.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
		}
		rt.Frequency = ledger.Frequency(frequency)
		rt.StartDate, err = time.Parse(time.RFC3339, start)
		if err != nil {
			return nil, fmt.Errorf("invalid start_date %q: %w", start, err)
		}
		rt.EndDate, err = parseNullTime(end)
		if err != nil {
			return nil, err
		}
		rt.NextDue, err = time.Parse(time.RFC3339, next)
		if err != nil {
			return nil, fmt.Errorf("invalid next_due %q: %w", next, err)
		}
		rt.IsDeleted = deleted != 0
		out = append(out, &rt)
	}
	return out, rows.Err()
}

// SoftDeleteRecurring marks a recurring transaction as deleted at the given timestamp.
func (db *DB) SoftDeleteRecurring(ctx context.Context, id, timestamp int64) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE recurring_transactions SET is_deleted = 1, last_modified = ? WHERE id = ?`,
		timestamp, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete recurring transaction %d: %w", id, err)
	}
	return nil
}
