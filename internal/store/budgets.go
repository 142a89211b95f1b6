package store

import (
	"context"
	"fmt"

	"github.com/Olooce/ledgerly/internal/ledger"
	"github.com/shopspring/decimal"
)

// UpsertBudget inserts or replaces a budget by its composite key.
// The caller owns LastModified; SetBudget is the write path for user edits.
func (db *DB) UpsertBudget(ctx context.Context, b *ledger.Budget) error {
	query := `
	INSERT INTO budgets (category, period, amount, is_deleted, last_modified)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(category, period) DO UPDATE SET
		amount = excluded.amount,
		is_deleted = excluded.is_deleted,
		last_modified = excluded.last_modified
	`
	_, err := db.conn.ExecContext(ctx, query,
		b.Category, b.Period, b.Amount.String(), boolToInt(b.IsDeleted), b.LastModified)
	if err != nil {
		return fmt.Errorf("failed to upsert budget %s: %w", b.LocalKey(), err)
	}
	return nil
}

// SetBudget validates and writes a budget for a user edit, stamping
// last-modified to now and clearing any tombstone.
func (db *DB) SetBudget(ctx context.Context, b *ledger.Budget) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("invalid budget: %w", err)
	}
	b.IsDeleted = false
	b.LastModified = ledger.NowMillis()
	return db.UpsertBudget(ctx, b)
}

// ListBudgets returns all live budgets.
func (db *DB) ListBudgets(ctx context.Context) ([]*ledger.Budget, error) {
	return db.listBudgets(ctx, false)
}

// ListBudgetsWithDeleted returns every budget row including tombstones.
func (db *DB) ListBudgetsWithDeleted(ctx context.Context) ([]*ledger.Budget, error) {
	return db.listBudgets(ctx, true)
}

func (db *DB) listBudgets(ctx context.Context, includeDeleted bool) ([]*ledger.Budget, error) {
	query := `SELECT category, period, amount, is_deleted, last_modified FROM budgets`
	if !includeDeleted {
		query += ` WHERE is_deleted = 0`
	}
	query += ` ORDER BY period DESC, category`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Budget
	for rows.Next() {
		var (
			b       ledger.Budget
			amount  string
			deleted int
		)
		if err := rows.Scan(&b.Category, &b.Period, &amount, &deleted, &b.LastModified); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		b.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
		}
		b.IsDeleted = deleted != 0
		out = append(out, &b)
	}
	return out, rows.Err()
}

// SoftDeleteBudget marks a budget as deleted at the given timestamp.
func (db *DB) SoftDeleteBudget(ctx context.Context, category, period string, timestamp int64) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE budgets SET is_deleted = 1, last_modified = ? WHERE category = ? AND period = ?`,
		timestamp, category, period)
	if err != nil {
		return fmt.Errorf("failed to soft delete budget %s_%s: %w", category, period, err)
	}
	return nil
}
