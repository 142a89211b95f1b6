package store

import (
	"context"
	"fmt"

	"github.com/Olooce/ledgerly/internal/ledger"
)

// ReadAll returns the live records of one entity kind in sync-neutral form.
func (db *DB) ReadAll(ctx context.Context, kind ledger.Kind) ([]ledger.Record, error) {
	return db.readAll(ctx, kind, false)
}

// ReadAllWithDeleted returns every record of one entity kind including
// tombstones. The sync push step uses this so deletions propagate.
func (db *DB) ReadAllWithDeleted(ctx context.Context, kind ledger.Kind) ([]ledger.Record, error) {
	return db.readAll(ctx, kind, true)
}

func (db *DB) readAll(ctx context.Context, kind ledger.Kind, includeDeleted bool) ([]ledger.Record, error) {
	switch kind {
	case ledger.KindTransaction:
		rows, err := db.listTransactions(ctx, includeDeleted)
		if err != nil {
			return nil, err
		}
		return collectRecords(len(rows), func(i int) (ledger.Record, error) { return rows[i].Record() })

	case ledger.KindBudget:
		rows, err := db.listBudgets(ctx, includeDeleted)
		if err != nil {
			return nil, err
		}
		return collectRecords(len(rows), func(i int) (ledger.Record, error) { return rows[i].Record() })

	case ledger.KindRecurring:
		rows, err := db.listRecurring(ctx, includeDeleted)
		if err != nil {
			return nil, err
		}
		return collectRecords(len(rows), func(i int) (ledger.Record, error) { return rows[i].Record() })

	case ledger.KindPreferences:
		ok, err := db.hasPreferencesRow(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		p, err := db.GetPreferences(ctx)
		if err != nil {
			return nil, err
		}
		if p.IsDeleted && !includeDeleted {
			return nil, nil
		}
		rec, err := p.Record()
		if err != nil {
			return nil, err
		}
		return []ledger.Record{rec}, nil
	}
	return nil, fmt.Errorf("unknown entity kind %q", kind)
}

func collectRecords(n int, record func(i int) (ledger.Record, error)) ([]ledger.Record, error) {
	out := make([]ledger.Record, 0, n)
	for i := 0; i < n; i++ {
		rec, err := record(i)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// UpsertRecord inserts or replaces one row by its local key, in sync-neutral
// form. The record's tombstone flag and timestamp are written as-is.
func (db *DB) UpsertRecord(ctx context.Context, kind ledger.Kind, rec ledger.Record) error {
	switch kind {
	case ledger.KindTransaction:
		t, err := ledger.TransactionFromRecord(rec)
		if err != nil {
			return err
		}
		return db.UpsertTransaction(ctx, t)

	case ledger.KindBudget:
		b, err := ledger.BudgetFromRecord(rec)
		if err != nil {
			return err
		}
		return db.UpsertBudget(ctx, b)

	case ledger.KindRecurring:
		rt, err := ledger.RecurringFromRecord(rec)
		if err != nil {
			return err
		}
		return db.UpsertRecurring(ctx, rt)

	case ledger.KindPreferences:
		p, err := ledger.PreferencesFromRecord(rec)
		if err != nil {
			return err
		}
		return db.UpsertPreferences(ctx, p)
	}
	return fmt.Errorf("unknown entity kind %q", kind)
}

// DeleteExpiredTombstones permanently erases rows of one kind that were
// soft-deleted before the cutoff (epoch milliseconds). Returns the number of
// rows erased.
func (db *DB) DeleteExpiredTombstones(ctx context.Context, kind ledger.Kind, cutoff int64) (int64, error) {
	var table string
	switch kind {
	case ledger.KindTransaction:
		table = "transactions"
	case ledger.KindBudget:
		table = "budgets"
	case ledger.KindRecurring:
		table = "recurring_transactions"
	default:
		return 0, fmt.Errorf("kind %q is not garbage collected", kind)
	}

	res, err := db.conn.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE is_deleted = 1 AND last_modified < ?`, table),
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to erase %s tombstones: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count erased %s tombstones: %w", kind, err)
	}
	return n, nil
}
