package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Olooce/ledgerly/internal/ledger"
)

// GetPreferences returns the single preferences row, or the defaults when the
// row has never been written.
func (db *DB) GetPreferences(ctx context.Context) (*ledger.Preferences, error) {
	row := db.conn.QueryRowContext(ctx, `
	SELECT currency, date_format, theme, default_account, first_day_of_month, is_deleted, last_modified
	FROM preferences WHERE id = 1`)

	var (
		p       ledger.Preferences
		deleted int
	)
	err := row.Scan(&p.Currency, &p.DateFormat, &p.Theme, &p.DefaultAccount, &p.FirstDayOfMonth, &deleted, &p.LastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.DefaultPreferences(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	p.IsDeleted = deleted != 0
	return &p, nil
}

// UpsertPreferences writes the single preferences row.
// The caller owns LastModified; SetPreferences is the user write path.
func (db *DB) UpsertPreferences(ctx context.Context, p *ledger.Preferences) error {
	query := `
	INSERT INTO preferences (id, currency, date_format, theme, default_account, first_day_of_month, is_deleted, last_modified)
	VALUES (1, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		currency = excluded.currency,
		date_format = excluded.date_format,
		theme = excluded.theme,
		default_account = excluded.default_account,
		first_day_of_month = excluded.first_day_of_month,
		is_deleted = excluded.is_deleted,
		last_modified = excluded.last_modified
	`
	_, err := db.conn.ExecContext(ctx, query,
		p.Currency, p.DateFormat, p.Theme, p.DefaultAccount, p.FirstDayOfMonth,
		boolToInt(p.IsDeleted), p.LastModified)
	if err != nil {
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}
	return nil
}

// SetPreferences writes preferences for a user edit, stamping last-modified to now.
func (db *DB) SetPreferences(ctx context.Context, p *ledger.Preferences) error {
	p.IsDeleted = false
	p.LastModified = ledger.NowMillis()
	return db.UpsertPreferences(ctx, p)
}

// hasPreferencesRow reports whether the preferences row has ever been written.
func (db *DB) hasPreferencesRow(ctx context.Context) (bool, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM preferences WHERE id = 1`).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to count preferences: %w", err)
	}
	return n > 0, nil
}
