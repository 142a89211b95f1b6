package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Budget is a spending limit for one category in one period.
//
// The local key is composite: category plus a period label such as "2026-08".
// The remote document key joins both with an underscore.
type Budget struct {
	Category string          `json:"category"`
	Period   string          `json:"period"`
	Amount   decimal.Decimal `json:"amount"`

	IsDeleted    bool  `json:"is_deleted"`
	LastModified int64 `json:"last_modified"`
}

// Validate checks the budget has usable field values.
func (b *Budget) Validate() error {
	if b.Category == "" {
		return fmt.Errorf("category is required")
	}
	if strings.Contains(b.Category, "_") {
		return fmt.Errorf("category must not contain %q (got %q)", "_", b.Category)
	}
	if b.Period == "" {
		return fmt.Errorf("period is required")
	}
	if b.Amount.IsNegative() {
		return fmt.Errorf("amount must not be negative (got %s)", b.Amount)
	}
	return nil
}

// LocalKey returns the composite category_period key.
func (b *Budget) LocalKey() string {
	return BudgetKey(b.Category, b.Period)
}

// BudgetKey derives the composite key for a category and period label.
func BudgetKey(category, period string) string {
	return category + "_" + period
}

// SplitBudgetKey splits a composite budget key back into category and period.
// The category itself never contains an underscore, so the split is on the
// first one.
func SplitBudgetKey(key string) (category, period string, err error) {
	category, period, ok := strings.Cut(key, "_")
	if !ok || category == "" || period == "" {
		return "", "", fmt.Errorf("invalid budget key %q", key)
	}
	return category, period, nil
}

// Record converts the budget to its sync-neutral form.
func (b *Budget) Record() (Record, error) {
	fields, err := encodeFields(b)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Key:          b.LocalKey(),
		Fields:       fields,
		IsDeleted:    b.IsDeleted,
		LastModified: b.LastModified,
	}, nil
}

// BudgetFromRecord rebuilds a budget from its sync-neutral form.
func BudgetFromRecord(r Record) (*Budget, error) {
	var b Budget
	if err := decodeFields(r.Fields, &b); err != nil {
		return nil, fmt.Errorf("invalid budget record %q: %w", r.Key, err)
	}
	if b.Category == "" || b.Period == "" {
		category, period, err := SplitBudgetKey(r.Key)
		if err != nil {
			return nil, err
		}
		b.Category, b.Period = category, period
	}
	b.IsDeleted = r.IsDeleted
	b.LastModified = r.LastModified
	return &b, nil
}
