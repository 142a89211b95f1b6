package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types.
const (
	TypeExpense = "expense"
	TypeIncome  = "income"
)

// Transaction is a single income or expense entry.
//
// The ID is assigned locally (SQLite rowid) and stringified for remote
// addressing, so two devices of the same user may assign the same id to
// different rows; last write wins on the remote document.
type Transaction struct {
	ID            int64           `json:"id"`
	Type          string          `json:"type"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	Note          string          `json:"note,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Tags          []string        `json:"tags,omitempty"`

	IsDeleted    bool  `json:"is_deleted"`
	LastModified int64 `json:"last_modified"`
}

// Validate checks the transaction has usable field values.
func (t *Transaction) Validate() error {
	if t.Type != TypeExpense && t.Type != TypeIncome {
		return fmt.Errorf("type must be %q or %q (got %q)", TypeExpense, TypeIncome, t.Type)
	}
	if t.Category == "" {
		return fmt.Errorf("category is required")
	}
	if t.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	return nil
}

// LocalKey returns the stringified local id used for remote addressing.
func (t *Transaction) LocalKey() string {
	return strconv.FormatInt(t.ID, 10)
}

// Record converts the transaction to its sync-neutral form.
func (t *Transaction) Record() (Record, error) {
	fields, err := encodeFields(t)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Key:          t.LocalKey(),
		Fields:       fields,
		IsDeleted:    t.IsDeleted,
		LastModified: t.LastModified,
	}, nil
}

// TransactionFromRecord rebuilds a transaction from its sync-neutral form.
func TransactionFromRecord(r Record) (*Transaction, error) {
	var t Transaction
	if err := decodeFields(r.Fields, &t); err != nil {
		return nil, fmt.Errorf("invalid transaction record %q: %w", r.Key, err)
	}
	if t.ID == 0 {
		id, err := strconv.ParseInt(r.Key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid transaction key %q: %w", r.Key, err)
		}
		t.ID = id
	}
	t.IsDeleted = r.IsDeleted
	t.LastModified = r.LastModified
	return &t, nil
}
