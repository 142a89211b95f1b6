package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is how often a recurring transaction materializes.
type Frequency string

const (
	// FreqDaily materializes every day.
	FreqDaily Frequency = "daily"
	// FreqWeekly materializes every seven days.
	FreqWeekly Frequency = "weekly"
	// FreqMonthly materializes on the same day each month.
	FreqMonthly Frequency = "monthly"
	// FreqYearly materializes on the same day each year.
	FreqYearly Frequency = "yearly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FreqDaily, FreqWeekly, FreqMonthly, FreqYearly:
		return true
	}
	return false
}

// Next returns the occurrence after t for this frequency.
func (f Frequency) Next(t time.Time) time.Time {
	switch f {
	case FreqDaily:
		return t.AddDate(0, 0, 1)
	case FreqWeekly:
		return t.AddDate(0, 0, 7)
	case FreqMonthly:
		return t.AddDate(0, 1, 0)
	case FreqYearly:
		return t.AddDate(1, 0, 0)
	}
	return t
}

// RecurringTransaction is a template that the materializer expands into
// ordinary transactions as occurrences come due.
type RecurringTransaction struct {
	ID            int64           `json:"id"`
	Type          string          `json:"type"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	Note          string          `json:"note,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Frequency     Frequency       `json:"frequency"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       *time.Time      `json:"end_date,omitempty"`
	NextDue       time.Time       `json:"next_due"`

	IsDeleted    bool  `json:"is_deleted"`
	LastModified int64 `json:"last_modified"`
}

// Validate checks the recurring transaction has usable field values.
func (rt *RecurringTransaction) Validate() error {
	if rt.Type != TypeExpense && rt.Type != TypeIncome {
		return fmt.Errorf("type must be %q or %q (got %q)", TypeExpense, TypeIncome, rt.Type)
	}
	if rt.Category == "" {
		return fmt.Errorf("category is required")
	}
	if !rt.Frequency.Valid() {
		return fmt.Errorf("unknown frequency %q", rt.Frequency)
	}
	if rt.StartDate.IsZero() {
		return fmt.Errorf("start_date is required")
	}
	if rt.EndDate != nil && rt.EndDate.Before(rt.StartDate) {
		return fmt.Errorf("end_date is before start_date")
	}
	return nil
}

// Active reports whether the template should still materialize at now.
func (rt *RecurringTransaction) Active(now time.Time) bool {
	if rt.IsDeleted || now.Before(rt.StartDate) {
		return false
	}
	return rt.EndDate == nil || !now.After(*rt.EndDate)
}

// LocalKey returns the stringified local id used for remote addressing.
func (rt *RecurringTransaction) LocalKey() string {
	return strconv.FormatInt(rt.ID, 10)
}

// Record converts the recurring transaction to its sync-neutral form.
func (rt *RecurringTransaction) Record() (Record, error) {
	fields, err := encodeFields(rt)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Key:          rt.LocalKey(),
		Fields:       fields,
		IsDeleted:    rt.IsDeleted,
		LastModified: rt.LastModified,
	}, nil
}

// RecurringFromRecord rebuilds a recurring transaction from its sync-neutral form.
func RecurringFromRecord(r Record) (*RecurringTransaction, error) {
	var rt RecurringTransaction
	if err := decodeFields(r.Fields, &rt); err != nil {
		return nil, fmt.Errorf("invalid recurring record %q: %w", r.Key, err)
	}
	if rt.ID == 0 {
		id, err := strconv.ParseInt(r.Key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid recurring key %q: %w", r.Key, err)
		}
		rt.ID = id
	}
	rt.IsDeleted = r.IsDeleted
	rt.LastModified = r.LastModified
	return &rt, nil
}
