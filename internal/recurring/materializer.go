// Package recurring expands recurring-transaction templates into ordinary
// transactions as their occurrences come due. Driven by the scheduler's daily
// job; safe to run more often, work is cursor-based and idempotent per
// occurrence.
package recurring

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Olooce/ledgerly/internal/ledger"
)

// Store is the slice of the local database the materializer depends on.
// *store.DB satisfies it.
type Store interface {
	ListRecurring(ctx context.Context) ([]*ledger.RecurringTransaction, error)
	InsertTransaction(ctx context.Context, t *ledger.Transaction) error
	UpsertRecurring(ctx context.Context, rt *ledger.RecurringTransaction) error
}

// Materializer writes due occurrences of recurring transactions.
type Materializer struct {
	store  Store
	logger *log.Logger

	now func() time.Time // test seam
}

// New creates a Materializer.
// If logger is nil, a default logger writing to stderr is used.
func New(store Store, logger *log.Logger) *Materializer {
	if logger == nil {
		logger = log.New(os.Stderr, "[recurring] ", log.LstdFlags)
	}
	return &Materializer{store: store, logger: logger, now: time.Now}
}

// Run materializes every occurrence due at or before now, advancing each
// template's NextDue cursor past the occurrences it wrote. A template whose
// end date has passed simply stops producing; it is not deleted.
func (m *Materializer) Run(ctx context.Context) error {
	templates, err := m.store.ListRecurring(ctx)
	if err != nil {
		return fmt.Errorf("failed to read recurring transactions: %w", err)
	}

	now := m.now()
	var created int
	for _, rt := range templates {
		n, err := m.materialize(ctx, rt, now)
		if err != nil {
			return err
		}
		created += n
	}

	if created > 0 {
		m.logger.Printf("Materialized %d due occurrences", created)
	}
	return nil
}

func (m *Materializer) materialize(ctx context.Context, rt *ledger.RecurringTransaction, now time.Time) (int, error) {
	var created int
	for !rt.NextDue.After(now) {
		if rt.EndDate != nil && rt.NextDue.After(*rt.EndDate) {
			break
		}
		t := &ledger.Transaction{
			Type:          rt.Type,
			Category:      rt.Category,
			Amount:        rt.Amount,
			Date:          rt.NextDue,
			Note:          rt.Note,
			PaymentMethod: rt.PaymentMethod,
		}
		if err := m.store.InsertTransaction(ctx, t); err != nil {
			return created, fmt.Errorf("failed to materialize occurrence of %d: %w", rt.ID, err)
		}
		rt.NextDue = rt.Frequency.Next(rt.NextDue)
		created++
	}

	if created > 0 {
		rt.LastModified = ledger.NowMillis()
		if err := m.store.UpsertRecurring(ctx, rt); err != nil {
			return created, fmt.Errorf("failed to advance recurring transaction %d: %w", rt.ID, err)
		}
	}
	return created, nil
}
