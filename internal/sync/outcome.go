package sync

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Olooce/ledgerly/internal/ledger"
)

// ErrNotAuthenticated is returned in every outcome when a sync is attempted
// without a valid session. Recovered by signing in; never fatal.
var ErrNotAuthenticated = errors.New("user not authenticated")

// ErrSyncInProgress rejects a trigger while another full sync is running.
// Not a failure of sync itself; the running sync is unaffected.
var ErrSyncInProgress = errors.New("sync already in progress")

// Outcome is the result of syncing one entity collection.
type Outcome struct {
	// Pulled is the number of remote rows pulled into the local store.
	Pulled int

	// Err is the first failure encountered (network, store, or codec),
	// nil on success.
	Err error
}

// OK reports whether the entity synced cleanly.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Result aggregates one outcome per entity collection for a full sync.
type Result struct {
	Outcomes map[ledger.Kind]Outcome
}

// IsSuccessful reports whether every entity outcome succeeded.
func (r Result) IsSuccessful() bool {
	for _, kind := range ledger.Kinds() {
		if !r.Outcomes[kind].OK() {
			return false
		}
	}
	return true
}

// Summary returns a human-readable sentence per failing entity, in sync
// order, e.g. "Transactions - connection refused. Budgets - timeout.".
// Empty when the sync was fully successful.
func (r Result) Summary() string {
	var parts []string
	for _, kind := range ledger.Kinds() {
		if out := r.Outcomes[kind]; !out.OK() {
			parts = append(parts, fmt.Sprintf("%s - %v.", kindLabel(kind), out.Err))
		}
	}
	return strings.Join(parts, " ")
}

// failAll returns a result with the same error applied to all four entities.
func failAll(err error) Result {
	outcomes := make(map[ledger.Kind]Outcome, len(ledger.Kinds()))
	for _, kind := range ledger.Kinds() {
		outcomes[kind] = Outcome{Err: err}
	}
	return Result{Outcomes: outcomes}
}

func kindLabel(kind ledger.Kind) string {
	switch kind {
	case ledger.KindTransaction:
		return "Transactions"
	case ledger.KindBudget:
		return "Budgets"
	case ledger.KindRecurring:
		return "Recurring transactions"
	case ledger.KindPreferences:
		return "Preferences"
	}
	return string(kind)
}
