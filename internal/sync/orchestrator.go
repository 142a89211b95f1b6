package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	stdsync "sync"

	"github.com/Olooce/ledgerly/internal/auth"
	"github.com/Olooce/ledgerly/internal/ledger"
)

// Orchestrator runs full syncs across all four entity collections and owns
// the single in-progress lock shared by every trigger path.
type Orchestrator struct {
	local  LocalStore
	remote RemoteStore
	auth   auth.Provider
	merge  MergePolicy
	logger *log.Logger

	running stdsync.Mutex
}

// New creates an Orchestrator.
//
// If merge is nil, RemoteWins is used. If logger is nil, a default logger
// writing to stderr is used.
//
// Example:
//
//	orch := sync.New(db, remoteStore, session, nil, nil)
//	result, err := orch.FullSync(ctx, deviceID)
func New(local LocalStore, remote RemoteStore, provider auth.Provider, merge MergePolicy, logger *log.Logger) *Orchestrator {
	if merge == nil {
		merge = RemoteWins
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Orchestrator{
		local:  local,
		remote: remote,
		auth:   provider,
		merge:  merge,
		logger: logger,
	}
}

// FullSync synchronizes all four entity collections sequentially, in fixed
// order, and returns one aggregated result.
//
// Returns ErrSyncInProgress when another full sync holds the lock; the caller
// decides whether to retry or report. Every other failure is carried inside
// the result, one outcome per entity. An unauthenticated caller gets four
// error outcomes and neither store is touched.
func (o *Orchestrator) FullSync(ctx context.Context, deviceID string) (Result, error) {
	if !o.running.TryLock() {
		return Result{}, ErrSyncInProgress
	}
	defer o.running.Unlock()

	return o.fullSyncLocked(ctx, deviceID), nil
}

func (o *Orchestrator) fullSyncLocked(ctx context.Context, deviceID string) (result Result) {
	if !o.auth.IsAuthenticated() {
		return failAll(ErrNotAuthenticated)
	}
	ownerID := o.auth.OwnerID()

	// Anything unexpected outside per-entity error handling blankets every
	// outcome with the same error.
	defer func() {
		if r := recover(); r != nil {
			o.logger.Printf("Full sync panicked: %v", r)
			result = failAll(fmt.Errorf("unexpected sync failure: %v", r))
		}
	}()

	o.logger.Printf("Starting full sync owner=%s device=%s", ownerID, deviceID)

	outcomes := make(map[ledger.Kind]Outcome, len(ledger.Kinds()))
	for _, kind := range ledger.Kinds() {
		es := &entitySyncer{
			kind:   kind,
			local:  o.local,
			remote: o.remote,
			merge:  o.merge,
			logger: o.logger,
		}
		out := es.sync(ctx, ownerID, deviceID)
		if !out.OK() {
			o.logger.Printf("WARNING: %s sync failed: %v", kind, out.Err)
		}
		outcomes[kind] = out
	}

	result = Result{Outcomes: outcomes}
	if result.IsSuccessful() {
		o.logger.Printf("Full sync complete")
	} else {
		o.logger.Printf("Full sync finished with errors: %s", result.Summary())
	}
	return result
}
