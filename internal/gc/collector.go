// Package gc reclaims storage consumed by soft-deleted rows once they pass
// the retention threshold, locally and remotely.
//
// Collection is fire-and-forget cleanup: failures are logged and retried next
// cycle, never surfaced to a caller. Correctness never depends on timely
// cleanup, only on the retention bound being eventually honored - tombstones
// must outlive the threshold so every device sees the deletion before the row
// is erased.
package gc

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/Olooce/ledgerly/internal/auth"
	"github.com/Olooce/ledgerly/internal/ledger"
	"github.com/Olooce/ledgerly/internal/remote"
)

// DefaultRetention is how long tombstones are kept before erasure.
const DefaultRetention = 30 * 24 * time.Hour

// LocalStore is the slice of the local database the collector depends on.
// *store.DB satisfies it.
type LocalStore interface {
	DeleteExpiredTombstones(ctx context.Context, kind ledger.Kind, cutoff int64) (int64, error)
}

// RemoteStore is the slice of the cloud store the collector depends on.
// *remote.Store satisfies it.
type RemoteStore interface {
	TombstonesOlderThan(ctx context.Context, collection ledger.Kind, ownerID string, cutoff int64) ([]remote.Ref, error)
	BatchDelete(ctx context.Context, refs []remote.Ref) error
}

// Collector erases expired tombstones from both stores.
type Collector struct {
	local     LocalStore
	remote    RemoteStore
	auth      auth.Provider
	retention time.Duration
	logger    *log.Logger

	now func() time.Time // test seam
}

// New creates a Collector.
//
// retention <= 0 means DefaultRetention. If logger is nil, a default logger
// writing to stderr is used.
func New(local LocalStore, remoteStore RemoteStore, provider auth.Provider, retention time.Duration, logger *log.Logger) *Collector {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[gc] ", log.LstdFlags)
	}
	return &Collector{
		local:     local,
		remote:    remoteStore,
		auth:      provider,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Collect runs one cleanup pass over both stores.
//
// The local and remote passes are independent: an error in one is logged and
// doesn't abort the other, and nothing is returned to the caller. The remote
// pass runs only when a session is authenticated; rows tombstoned while
// signed out wait for the next signed-in cycle.
func (c *Collector) Collect(ctx context.Context) {
	cutoff := ledger.Millis(c.now().Add(-c.retention))

	c.collectLocal(ctx, cutoff)
	c.collectRemote(ctx, cutoff)
}

func (c *Collector) collectLocal(ctx context.Context, cutoff int64) {
	var total int64
	for _, kind := range ledger.RowKinds() {
		n, err := c.local.DeleteExpiredTombstones(ctx, kind, cutoff)
		if err != nil {
			c.logger.Printf("WARNING: local cleanup of %s failed: %v", kind, err)
			continue
		}
		total += n
	}
	if total > 0 {
		c.logger.Printf("Erased %d expired local tombstones", total)
	}
}

func (c *Collector) collectRemote(ctx context.Context, cutoff int64) {
	if !c.auth.IsAuthenticated() {
		return
	}
	ownerID := c.auth.OwnerID()

	// One atomic batch across all three collections, committed only when
	// non-empty.
	var batch []remote.Ref
	for _, kind := range ledger.RowKinds() {
		refs, err := c.remote.TombstonesOlderThan(ctx, kind, ownerID, cutoff)
		if err != nil {
			c.logger.Printf("WARNING: remote cleanup query of %s failed: %v", kind, err)
			return
		}
		batch = append(batch, refs...)
	}
	if len(batch) == 0 {
		return
	}

	if err := c.remote.BatchDelete(ctx, batch); err != nil {
		c.logger.Printf("WARNING: remote cleanup commit failed: %v", err)
		return
	}
	c.logger.Printf("Erased %d expired remote tombstones", len(batch))
}
