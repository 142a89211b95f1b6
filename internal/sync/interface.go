package sync

import (
	"context"

	"github.com/Olooce/ledgerly/internal/ledger"
	"github.com/Olooce/ledgerly/internal/remote"
)

// LocalStore is the slice of the local database the engine depends on.
//
// ReadAllWithDeleted must include tombstoned rows so deletions propagate on
// push. UpsertRecord replaces a row by its local key, writing the record's
// tombstone flag and timestamp as-is; the engine relies on the store's per-row
// write atomicity, nothing wraps a whole push+pull cycle.
//
// *store.DB satisfies this interface.
type LocalStore interface {
	// ReadAllWithDeleted returns every record of one entity kind,
	// tombstones included.
	ReadAllWithDeleted(ctx context.Context, kind ledger.Kind) ([]ledger.Record, error)

	// UpsertRecord inserts or replaces one row by its local key.
	UpsertRecord(ctx context.Context, kind ledger.Kind, rec ledger.Record) error
}

// RemoteStore is the slice of the cloud store the engine depends on.
//
// *remote.Store satisfies this interface; tests use an in-memory fake.
type RemoteStore interface {
	// MergeUpsert writes a document by its key with field-level merge
	// semantics. An existing tombstone whose last_modified is at least the
	// incoming write's stays deleted; a live row from a device that hasn't
	// pulled the deletion yet must not revive it. Writes carrying the
	// version stamp already stored are no-ops.
	MergeUpsert(ctx context.Context, collection ledger.Kind, doc remote.Document) error

	// QueryByOwner returns every document of one collection belonging to
	// the owner, tombstoned or not.
	QueryByOwner(ctx context.Context, collection ledger.Kind, ownerID string) ([]remote.Document, error)
}
