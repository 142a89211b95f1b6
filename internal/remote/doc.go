// Package remote provides the CouchDB-backed cloud store that mirrors the
// local database across devices.
//
// Every entity row becomes one document in a single database, addressed by
// collection, owner, and the row's remote key. Documents are stamped with the
// owner id (so all devices of one user share a dataset) and the originating
// device id (for observability only; conflicts are not resolved by device).
package remote

import (
	"fmt"

	"github.com/Olooce/ledgerly/internal/ledger"
)

// Document is the remote shape of one entity row.
//
// Fields carries the entity payload verbatim from the local record; the sync
// engine never interprets it. LastModified is epoch milliseconds, matching the
// local column.
type Document struct {
	ID  string `json:"_id"`
	Rev string `json:"_rev,omitempty"`

	Collection   string         `json:"collection"`
	OwnerID      string         `json:"owner_id"`
	DeviceID     string         `json:"device_id"`
	Key          string         `json:"key"`
	IsDeleted    bool           `json:"is_deleted"`
	LastModified int64          `json:"last_modified"`
	Fields       map[string]any `json:"fields"`
}

// Ref addresses one document for batch deletion.
type Ref struct {
	ID  string
	Rev string
}

// DocID returns the document id for a collection, owner, and remote key.
// Follows the "<prefix>:<id>" convention with the owner scoped in.
func DocID(collection ledger.Kind, ownerID, key string) string {
	return fmt.Sprintf("%s:%s:%s", collection, ownerID, key)
}

// FromRecord translates a local record into its remote document, stamping the
// owner and device ids.
func FromRecord(collection ledger.Kind, ownerID, deviceID string, rec ledger.Record) Document {
	key := ledger.RemoteKey(collection, rec.Key, ownerID)
	return Document{
		ID:           DocID(collection, ownerID, key),
		Collection:   string(collection),
		OwnerID:      ownerID,
		DeviceID:     deviceID,
		Key:          key,
		IsDeleted:    rec.IsDeleted,
		LastModified: rec.LastModified,
		Fields:       rec.Fields,
	}
}

// Record translates a remote document back into the local record shape.
func (d Document) Record() ledger.Record {
	return ledger.Record{
		Key:          d.Key,
		Fields:       d.Fields,
		IsDeleted:    d.IsDeleted,
		LastModified: d.LastModified,
	}
}
