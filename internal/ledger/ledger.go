// Package ledger provides the entity model for Ledgerly's four synchronizable
// collections: transactions, budgets, recurring transactions, and preferences.
//
// Every entity row carries a tombstone flag and a last-modified timestamp in
// epoch milliseconds. Deleted rows are retained as tombstones until the
// retention collector erases them, so deletions can propagate to other devices.
//
// The sync engine does not interpret entity payloads. Each model converts to
// and from a Record, whose Fields map is opaque to the engine and is what gets
// merged into remote documents.
package ledger

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies one synchronizable entity collection.
//
// The value doubles as the remote collection name.
type Kind string

const (
	// KindTransaction is the transactions collection.
	KindTransaction Kind = "transactions"
	// KindBudget is the budgets collection.
	KindBudget Kind = "budgets"
	// KindRecurring is the recurring transactions collection.
	KindRecurring Kind = "recurring_transactions"
	// KindPreferences is the per-user preferences collection.
	KindPreferences Kind = "preferences"
)

// Kinds returns all entity kinds in sync order.
//
// A full sync processes kinds in exactly this order, one after another.
func Kinds() []Kind {
	return []Kind{KindTransaction, KindBudget, KindRecurring, KindPreferences}
}

// RowKinds returns the kinds whose collections hold multiple rows per user.
// Preferences is excluded: it is a single document per owner and is never
// garbage collected remotely.
func RowKinds() []Kind {
	return []Kind{KindTransaction, KindRecurring, KindBudget}
}

// Record is the sync-neutral representation of one entity row.
//
// Key is the row's local key, stringified. Fields holds the entity payload and
// is semantically opaque to the sync engine.
type Record struct {
	Key          string
	Fields       map[string]any
	IsDeleted    bool
	LastModified int64
}

// RemoteKey returns the key a record of the given kind is addressed by in the
// remote store. Transactions and recurring transactions use the stringified
// local id, budgets use the composite category_period key, and preferences use
// the owner id alone (one document per user).
func RemoteKey(kind Kind, localKey, ownerID string) string {
	if kind == KindPreferences {
		return ownerID
	}
	return localKey
}

// NowMillis returns the current time in epoch milliseconds, the resolution
// used by every lastModified field.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// Millis converts a time to epoch milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// encodeFields marshals a model to its opaque payload map, dropping the
// tombstone and timestamp columns that Record carries explicitly.
func encodeFields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	delete(fields, "is_deleted")
	delete(fields, "last_modified")
	return fields, nil
}

// decodeFields unmarshals an opaque payload map into a model.
func decodeFields(fields map[string]any, v any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode fields: %w", err)
	}
	return nil
}
