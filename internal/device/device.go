// Package device provides the stable per-installation identifier stamped onto
// every document this device pushes to the remote store.
package device

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// KV is the key/value storage the identifier persists in.
// The local database's meta table satisfies this.
type KV interface {
	MetaGet(ctx context.Context, key string) (string, error)
	MetaSet(ctx context.Context, key, value string) error
}

const metaKey = "device_id"

// Identity returns this installation's device id, generating and persisting a
// random one on first use. Subsequent calls return the persisted value. There
// is no rotation; the identifier's entropy makes collisions a non-concern.
func Identity(ctx context.Context, kv KV) (string, error) {
	id, err := kv.MetaGet(ctx, metaKey)
	if err != nil {
		return "", fmt.Errorf("failed to read device id: %w", err)
	}
	if id != "" {
		return id, nil
	}

	id = uuid.NewString()
	if err := kv.MetaSet(ctx, metaKey, id); err != nil {
		return "", fmt.Errorf("failed to persist device id: %w", err)
	}
	return id, nil
}
