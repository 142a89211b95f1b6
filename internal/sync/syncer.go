package sync

import (
	"context"
	"fmt"
	"log"

	"github.com/Olooce/ledgerly/internal/ledger"
	"github.com/Olooce/ledgerly/internal/remote"
)

// entitySyncer synchronizes one entity collection between the local and
// remote stores for one owner.
type entitySyncer struct {
	kind   ledger.Kind
	local  LocalStore
	remote RemoteStore
	merge  MergePolicy
	logger *log.Logger
}

// sync pushes every local row, then pulls every remote row for the owner.
// The returned outcome carries the pulled count or the first failure; a
// failure in the push step surfaces as the entity's error and skips the pull.
func (s *entitySyncer) sync(ctx context.Context, ownerID, deviceID string) Outcome {
	rows, err := s.local.ReadAllWithDeleted(ctx, s.kind)
	if err != nil {
		return Outcome{Err: fmt.Errorf("failed to read local rows: %w", err)}
	}

	// Push, tombstones included. One failed row aborts this entity's push;
	// sibling entities are unaffected.
	for _, rec := range rows {
		doc := remote.FromRecord(s.kind, ownerID, deviceID, rec)
		if err := s.remote.MergeUpsert(ctx, s.kind, doc); err != nil {
			return Outcome{Err: fmt.Errorf("failed to push %s: %w", doc.Key, err)}
		}
	}

	// Pull everything the owner has, from any device.
	docs, err := s.remote.QueryByOwner(ctx, s.kind, ownerID)
	if err != nil {
		return Outcome{Err: fmt.Errorf("failed to query remote rows: %w", err)}
	}

	existing := make(map[string]ledger.Record, len(rows))
	for _, rec := range rows {
		existing[ledger.RemoteKey(s.kind, rec.Key, ownerID)] = rec
	}

	for _, doc := range docs {
		incoming := doc.Record()
		var prior *ledger.Record
		if rec, ok := existing[doc.Key]; ok {
			prior = &rec
		}
		merged := s.merge(prior, incoming)
		// The version stamp decides whether the row actually changed.
		// Skipping unchanged rows keeps a no-change sync from dirtying
		// the store and re-arming the change watcher.
		if prior != nil && merged.LastModified == prior.LastModified && merged.IsDeleted == prior.IsDeleted {
			continue
		}
		if err := s.local.UpsertRecord(ctx, s.kind, merged); err != nil {
			return Outcome{Err: fmt.Errorf("failed to upsert %s: %w", doc.Key, err)}
		}
	}

	s.logger.Printf("Synced %s: pushed=%d pulled=%d", s.kind, len(rows), len(docs))
	return Outcome{Pulled: len(docs)}
}
