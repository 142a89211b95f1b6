// Package sync provides the offline-first synchronization engine between the
// local database and the remote multi-device store.
//
// Overview
//
// The local database is the source of truth between syncs. A full sync runs
// the four entity collections in a fixed order, and for each collection pushes
// every local row (tombstones included, so deletions propagate) before pulling
// every remote row belonging to the authenticated owner:
//
//	Local SQLite (source of truth)
//	     ├── transactions            ─┐
//	     ├── budgets                  │ push (incl. tombstones)
//	     ├── recurring_transactions   │──────────────────────────▶ CouchDB
//	     └── preferences             ─┘                            (one doc per
//	                       ◀──────────────────────────────────────  row, owner
//	                        pull (all docs for owner, upsert)       scoped)
//
// Ordering
//
// Within one full sync the entity order is fixed (transactions, budgets,
// recurring transactions, preferences) and push fully precedes pull per
// entity. There is no intra-sync parallelism; sequencing is plain sequential
// awaits, trading throughput for predictable ordering.
//
// Error Handling
//
// Entity failures are carried as values in per-entity outcomes and never stop
// sibling entities. Only a truly unexpected panic at the orchestrator level
// falls back to a blanket error applied to all four outcomes. An
// unauthenticated caller gets four error outcomes without either store being
// touched.
//
// Concurrency
//
// The orchestrator owns a single in-progress lock shared by every trigger
// path (manual, periodic, change-triggered, post-sign-in), so at most one
// full sync runs at a time; a second trigger is rejected with
// ErrSyncInProgress rather than queued.
package sync
