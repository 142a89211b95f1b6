package sync

import "github.com/Olooce/ledgerly/internal/ledger"

// MergePolicy decides what a pulled remote record does to the local row it
// lands on. existing is nil when the row doesn't exist locally yet. The
// returned record is what gets written.
//
// The policy is the single seam for conflict handling: the rest of the engine
// never compares timestamps.
type MergePolicy func(existing *ledger.Record, incoming ledger.Record) ledger.Record

// RemoteWins overwrites the local row with remote content unconditionally,
// without comparing last-modified timestamps. This is the default.
//
// Known race: a local edit made after this device's push but before its pull
// completes can be reverted by an older remote value. Substitute NewerWins to
// close it.
func RemoteWins(existing *ledger.Record, incoming ledger.Record) ledger.Record {
	return incoming
}

// NewerWins keeps whichever side has the later last-modified timestamp,
// preferring the remote record on ties so tombstones still converge.
func NewerWins(existing *ledger.Record, incoming ledger.Record) ledger.Record {
	if existing != nil && existing.LastModified > incoming.LastModified {
		return *existing
	}
	return incoming
}
