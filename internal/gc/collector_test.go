package gc

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/Olooce/ledgerly/internal/auth"
	"github.com/Olooce/ledgerly/internal/ledger"
	"github.com/Olooce/ledgerly/internal/remote"
)

// fakeLocal tracks tombstone erasure calls per kind.
type fakeLocal struct {
	cutoffs map[ledger.Kind]int64
	erased  map[ledger.Kind]int64
	errs    map[ledger.Kind]error
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{
		cutoffs: make(map[ledger.Kind]int64),
		erased:  make(map[ledger.Kind]int64),
		errs:    make(map[ledger.Kind]error),
	}
}

func (f *fakeLocal) DeleteExpiredTombstones(ctx context.Context, kind ledger.Kind, cutoff int64) (int64, error) {
	f.cutoffs[kind] = cutoff
	if err := f.errs[kind]; err != nil {
		return 0, err
	}
	return f.erased[kind], nil
}

// fakeRemote serves canned tombstone refs and records batch deletions.
type fakeRemote struct {
	refs     map[ledger.Kind][]remote.Ref
	queryErr map[ledger.Kind]error
	batches  [][]remote.Ref
	delErr   error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		refs:     make(map[ledger.Kind][]remote.Ref),
		queryErr: make(map[ledger.Kind]error),
	}
}

func (f *fakeRemote) TombstonesOlderThan(ctx context.Context, collection ledger.Kind, ownerID string, cutoff int64) ([]remote.Ref, error) {
	if err := f.queryErr[collection]; err != nil {
		return nil, err
	}
	return f.refs[collection], nil
}

func (f *fakeRemote) BatchDelete(ctx context.Context, refs []remote.Ref) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.batches = append(f.batches, refs)
	return nil
}

// testCollector builds a collector with a fixed clock and quiet logger.
func testCollector(local *fakeLocal, rs *fakeRemote, provider auth.Provider, now time.Time) *Collector {
	c := New(local, rs, provider, 0, log.New(io.Discard, "", 0))
	c.now = func() time.Time { return now }
	return c
}

// TestCollect_CutoffIsRetentionAgo tests the cutoff arithmetic against the
// default 30-day retention.
func TestCollect_CutoffIsRetentionAgo(t *testing.T) {
	local := newFakeLocal()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	c := testCollector(local, newFakeRemote(), auth.Static{}, now)
	c.Collect(context.Background())

	want := ledger.Millis(now.Add(-DefaultRetention))
	for _, kind := range ledger.RowKinds() {
		if got := local.cutoffs[kind]; got != want {
			t.Errorf("%s cutoff = %d, want %d", kind, got, want)
		}
	}

	// Sanity against the boundary: a tombstone 29 days old is newer than
	// the cutoff, one 31 days old is older.
	fresh := ledger.Millis(now.AddDate(0, 0, -29))
	stale := ledger.Millis(now.AddDate(0, 0, -31))
	if fresh < want {
		t.Error("29-day-old tombstone falls before the cutoff")
	}
	if stale >= want {
		t.Error("31-day-old tombstone falls after the cutoff")
	}
}

// TestCollect_CoversRowKindsOnly tests that the singleton preferences
// document is never collected.
func TestCollect_CoversRowKindsOnly(t *testing.T) {
	local := newFakeLocal()

	c := testCollector(local, newFakeRemote(), auth.Static{}, time.Now())
	c.Collect(context.Background())

	if len(local.cutoffs) != 3 {
		t.Errorf("local cleanup touched %d kinds, want 3", len(local.cutoffs))
	}
	if _, ok := local.cutoffs[ledger.KindPreferences]; ok {
		t.Error("local cleanup touched preferences")
	}
}

// TestCollect_LocalErrorDoesNotAbort tests per-kind isolation of the local
// pass.
func TestCollect_LocalErrorDoesNotAbort(t *testing.T) {
	local := newFakeLocal()
	local.errs[ledger.KindTransaction] = fmt.Errorf("locked")

	c := testCollector(local, newFakeRemote(), auth.Static{}, time.Now())
	c.Collect(context.Background())

	if _, ok := local.cutoffs[ledger.KindBudget]; !ok {
		t.Error("budget cleanup skipped after transaction error")
	}
	if _, ok := local.cutoffs[ledger.KindRecurring]; !ok {
		t.Error("recurring cleanup skipped after transaction error")
	}
}

// TestCollect_RemoteSkippedWhenSignedOut tests the auth gate on the remote
// pass; the local pass still runs.
func TestCollect_RemoteSkippedWhenSignedOut(t *testing.T) {
	local := newFakeLocal()
	rs := newFakeRemote()
	rs.refs[ledger.KindTransaction] = []remote.Ref{{ID: "a", Rev: "1"}}

	c := testCollector(local, rs, auth.Static{}, time.Now())
	c.Collect(context.Background())

	if len(rs.batches) != 0 {
		t.Error("remote cleanup ran while signed out")
	}
	if len(local.cutoffs) == 0 {
		t.Error("local cleanup skipped while signed out")
	}
}

// TestCollect_RemoteBatchesAcrossCollections tests the single batch commit.
func TestCollect_RemoteBatchesAcrossCollections(t *testing.T) {
	rs := newFakeRemote()
	rs.refs[ledger.KindTransaction] = []remote.Ref{{ID: "a", Rev: "1"}, {ID: "b", Rev: "2"}}
	rs.refs[ledger.KindBudget] = []remote.Ref{{ID: "c", Rev: "3"}}

	c := testCollector(newFakeLocal(), rs, auth.Static{Owner: "user-1"}, time.Now())
	c.Collect(context.Background())

	if len(rs.batches) != 1 {
		t.Fatalf("committed %d batches, want 1", len(rs.batches))
	}
	if len(rs.batches[0]) != 3 {
		t.Errorf("batch holds %d refs, want 3", len(rs.batches[0]))
	}
}

// TestCollect_NoEmptyBatch tests that nothing is committed when nothing
// expired.
func TestCollect_NoEmptyBatch(t *testing.T) {
	rs := newFakeRemote()

	c := testCollector(newFakeLocal(), rs, auth.Static{Owner: "user-1"}, time.Now())
	c.Collect(context.Background())

	if len(rs.batches) != 0 {
		t.Errorf("committed %d batches with nothing expired, want 0", len(rs.batches))
	}
}

// TestCollect_QueryErrorSkipsCommit tests that a failed collection query
// abandons the whole remote batch rather than committing a partial one.
func TestCollect_QueryErrorSkipsCommit(t *testing.T) {
	rs := newFakeRemote()
	rs.refs[ledger.KindTransaction] = []remote.Ref{{ID: "a", Rev: "1"}}
	rs.queryErr[ledger.KindRecurring] = fmt.Errorf("timeout")

	c := testCollector(newFakeLocal(), rs, auth.Static{Owner: "user-1"}, time.Now())
	c.Collect(context.Background())

	if len(rs.batches) != 0 {
		t.Errorf("committed %d batches after a query error, want 0", len(rs.batches))
	}
}

// TestCollect_DeleteErrorLogged tests that a failed commit is swallowed; the
// next cycle retries.
func TestCollect_DeleteErrorLogged(t *testing.T) {
	rs := newFakeRemote()
	rs.refs[ledger.KindTransaction] = []remote.Ref{{ID: "a", Rev: "1"}}
	rs.delErr = fmt.Errorf("conflict")

	c := testCollector(newFakeLocal(), rs, auth.Static{Owner: "user-1"}, time.Now())

	// Must not panic or surface anything.
	c.Collect(context.Background())
}

// TestNew_RetentionDefault tests the retention fallback.
func TestNew_RetentionDefault(t *testing.T) {
	c := New(newFakeLocal(), newFakeRemote(), auth.Static{}, 0, log.New(io.Discard, "", 0))
	if c.retention != DefaultRetention {
		t.Errorf("retention = %v, want %v", c.retention, DefaultRetention)
	}

	c = New(newFakeLocal(), newFakeRemote(), auth.Static{}, 10*24*time.Hour, log.New(io.Discard, "", 0))
	if c.retention != 10*24*time.Hour {
		t.Errorf("retention = %v, want 240h", c.retention)
	}
}
