package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	stdsync "sync"
	"testing"
	"time"

	"github.com/Olooce/ledgerly/internal/auth"
	"github.com/Olooce/ledgerly/internal/ledger"
	"github.com/Olooce/ledgerly/internal/remote"
	"github.com/Olooce/ledgerly/internal/sync"
)

// memLocal is a minimal local store for driving the orchestrator in tests.
type memLocal struct {
	mu        stdsync.Mutex
	rows      map[ledger.Kind][]ledger.Record
	reads     int
	blockRead chan struct{} // when set, the next read waits on it
}

func (m *memLocal) ReadAllWithDeleted(ctx context.Context, kind ledger.Kind) ([]ledger.Record, error) {
	m.mu.Lock()
	block := m.blockRead
	m.blockRead = nil
	m.reads++
	rows := m.rows[kind]
	m.mu.Unlock()

	if block != nil {
		<-block
	}
	return rows, nil
}

func (m *memLocal) UpsertRecord(ctx context.Context, kind ledger.Kind, rec ledger.Record) error {
	return nil
}

// memRemote is a minimal remote store; queryErr fails every pull.
type memRemote struct {
	mu       stdsync.Mutex
	queries  int
	queryErr error
}

func (m *memRemote) MergeUpsert(ctx context.Context, collection ledger.Kind, doc remote.Document) error {
	return nil
}

func (m *memRemote) QueryByOwner(ctx context.Context, collection ledger.Kind, ownerID string) ([]remote.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	return nil, m.queryErr
}

// fakeSchedHost records enqueued specs without running them.
type fakeSchedHost struct {
	mu        stdsync.Mutex
	specs     map[string]JobSpec
	cancelled []string
}

func newFakeSchedHost() *fakeSchedHost {
	return &fakeSchedHost{specs: make(map[string]JobSpec)}
}

func (h *fakeSchedHost) Enqueue(spec JobSpec) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.specs[spec.Name] = spec
	return nil
}

func (h *fakeSchedHost) Cancel(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelled = append(h.cancelled, name)
	delete(h.specs, name)
	return nil
}

func (h *fakeSchedHost) State(name string) JobState {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.specs[name]; ok {
		return StateEnqueued
	}
	return StateUnscheduled
}

func (h *fakeSchedHost) spec(t *testing.T, name string) JobSpec {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	spec, ok := h.specs[name]
	if !ok {
		t.Fatalf("job %s not enqueued", name)
	}
	return spec
}

// memSettings is an in-memory settings table.
type memSettings struct {
	mu stdsync.Mutex
	m  map[string]string
}

func newMemSettings() *memSettings {
	return &memSettings{m: make(map[string]string)}
}

func (s *memSettings) MetaGet(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key], nil
}

func (s *memSettings) MetaSet(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *memSettings) get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key]
}

// eventLog captures published events.
type eventLog struct {
	mu     stdsync.Mutex
	events []Event
}

func (l *eventLog) Publish(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) states() []JobState {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []JobState
	for _, ev := range l.events {
		out = append(out, ev.State)
	}
	return out
}

// testScheduler wires a scheduler over in-memory everything.
func testScheduler(t *testing.T, local *memLocal, rs *memRemote, provider auth.Provider) (*Scheduler, *fakeSchedHost, *memSettings, *eventLog) {
	t.Helper()

	if local == nil {
		local = &memLocal{rows: make(map[ledger.Kind][]ledger.Record)}
	}
	if rs == nil {
		rs = &memRemote{}
	}
	logger := log.New(io.Discard, "", 0)
	orch := sync.New(local, rs, provider, nil, logger)
	host := newFakeSchedHost()
	settings := newMemSettings()
	events := &eventLog{}
	return New(host, orch, settings, provider, "device-1", events, logger), host, settings, events
}

// TestEnable_FloorsSchedule tests that tight intervals are clamped to the
// minimums and the flag persists.
func TestEnable_FloorsSchedule(t *testing.T) {
	sched, host, settings, _ := testScheduler(t, nil, nil, auth.Static{Owner: "user-1"})

	opts := Options{Interval: time.Minute, Flex: time.Second}
	if err := sched.Enable(context.Background(), opts); err != nil {
		t.Fatalf("Enable() failed: %v", err)
	}

	spec := host.spec(t, JobFullSync)
	if spec.Every != MinInterval {
		t.Errorf("period = %v, want floor %v", spec.Every, MinInterval)
	}
	if spec.Flex != MinFlex {
		t.Errorf("flex = %v, want floor %v", spec.Flex, MinFlex)
	}
	if spec.InitialDelay != MinInterval {
		t.Errorf("initial delay = %v, want %v", spec.InitialDelay, MinInterval)
	}
	if settings.get("sync_enabled") != "true" {
		t.Errorf("sync_enabled = %q, want %q", settings.get("sync_enabled"), "true")
	}
}

// TestEnable_KeepsGenerousInterval tests that intervals above the floor pass
// through unchanged.
func TestEnable_KeepsGenerousInterval(t *testing.T) {
	sched, host, _, _ := testScheduler(t, nil, nil, auth.Static{Owner: "user-1"})

	if err := sched.Enable(context.Background(), Options{Interval: 6 * time.Hour, Flex: time.Hour}); err != nil {
		t.Fatalf("Enable() failed: %v", err)
	}
	spec := host.spec(t, JobFullSync)
	if spec.Every != 6*time.Hour {
		t.Errorf("period = %v, want 6h", spec.Every)
	}
	if spec.Flex != time.Hour {
		t.Errorf("flex = %v, want 1h", spec.Flex)
	}
}

// TestEnable_ConstraintMapping tests the options-to-constraints translation.
func TestEnable_ConstraintMapping(t *testing.T) {
	sched, host, _, _ := testScheduler(t, nil, nil, auth.Static{Owner: "user-1"})

	opts := Options{RequireUnmetered: true, RequireCharging: true}
	if err := sched.Enable(context.Background(), opts); err != nil {
		t.Fatalf("Enable() failed: %v", err)
	}

	c := host.spec(t, JobFullSync).Constraints
	if c.Network != NetworkUnmetered {
		t.Errorf("network = %s, want %s", c.Network, NetworkUnmetered)
	}
	if !c.RequiresCharging {
		t.Error("charging constraint not set")
	}
	if !c.RequiresBatteryNotLow {
		t.Error("battery-not-low constraint not set")
	}
}

// TestEnable_Unauthenticated tests the sign-in requirement.
func TestEnable_Unauthenticated(t *testing.T) {
	sched, host, settings, _ := testScheduler(t, nil, nil, auth.Static{})

	err := sched.Enable(context.Background(), Options{})
	if !errors.Is(err, sync.ErrNotAuthenticated) {
		t.Fatalf("Enable() = %v, want ErrNotAuthenticated", err)
	}
	if settings.get("sync_enabled") != "" {
		t.Errorf("flag written despite rejection: %q", settings.get("sync_enabled"))
	}
	if host.State(JobFullSync) != StateUnscheduled {
		t.Error("job enqueued despite rejection")
	}
}

// TestEnable_RollbackOnFailedFirstSync tests that a failing immediate sync
// unwinds the flag and the schedule.
func TestEnable_RollbackOnFailedFirstSync(t *testing.T) {
	rs := &memRemote{queryErr: fmt.Errorf("connection refused")}
	sched, host, settings, _ := testScheduler(t, nil, rs, auth.Static{Owner: "user-1"})

	err := sched.Enable(context.Background(), Options{})
	if err == nil {
		t.Fatal("Enable() succeeded despite failing first sync")
	}
	if settings.get("sync_enabled") != "false" {
		t.Errorf("sync_enabled = %q after rollback, want %q", settings.get("sync_enabled"), "false")
	}
	if host.State(JobFullSync) != StateUnscheduled {
		t.Error("periodic job survived rollback")
	}
}

// TestEnable_RollbackRestoresPriorValue tests that rollback restores whatever
// the flag held before, not blindly false.
func TestEnable_RollbackRestoresPriorValue(t *testing.T) {
	rs := &memRemote{queryErr: fmt.Errorf("connection refused")}
	sched, _, settings, _ := testScheduler(t, nil, rs, auth.Static{Owner: "user-1"})

	if err := settings.MetaSet(context.Background(), "sync_enabled", "true"); err != nil {
		t.Fatalf("MetaSet() failed: %v", err)
	}
	if err := sched.Enable(context.Background(), Options{}); err == nil {
		t.Fatal("Enable() succeeded despite failing first sync")
	}
	if settings.get("sync_enabled") != "true" {
		t.Errorf("sync_enabled = %q after rollback, want preserved %q", settings.get("sync_enabled"), "true")
	}
}

// TestDisable tests flag and schedule teardown.
func TestDisable(t *testing.T) {
	sched, host, settings, _ := testScheduler(t, nil, nil, auth.Static{Owner: "user-1"})

	if err := sched.Enable(context.Background(), Options{}); err != nil {
		t.Fatalf("Enable() failed: %v", err)
	}
	if err := sched.Disable(context.Background()); err != nil {
		t.Fatalf("Disable() failed: %v", err)
	}

	if settings.get("sync_enabled") != "false" {
		t.Errorf("sync_enabled = %q, want %q", settings.get("sync_enabled"), "false")
	}
	if host.State(JobFullSync) != StateUnscheduled {
		t.Error("periodic job survived Disable")
	}

	enabled, err := sched.IsEnabled(context.Background())
	if err != nil {
		t.Fatalf("IsEnabled() failed: %v", err)
	}
	if enabled {
		t.Error("IsEnabled() = true after Disable")
	}
}

// TestTriggerSync_RecordsLastSync tests bookkeeping and event publication on
// a successful manual sync.
func TestTriggerSync_RecordsLastSync(t *testing.T) {
	sched, _, settings, events := testScheduler(t, nil, nil, auth.Static{Owner: "user-1"})

	before := time.Now().Add(-time.Second)
	result, err := sched.TriggerSync(context.Background())
	if err != nil {
		t.Fatalf("TriggerSync() failed: %v", err)
	}
	if !result.IsSuccessful() {
		t.Fatalf("TriggerSync() not successful: %s", result.Summary())
	}

	if settings.get("last_sync_time") == "" {
		t.Error("last sync time not recorded")
	}
	last, ok := sched.LastSyncTime(context.Background())
	if !ok {
		t.Fatal("LastSyncTime() reports no sync")
	}
	if last.Before(before) {
		t.Errorf("LastSyncTime() = %v, want recent", last)
	}

	states := events.states()
	if len(states) < 2 || states[0] != StateRunning || states[len(states)-1] != StateSucceeded {
		t.Errorf("event states = %v, want Running..Succeeded", states)
	}
}

// TestTriggerSync_FailureSkipsBookkeeping tests that a failed sync publishes
// a failure and records nothing.
func TestTriggerSync_FailureSkipsBookkeeping(t *testing.T) {
	rs := &memRemote{queryErr: fmt.Errorf("timeout")}
	sched, _, settings, events := testScheduler(t, nil, rs, auth.Static{Owner: "user-1"})

	result, err := sched.TriggerSync(context.Background())
	if err != nil {
		t.Fatalf("TriggerSync() failed: %v", err)
	}
	if result.IsSuccessful() {
		t.Fatal("failing sync reported success")
	}
	if settings.get("last_sync_time") != "" {
		t.Error("failed sync recorded a last sync time")
	}

	states := events.states()
	if len(states) == 0 || states[len(states)-1] != StateFailed {
		t.Errorf("event states = %v, want trailing Failed", states)
	}
}

// TestTriggerSync_RejectedWhileBusy tests that a manual trigger during an
// in-flight sync surfaces the rejection.
func TestTriggerSync_RejectedWhileBusy(t *testing.T) {
	local := &memLocal{rows: make(map[ledger.Kind][]ledger.Record)}
	release := make(chan struct{})
	local.blockRead = release

	sched, _, _, events := testScheduler(t, local, nil, auth.Static{Owner: "user-1"})

	done := make(chan struct{})
	go func() {
		sched.TriggerSync(context.Background())
		close(done)
	}()
	waitForReads(t, local)

	if _, err := sched.TriggerSync(context.Background()); !errors.Is(err, sync.ErrSyncInProgress) {
		t.Errorf("busy TriggerSync() = %v, want ErrSyncInProgress", err)
	}

	// The rejected trigger never ran, so it publishes nothing; only the
	// accepted sync reaches the status stream once it completes.
	if got := len(events.states()); got != 0 {
		t.Errorf("rejected trigger published %d events, want 0", got)
	}

	close(release)
	<-done

	states := events.states()
	if len(states) == 0 || states[0] != StateRunning {
		t.Errorf("accepted sync events = %v, want leading Running", states)
	}
}

// TestSyncOnSignIn_ToleratesInProgress tests that sign-in treats a running
// sync as good enough.
func TestSyncOnSignIn_ToleratesInProgress(t *testing.T) {
	local := &memLocal{rows: make(map[ledger.Kind][]ledger.Record)}
	release := make(chan struct{})
	local.blockRead = release

	sched, _, _, _ := testScheduler(t, local, nil, auth.Static{Owner: "user-1"})

	done := make(chan struct{})
	go func() {
		sched.TriggerSync(context.Background())
		close(done)
	}()
	waitForReads(t, local)

	if err := sched.SyncOnSignIn(context.Background()); err != nil {
		t.Errorf("SyncOnSignIn() during in-flight sync = %v, want nil", err)
	}

	close(release)
	<-done
}

// waitForReads blocks until the local store has served at least one read.
func waitForReads(t *testing.T, local *memLocal) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		local.mu.Lock()
		reads := local.reads
		local.mu.Unlock()
		if reads > 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("sync never started reading")
		}
		time.Sleep(time.Millisecond)
	}
}

// TestResume_ReArmsPersistedSchedule tests daemon startup: the periodic job
// comes back without an immediate sync.
func TestResume_ReArmsPersistedSchedule(t *testing.T) {
	rs := &memRemote{}
	sched, host, settings, _ := testScheduler(t, nil, rs, auth.Static{Owner: "user-1"})

	if err := settings.MetaSet(context.Background(), "sync_enabled", "true"); err != nil {
		t.Fatalf("MetaSet() failed: %v", err)
	}
	if err := sched.Resume(context.Background(), Options{Interval: 6 * time.Hour}); err != nil {
		t.Fatalf("Resume() failed: %v", err)
	}

	if host.State(JobFullSync) != StateEnqueued {
		t.Error("Resume() did not enqueue the periodic job")
	}
	rs.mu.Lock()
	queries := rs.queries
	rs.mu.Unlock()
	if queries != 0 {
		t.Errorf("Resume() ran a sync (%d remote queries), want none", queries)
	}
}

// TestResume_NoopWhenDisabled tests that a disabled flag schedules nothing.
func TestResume_NoopWhenDisabled(t *testing.T) {
	sched, host, _, _ := testScheduler(t, nil, nil, auth.Static{Owner: "user-1"})

	if err := sched.Resume(context.Background(), Options{}); err != nil {
		t.Fatalf("Resume() failed: %v", err)
	}
	if host.State(JobFullSync) != StateUnscheduled {
		t.Error("Resume() enqueued a job while disabled")
	}
}

// TestScheduleMaterializer tests the daily materialization schedule.
func TestScheduleMaterializer(t *testing.T) {
	sched, host, _, _ := testScheduler(t, nil, nil, auth.Static{Owner: "user-1"})

	if err := sched.ScheduleMaterializer(func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("ScheduleMaterializer() failed: %v", err)
	}

	spec := host.spec(t, JobMaterializer)
	if spec.Every != 24*time.Hour {
		t.Errorf("period = %v, want 24h", spec.Every)
	}
	if spec.Constraints.Network != NetworkNone {
		t.Errorf("network constraint = %s, want %s", spec.Constraints.Network, NetworkNone)
	}
}

// TestLastSyncTime_NeverSynced tests the empty case.
func TestLastSyncTime_NeverSynced(t *testing.T) {
	sched, _, _, _ := testScheduler(t, nil, nil, auth.Static{Owner: "user-1"})

	if _, ok := sched.LastSyncTime(context.Background()); ok {
		t.Error("LastSyncTime() reported a sync before any ran")
	}
}
