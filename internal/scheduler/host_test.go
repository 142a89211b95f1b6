package scheduler

import (
	"context"
	"io"
	"log"
	stdsync "sync"
	"testing"
	"time"
)

// testHost returns a host with a quiet logger, closed on cleanup.
func testHost(t *testing.T, probe ConstraintProbe) *TickerHost {
	t.Helper()

	h := NewTickerHost(probe, log.New(io.Discard, "", 0))
	t.Cleanup(func() { h.Close() })
	return h
}

// counter counts job firings.
type counter struct {
	mu stdsync.Mutex
	n  int
}

func (c *counter) run(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return nil
}

func (c *counter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// deniedProbe fails the network constraint.
type deniedProbe struct{}

func (deniedProbe) Online() bool     { return false }
func (deniedProbe) Unmetered() bool  { return false }
func (deniedProbe) Charging() bool   { return false }
func (deniedProbe) BatteryLow() bool { return true }

// TestEnqueue_Validation tests spec validation.
func TestEnqueue_Validation(t *testing.T) {
	h := testHost(t, nil)

	noop := func(ctx context.Context) error { return nil }
	if err := h.Enqueue(JobSpec{Name: "", Every: time.Second, Run: noop}); err == nil {
		t.Error("Enqueue() accepted empty name")
	}
	if err := h.Enqueue(JobSpec{Name: "j", Every: time.Second}); err == nil {
		t.Error("Enqueue() accepted nil work function")
	}
	if err := h.Enqueue(JobSpec{Name: "j", Every: 0, Run: noop}); err == nil {
		t.Error("Enqueue() accepted zero period")
	}
}

// TestTickerHost_Fires tests that a job runs immediately and then on its
// period.
func TestTickerHost_Fires(t *testing.T) {
	h := testHost(t, nil)

	var c counter
	if err := h.Enqueue(JobSpec{Name: "j", Every: 20 * time.Millisecond, Run: c.run}); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for c.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("job fired %d times, want at least 2", c.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := h.State("j"); got != StateSucceeded && got != StateRunning {
		t.Errorf("State() = %s after firings", got)
	}
}

// TestTickerHost_ConstraintSkip tests that unmet constraints within the flex
// window skip the period and leave the job enqueued.
func TestTickerHost_ConstraintSkip(t *testing.T) {
	h := testHost(t, deniedProbe{})

	var c counter
	spec := JobSpec{
		Name:        "j",
		Every:       10 * time.Millisecond,
		Constraints: Constraints{Network: NetworkUnmetered},
		Run:         c.run,
	}
	if err := h.Enqueue(spec); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if c.count() != 0 {
		t.Errorf("job fired %d times with unmet constraints, want 0", c.count())
	}
	if got := h.State("j"); got != StateEnqueued {
		t.Errorf("State() = %s, want %s", got, StateEnqueued)
	}
}

// TestTickerHost_Cancel tests cancellation and its idempotence.
func TestTickerHost_Cancel(t *testing.T) {
	h := testHost(t, nil)

	var c counter
	if err := h.Enqueue(JobSpec{Name: "j", Every: 10 * time.Millisecond, Run: c.run}); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}
	if err := h.Cancel("j"); err != nil {
		t.Fatalf("Cancel() failed: %v", err)
	}
	if got := h.State("j"); got != StateUnscheduled {
		t.Errorf("State() after cancel = %s, want %s", got, StateUnscheduled)
	}

	after := c.count()
	time.Sleep(30 * time.Millisecond)
	if c.count() != after {
		t.Error("job kept firing after cancel")
	}

	if err := h.Cancel("j"); err != nil {
		t.Errorf("second Cancel() failed: %v", err)
	}
	if err := h.Cancel("never-enqueued"); err != nil {
		t.Errorf("Cancel() of unknown job failed: %v", err)
	}
}

// TestTickerHost_ReplacesSameName tests the one-job-per-name rule.
func TestTickerHost_ReplacesSameName(t *testing.T) {
	h := testHost(t, nil)

	var first, second counter
	if err := h.Enqueue(JobSpec{Name: "j", Every: 10 * time.Millisecond, Run: first.run}); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}
	if err := h.Enqueue(JobSpec{Name: "j", Every: 10 * time.Millisecond, Run: second.run}); err != nil {
		t.Fatalf("replacing Enqueue() failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for second.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("replacement job never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}

	stable := first.count()
	time.Sleep(30 * time.Millisecond)
	if first.count() != stable {
		t.Error("replaced job kept firing")
	}
}

// TestSatisfied tests constraint evaluation against probe conditions.
func TestSatisfied(t *testing.T) {
	denied := deniedProbe{}
	ok := alwaysSatisfied{}

	if satisfied(Constraints{Network: NetworkMetered}, denied) {
		t.Error("offline probe satisfied a network constraint")
	}
	if satisfied(Constraints{Network: NetworkUnmetered}, denied) {
		t.Error("offline probe satisfied the unmetered constraint")
	}
	if !satisfied(Constraints{Network: NetworkNone}, denied) {
		t.Error("no-network constraint unsatisfied offline")
	}
	if satisfied(Constraints{RequiresCharging: true}, denied) {
		t.Error("discharging probe satisfied the charging constraint")
	}
	if satisfied(Constraints{RequiresBatteryNotLow: true}, denied) {
		t.Error("low-battery probe satisfied the battery constraint")
	}
	if !satisfied(Constraints{Network: NetworkUnmetered, RequiresCharging: true}, ok) {
		t.Error("fully-met constraints reported unsatisfied")
	}
}
