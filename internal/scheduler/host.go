// Package scheduler decides when full syncs run: on a constraint-gated
// periodic schedule, on manual triggers, after sign-in, and opportunistically
// after local writes. It keeps at most one outstanding periodic job per
// logical schedule name.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// NetworkRequirement is the connectivity a job needs before it may run.
type NetworkRequirement int

const (
	// NetworkNone runs with or without connectivity.
	NetworkNone NetworkRequirement = iota
	// NetworkMetered needs any connection, metered included.
	NetworkMetered
	// NetworkUnmetered needs an unmetered connection (wifi).
	NetworkUnmetered
)

// String returns a human-readable representation of the requirement.
func (n NetworkRequirement) String() string {
	switch n {
	case NetworkNone:
		return "none"
	case NetworkMetered:
		return "metered"
	case NetworkUnmetered:
		return "unmetered"
	default:
		return "unknown"
	}
}

// Constraints gate a periodic job's execution. The job stays enqueued until
// all of them hold at a firing.
type Constraints struct {
	Network               NetworkRequirement
	RequiresCharging      bool
	RequiresBatteryNotLow bool
}

// JobState is the lifecycle state of one named schedule.
type JobState int

const (
	// StateUnscheduled means no job exists under the name.
	StateUnscheduled JobState = iota
	// StateEnqueued means the job is waiting for its next firing or for
	// constraints to be satisfied.
	StateEnqueued
	// StateRunning means the job's work function is executing.
	StateRunning
	// StateSucceeded means the last run completed cleanly.
	StateSucceeded
	// StateFailed means the last run returned an error.
	StateFailed
)

// String returns a human-readable representation of the state.
func (s JobState) String() string {
	switch s {
	case StateUnscheduled:
		return "unscheduled"
	case StateEnqueued:
		return "enqueued"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// JobSpec describes one named periodic job.
type JobSpec struct {
	// Name identifies the schedule; enqueueing under an existing name
	// replaces that job.
	Name string

	// Every is the period between firings.
	Every time.Duration

	// Flex is how long a firing may wait for constraints before the
	// period is skipped.
	Flex time.Duration

	// InitialDelay postpones the first firing.
	InitialDelay time.Duration

	// Constraints gate each firing.
	Constraints Constraints

	// Run is the work function.
	Run func(ctx context.Context) error
}

// Host is the platform's persistent job scheduler, consumed behind this
// interface so the engine doesn't care whether jobs survive process restarts.
// TickerHost is the in-process implementation.
type Host interface {
	// Enqueue registers a periodic job, cancelling any existing job with
	// the same name first.
	Enqueue(spec JobSpec) error

	// Cancel removes a named job. Idempotent; a missing name is not an
	// error. Cancellation is honored before the next firing, not mid-run.
	Cancel(name string) error

	// State reports the named job's current lifecycle state.
	State(name string) JobState
}

// ConstraintProbe reports current device conditions for constraint checks.
type ConstraintProbe interface {
	Online() bool
	Unmetered() bool
	Charging() bool
	BatteryLow() bool
}

// alwaysSatisfied treats every constraint as met. Used when no probe is
// available (desktop installs).
type alwaysSatisfied struct{}

func (alwaysSatisfied) Online() bool     { return true }
func (alwaysSatisfied) Unmetered() bool  { return true }
func (alwaysSatisfied) Charging() bool   { return true }
func (alwaysSatisfied) BatteryLow() bool { return false }

// satisfied reports whether the probe currently meets the constraints.
func satisfied(c Constraints, probe ConstraintProbe) bool {
	switch c.Network {
	case NetworkMetered:
		if !probe.Online() {
			return false
		}
	case NetworkUnmetered:
		if !probe.Online() || !probe.Unmetered() {
			return false
		}
	}
	if c.RequiresCharging && !probe.Charging() {
		return false
	}
	if c.RequiresBatteryNotLow && probe.BatteryLow() {
		return false
	}
	return true
}

// TickerHost is an in-process Host driven by tickers. Jobs do not survive
// process restarts; the daemon re-enqueues them on startup from persisted
// settings.
type TickerHost struct {
	probe  ConstraintProbe
	logger *log.Logger

	// How often a firing re-checks constraints within its flex window.
	recheck time.Duration

	mu   sync.Mutex
	jobs map[string]*hostJob

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type hostJob struct {
	spec   JobSpec
	cancel context.CancelFunc

	mu    sync.Mutex
	state JobState
}

func (j *hostJob) setState(s JobState) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

func (j *hostJob) getState() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// NewTickerHost creates a TickerHost.
//
// If probe is nil, every constraint is treated as satisfied. If logger is
// nil, a default logger writing to stderr is used.
func NewTickerHost(probe ConstraintProbe, logger *log.Logger) *TickerHost {
	if probe == nil {
		probe = alwaysSatisfied{}
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[sched] ", log.LstdFlags)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TickerHost{
		probe:   probe,
		logger:  logger,
		recheck: 30 * time.Second,
		jobs:    make(map[string]*hostJob),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Enqueue implements Host.
func (h *TickerHost) Enqueue(spec JobSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("job name cannot be empty")
	}
	if spec.Run == nil {
		return fmt.Errorf("job %s has no work function", spec.Name)
	}
	if spec.Every <= 0 {
		return fmt.Errorf("job %s period must be positive", spec.Name)
	}

	// At most one job per name.
	if err := h.Cancel(spec.Name); err != nil {
		return err
	}

	jobCtx, jobCancel := context.WithCancel(h.ctx)
	job := &hostJob{spec: spec, cancel: jobCancel, state: StateEnqueued}

	h.mu.Lock()
	h.jobs[spec.Name] = job
	h.mu.Unlock()

	h.wg.Add(1)
	go h.runJob(jobCtx, job)

	h.logger.Printf("Enqueued job %s every=%s flex=%s delay=%s constraints={net:%s charging:%t battery:%t}",
		spec.Name, spec.Every, spec.Flex, spec.InitialDelay,
		spec.Constraints.Network, spec.Constraints.RequiresCharging, spec.Constraints.RequiresBatteryNotLow)
	return nil
}

// Cancel implements Host.
func (h *TickerHost) Cancel(name string) error {
	h.mu.Lock()
	job, ok := h.jobs[name]
	if ok {
		delete(h.jobs, name)
	}
	h.mu.Unlock()

	if ok {
		job.cancel()
		h.logger.Printf("Cancelled job %s", name)
	}
	return nil
}

// State implements Host.
func (h *TickerHost) State(name string) JobState {
	h.mu.Lock()
	job, ok := h.jobs[name]
	h.mu.Unlock()
	if !ok {
		return StateUnscheduled
	}
	return job.getState()
}

// Close cancels every job and waits for in-flight runs to finish.
func (h *TickerHost) Close() error {
	h.cancel()
	h.wg.Wait()
	return nil
}

func (h *TickerHost) runJob(ctx context.Context, job *hostJob) {
	defer h.wg.Done()

	if job.spec.InitialDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(job.spec.InitialDelay):
		}
	}

	// First firing happens after the initial delay, then every period.
	h.fire(ctx, job)

	ticker := time.NewTicker(job.spec.Every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.fire(ctx, job)
		}
	}
}

// fire runs the job once constraints are met, re-checking within the flex
// window. If constraints never hold, the period is skipped and the job stays
// enqueued.
func (h *TickerHost) fire(ctx context.Context, job *hostJob) {
	deadline := time.Now().Add(job.spec.Flex)
	for !satisfied(job.spec.Constraints, h.probe) {
		if time.Now().After(deadline) {
			h.logger.Printf("Job %s skipped: constraints unmet within flex window", job.spec.Name)
			job.setState(StateEnqueued)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(h.recheck):
		}
	}

	// Cancellation may have landed while we waited on constraints or the
	// initial delay; a cancelled job must not fire.
	select {
	case <-ctx.Done():
		return
	default:
	}

	job.setState(StateRunning)
	if err := job.spec.Run(ctx); err != nil {
		h.logger.Printf("Job %s failed: %v", job.spec.Name, err)
		job.setState(StateFailed)
		return
	}
	job.setState(StateSucceeded)
}
