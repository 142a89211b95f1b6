package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/Olooce/ledgerly/internal/auth"
	"github.com/Olooce/ledgerly/internal/sync"
)

// Schedule names. One outstanding periodic job per name.
const (
	JobFullSync     = "periodic-full-sync"
	JobMaterializer = "recurring-materialization"
)

// Floors for the periodic sync schedule.
const (
	MinInterval = time.Hour
	MinFlex     = 15 * time.Minute
)

// Defaults for the materializer schedule: daily, short initial delay, no
// network requirement.
const (
	materializerPeriod = 24 * time.Hour
	materializerDelay  = time.Minute
)

// Event reports a schedule state change for display.
type Event struct {
	Job    string
	State  JobState
	At     time.Time
	Detail string
}

// EventSink receives schedule state changes. The status stream implements it.
type EventSink interface {
	Publish(Event)
}

// Settings is the persisted sync configuration the scheduler manages.
type Settings interface {
	MetaGet(ctx context.Context, key string) (string, error)
	MetaSet(ctx context.Context, key, value string) error
}

// Meta keys. Kept in the local store's meta table.
const (
	keySyncEnabled  = "sync_enabled"
	keyLastSyncTime = "last_sync_time"
)

// Options configure the periodic full-sync schedule.
type Options struct {
	// Interval between periodic syncs; floored to MinInterval.
	Interval time.Duration

	// Flex is how long a firing may wait for constraints; floored to
	// MinFlex.
	Flex time.Duration

	// RequireUnmetered gates syncs on an unmetered connection (wifi).
	// When false, any connection will do.
	RequireUnmetered bool

	// RequireCharging gates syncs on the device charging.
	RequireCharging bool
}

func (o Options) constraints() Constraints {
	network := NetworkMetered
	if o.RequireUnmetered {
		network = NetworkUnmetered
	}
	return Constraints{
		Network:               network,
		RequiresCharging:      o.RequireCharging,
		RequiresBatteryNotLow: true,
	}
}

// Scheduler decides when full syncs run. All trigger paths funnel into the
// orchestrator, whose shared lock keeps at most one sync in flight.
type Scheduler struct {
	host     Host
	orch     *sync.Orchestrator
	settings Settings
	auth     auth.Provider
	deviceID string
	events   EventSink
	logger   *log.Logger
}

// New creates a Scheduler.
//
// events may be nil when no status stream is attached. If logger is nil, a
// default logger writing to stderr is used.
func New(host Host, orch *sync.Orchestrator, settings Settings, provider auth.Provider, deviceID string, events EventSink, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(os.Stderr, "[sched] ", log.LstdFlags)
	}
	return &Scheduler{
		host:     host,
		orch:     orch,
		settings: settings,
		auth:     provider,
		deviceID: deviceID,
		events:   events,
		logger:   logger,
	}
}

// Enable turns on periodic syncing and runs one sync immediately.
//
// Rejected outright when unauthenticated. The enabled flag is persisted
// before the first sync attempt and rolled back if that attempt fails, so a
// half-enabled state never sticks.
func (s *Scheduler) Enable(ctx context.Context, opts Options) error {
	if !s.auth.IsAuthenticated() {
		return sync.ErrNotAuthenticated
	}

	previous, err := s.settings.MetaGet(ctx, keySyncEnabled)
	if err != nil {
		return err
	}
	if err := s.settings.MetaSet(ctx, keySyncEnabled, "true"); err != nil {
		return err
	}

	rollback := func() {
		if previous == "" {
			previous = "false"
		}
		if err := s.settings.MetaSet(ctx, keySyncEnabled, previous); err != nil {
			s.logger.Printf("WARNING: failed to roll back sync_enabled: %v", err)
		}
		_ = s.host.Cancel(JobFullSync)
	}

	if err := s.host.Enqueue(s.periodicSpec(opts)); err != nil {
		rollback()
		return fmt.Errorf("failed to enqueue periodic sync: %w", err)
	}

	// Enabling sync runs one immediately; a failed first sync rolls the
	// whole enable back.
	result, err := s.TriggerSync(ctx)
	if err != nil {
		rollback()
		return err
	}
	if !result.IsSuccessful() {
		rollback()
		return fmt.Errorf("initial sync failed: %s", result.Summary())
	}
	return nil
}

// Resume re-arms the periodic schedule from the persisted enabled flag,
// typically at daemon startup. Unlike Enable it runs no immediate sync and
// never touches the flag; when sync is disabled it does nothing.
func (s *Scheduler) Resume(ctx context.Context, opts Options) error {
	enabled, err := s.IsEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}
	return s.host.Enqueue(s.periodicSpec(opts))
}

// periodicSpec builds the full-sync job spec, flooring the interval and flex
// window so no caller can schedule pathologically tight syncs.
func (s *Scheduler) periodicSpec(opts Options) JobSpec {
	if opts.Interval < MinInterval {
		opts.Interval = MinInterval
	}
	if opts.Flex < MinFlex {
		opts.Flex = MinFlex
	}
	return JobSpec{
		Name:         JobFullSync,
		Every:        opts.Interval,
		Flex:         opts.Flex,
		InitialDelay: opts.Interval,
		Constraints:  opts.constraints(),
		Run:          s.runPeriodic,
	}
}

// Disable cancels the periodic schedule and persists the flag.
func (s *Scheduler) Disable(ctx context.Context) error {
	if err := s.host.Cancel(JobFullSync); err != nil {
		return err
	}
	return s.settings.MetaSet(ctx, keySyncEnabled, "false")
}

// IsEnabled reports the persisted enabled flag.
func (s *Scheduler) IsEnabled(ctx context.Context) (bool, error) {
	v, err := s.settings.MetaGet(ctx, keySyncEnabled)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

// State reports the periodic schedule's current job state.
func (s *Scheduler) State() JobState {
	return s.host.State(JobFullSync)
}

// TriggerSync runs a full sync right now, outside the periodic schedule.
//
// If a sync is already in flight the call is rejected with
// ErrSyncInProgress; it is never queued or parallelized.
func (s *Scheduler) TriggerSync(ctx context.Context) (sync.Result, error) {
	result, err := s.orch.FullSync(ctx, s.deviceID)
	if err != nil {
		// A rejected trigger never ran; the status stream must not
		// report it as running.
		return sync.Result{}, err
	}

	s.publish(JobFullSync, StateRunning, "manual")
	if result.IsSuccessful() {
		s.recordLastSync(ctx)
		s.publish(JobFullSync, StateSucceeded, "")
	} else {
		s.publish(JobFullSync, StateFailed, result.Summary())
	}
	return result, nil
}

// SyncOnSignIn runs the post-authentication sync. In-progress rejection is
// tolerated: a sync is already happening, which is what sign-in wants.
func (s *Scheduler) SyncOnSignIn(ctx context.Context) error {
	result, err := s.TriggerSync(ctx)
	if err == sync.ErrSyncInProgress {
		return nil
	}
	if err != nil {
		return err
	}
	if !result.IsSuccessful() {
		return fmt.Errorf("sign-in sync failed: %s", result.Summary())
	}
	return nil
}

// ScheduleMaterializer enqueues the daily recurring-transaction
// materialization job. Independent of the sync schedule; needs no network.
func (s *Scheduler) ScheduleMaterializer(run func(ctx context.Context) error) error {
	return s.host.Enqueue(JobSpec{
		Name:         JobMaterializer,
		Every:        materializerPeriod,
		InitialDelay: materializerDelay,
		Constraints:  Constraints{Network: NetworkNone},
		Run:          run,
	})
}

// LastSyncTime returns when the last successful sync finished. For display
// only; it plays no part in conflict resolution.
func (s *Scheduler) LastSyncTime(ctx context.Context) (time.Time, bool) {
	v, err := s.settings.MetaGet(ctx, keyLastSyncTime)
	if err != nil || v == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// runPeriodic is the periodic job's work function. A concurrent manual sync
// is not an error; the period simply yields.
func (s *Scheduler) runPeriodic(ctx context.Context) error {
	result, err := s.orch.FullSync(ctx, s.deviceID)
	if err == sync.ErrSyncInProgress {
		s.logger.Printf("Periodic sync skipped: %v", err)
		return nil
	}
	if err != nil {
		return err
	}
	if !result.IsSuccessful() {
		return fmt.Errorf("periodic sync failed: %s", result.Summary())
	}
	s.recordLastSync(ctx)
	return nil
}

func (s *Scheduler) recordLastSync(ctx context.Context) {
	ms := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := s.settings.MetaSet(ctx, keyLastSyncTime, ms); err != nil {
		s.logger.Printf("WARNING: failed to record last sync time: %v", err)
	}
}

func (s *Scheduler) publish(job string, state JobState, detail string) {
	if s.events == nil {
		return
	}
	s.events.Publish(Event{Job: job, State: state, At: time.Now(), Detail: detail})
}
