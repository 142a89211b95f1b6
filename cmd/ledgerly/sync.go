package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Olooce/ledgerly/internal/scheduler"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the local database with the cloud store",
}

var (
	syncIntervalHours int
	syncWifiOnly      bool
	syncChargingOnly  bool
)

// newScheduler wires a scheduler over a throwaway in-process host. One-shot
// commands only need the scheduler's persisted settings and the shared sync
// path; the periodic job itself lives in the daemon.
func newScheduler(ctx context.Context, e *env, logger *log.Logger) (*scheduler.Scheduler, *scheduler.TickerHost) {
	orch, deviceID := e.orchestrator(ctx, logger)
	host := scheduler.NewTickerHost(nil, logger)
	return scheduler.New(host, orch, e.db, e.session, deviceID, nil, logger), host
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Run a full sync immediately",
	Long: `Push local changes for every entity to the cloud store and pull the
remote state back, in a fixed order: transactions, budgets, recurring
transactions, preferences.

Requires a signed-in session ('ledgerly login'). Fails fast if another
sync is already running.`,
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv()
		defer e.close()

		ctx := context.Background()
		logger := log.New(os.Stderr, "[sync] ", log.LstdFlags)
		sched, host := newScheduler(ctx, e, logger)
		defer host.Close()

		start := time.Now()
		result, err := sched.TriggerSync(ctx)
		if err != nil {
			// Only another in-flight sync surfaces here; per-entity
			// failures land in the result.
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if result.IsSuccessful() {
			fmt.Printf("Sync complete in %v\n", time.Since(start).Round(time.Millisecond))
			return
		}
		fmt.Fprintf(os.Stderr, "Sync finished with errors: %s\n", result.Summary())
		os.Exit(1)
	},
}

var syncEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable periodic background sync",
	Long: `Enable periodic background sync and run a first sync immediately.

The enabled flag and schedule settings persist in the local database;
the daemon picks them up and keeps syncing on the interval. If the
first sync fails, enabling is rolled back.`,
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv()
		defer e.close()

		ctx := context.Background()
		logger := log.New(os.Stderr, "[sync] ", log.LstdFlags)
		sched, host := newScheduler(ctx, e, logger)
		defer host.Close()

		interval := time.Duration(e.cfg.Sync.IntervalHours) * time.Hour
		if cmd.Flags().Changed("interval") {
			interval = time.Duration(syncIntervalHours) * time.Hour
		}
		opts := scheduler.Options{
			Interval:         interval,
			RequireUnmetered: e.cfg.Sync.RequireUnmetered || syncWifiOnly,
			RequireCharging:  e.cfg.Sync.RequireCharging || syncChargingOnly,
		}
		if err := sched.Enable(ctx, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error enabling sync: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Periodic sync enabled (every %v).\n", opts.Interval)
	},
}

var syncDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable periodic background sync",
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv()
		defer e.close()

		ctx := context.Background()
		logger := log.New(os.Stderr, "[sync] ", log.LstdFlags)
		sched, host := newScheduler(ctx, e, logger)
		defer host.Close()

		if err := sched.Disable(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error disabling sync: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Periodic sync disabled.")
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv()
		defer e.close()

		ctx := context.Background()
		logger := log.New(os.Stderr, "[sync] ", log.LstdFlags)
		sched, host := newScheduler(ctx, e, logger)
		defer host.Close()

		if owner := e.session.OwnerID(); owner != "" {
			fmt.Printf("Signed in as:  %s\n", owner)
		} else {
			fmt.Println("Signed in as:  (not signed in)")
		}

		enabled, err := sched.IsEnabled(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading sync settings: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Periodic sync: %v\n", enabled)

		if last, ok := sched.LastSyncTime(ctx); ok {
			fmt.Printf("Last sync:     %s\n", last.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Println("Last sync:     never")
		}
	},
}

func init() {
	syncEnableCmd.Flags().IntVar(&syncIntervalHours, "interval", 0, "sync interval in hours (default from config)")
	syncEnableCmd.Flags().BoolVar(&syncWifiOnly, "wifi-only", false, "only sync on an unmetered connection")
	syncEnableCmd.Flags().BoolVar(&syncChargingOnly, "charging-only", false, "only sync while charging")

	syncCmd.AddCommand(syncNowCmd)
	syncCmd.AddCommand(syncEnableCmd)
	syncCmd.AddCommand(syncDisableCmd)
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}
