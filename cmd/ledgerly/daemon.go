package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Olooce/ledgerly/internal/device"
	"github.com/Olooce/ledgerly/internal/gc"
	"github.com/Olooce/ledgerly/internal/recurring"
	"github.com/Olooce/ledgerly/internal/scheduler"
	"github.com/Olooce/ledgerly/internal/status"
	syncpkg "github.com/Olooce/ledgerly/internal/sync"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync daemon (foreground)",
	Long: `Run the background daemon in the foreground until interrupted.

The daemon:
  1. Re-arms the periodic full sync from persisted settings
  2. Watches the local database and syncs shortly after writes
  3. Materializes due recurring transactions once a day
  4. Erases expired tombstones once a day
  5. Serves live sync status over WebSocket and HTTP

Run it under a process manager for production use.`,
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv()
		defer e.close()

		logger := log.New(os.Stderr, "[daemon] ", log.LstdFlags)
		if e.cfg.Log.File != "" {
			logger.SetOutput(&lumberjack.Logger{
				Filename:   e.cfg.Log.File,
				MaxSize:    e.cfg.Log.MaxSizeMB,
				MaxBackups: e.cfg.Log.MaxBackups,
			})
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		rs := e.remoteStore(logger)
		if err := rs.Init(ctx); err != nil {
			// The daemon must come up offline; remote init retries are
			// implicit in the first successful sync.
			logger.Printf("WARNING: remote store init failed: %v", err)
		}

		deviceID, err := device.Identity(ctx, e.db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resolving device identity: %v\n", err)
			os.Exit(1)
		}
		orch := syncpkg.New(e.db, rs, e.session, nil, logger)

		host := scheduler.NewTickerHost(nil, logger)
		defer host.Close()

		// The status server snapshots the scheduler and the scheduler
		// publishes events to the server, so wire the snapshot through a
		// late-bound variable.
		var sched *scheduler.Scheduler
		statusSrv := status.NewServer(e.cfg.Status.Addr, func(ctx context.Context) status.Snapshot {
			snap := status.Snapshot{SyncState: sched.State().String()}
			if enabled, err := sched.IsEnabled(ctx); err == nil {
				snap.SyncEnabled = enabled
			}
			if last, ok := sched.LastSyncTime(ctx); ok {
				snap.LastSyncTime = &last
			}
			return snap
		}, logger)
		sched = scheduler.New(host, orch, e.db, e.session, deviceID, statusSrv, logger)

		if err := statusSrv.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting status server: %v\n", err)
			os.Exit(1)
		}
		defer statusSrv.Stop()

		opts := scheduler.Options{
			Interval:         time.Duration(e.cfg.Sync.IntervalHours) * time.Hour,
			RequireUnmetered: e.cfg.Sync.RequireUnmetered,
			RequireCharging:  e.cfg.Sync.RequireCharging,
		}
		if err := sched.Resume(ctx, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error resuming sync schedule: %v\n", err)
			os.Exit(1)
		}

		mat := recurring.New(e.db, logger)
		if err := sched.ScheduleMaterializer(mat.Run); err != nil {
			fmt.Fprintf(os.Stderr, "Error scheduling materializer: %v\n", err)
			os.Exit(1)
		}

		retention := time.Duration(e.cfg.GC.RetentionDays) * 24 * time.Hour
		collector := gc.New(e.db, rs, e.session, retention, logger)
		err = host.Enqueue(scheduler.JobSpec{
			Name:         "tombstone-gc",
			Every:        24 * time.Hour,
			InitialDelay: 5 * time.Minute,
			Run: func(ctx context.Context) error {
				collector.Collect(ctx)
				return nil
			},
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error scheduling tombstone collection: %v\n", err)
			os.Exit(1)
		}

		// Local writes nudge a sync once the store goes quiet. Skipping
		// while disabled or already syncing is the normal case.
		watcher, err := scheduler.NewStoreWatcher(e.cfg.DBPath(), 30*time.Second, func(ctx context.Context) {
			enabled, err := sched.IsEnabled(ctx)
			if err != nil || !enabled {
				return
			}
			if _, err := sched.TriggerSync(ctx); err != nil && !errors.Is(err, syncpkg.ErrSyncInProgress) {
				logger.Printf("WARNING: change-triggered sync failed: %v", err)
			}
		}, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating store watcher: %v\n", err)
			os.Exit(1)
		}
		if err := watcher.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting store watcher: %v\n", err)
			os.Exit(1)
		}
		defer watcher.Stop()

		logger.Printf("Daemon started (device %s, status on %s)", deviceID, statusSrv.Addr())
		fmt.Printf("Ledgerly daemon running. Status: http://%s/status\n", statusSrv.Addr())

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		logger.Printf("Shutting down")
		fmt.Println("\nShutting down.")
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
