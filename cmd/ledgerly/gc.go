package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Olooce/ledgerly/internal/gc"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Erase expired tombstones",
	Long: `Erase tombstones older than the retention window from the local
database and, when signed in, from the cloud store.

Deleted rows are kept as tombstones so deletions propagate between
devices; once every device has had a chance to sync them they are dead
weight. Failures are logged and never block - the next run retries.

The daemon runs this automatically; the command exists for manual runs
and cron-style setups.`,
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv()
		defer e.close()

		logger := log.New(os.Stderr, "[gc] ", log.LstdFlags)
		rs := e.remoteStore(logger)
		retention := time.Duration(e.cfg.GC.RetentionDays) * 24 * time.Hour

		collector := gc.New(e.db, rs, e.session, retention, logger)
		collector.Collect(context.Background())
		fmt.Println("Tombstone collection finished.")
	},
}

func init() {
	rootCmd.AddCommand(gcCmd)
}
