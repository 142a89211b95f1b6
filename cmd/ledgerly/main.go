package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ledgerly",
	Short: "Offline-first personal finance tracker",
	Long: `Ledgerly tracks expenses, income, budgets and recurring transactions
in a local SQLite database and syncs them to a CouchDB cloud store.

All commands work offline. Sync runs on demand ('ledgerly sync now'),
on a schedule ('ledgerly sync enable' plus a running daemon), and
opportunistically after local writes while the daemon is up.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ledgerly.yaml in the user config dir)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
