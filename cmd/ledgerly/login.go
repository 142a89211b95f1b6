package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var loginTTLHours int

var loginCmd = &cobra.Command{
	Use:   "login <owner-id>",
	Short: "Sign in and start a session",
	Long: `Sign in as an owner and persist a session token under the data
directory. While signed in, sync commands and the daemon push and pull
this owner's data.

If periodic sync is enabled, signing in triggers a sync right away so
a fresh device converges without waiting for the schedule.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if loginTTLHours <= 0 {
			fmt.Fprintf(os.Stderr, "Error: --ttl must be positive\n")
			os.Exit(1)
		}

		e := openEnv()
		defer e.close()

		ttl := time.Duration(loginTTLHours) * time.Hour
		if err := e.session.Login(args[0], ttl); err != nil {
			fmt.Fprintf(os.Stderr, "Error signing in: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Signed in as %s.\n", args[0])

		ctx := context.Background()
		logger := log.New(os.Stderr, "[sync] ", log.LstdFlags)
		sched, host := newScheduler(ctx, e, logger)
		defer host.Close()

		enabled, err := sched.IsEnabled(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not read sync settings: %v\n", err)
			return
		}
		if !enabled {
			return
		}
		if err := sched.SyncOnSignIn(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: post-sign-in sync failed: %v\n", err)
			return
		}
		fmt.Println("Post-sign-in sync complete.")
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the session",
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv()
		defer e.close()

		if err := e.session.Logout(); err != nil {
			fmt.Fprintf(os.Stderr, "Error signing out: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Signed out.")
	},
}

func init() {
	loginCmd.Flags().IntVar(&loginTTLHours, "ttl", 720, "session lifetime in hours")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
