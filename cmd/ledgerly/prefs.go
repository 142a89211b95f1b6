package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Manage user preferences",
}

var (
	prefCurrency   string
	prefDateFormat string
	prefTheme      string
	prefAccount    string
	prefFirstDay   int
)

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current preferences",
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv()
		defer e.close()

		p, err := e.db.GetPreferences(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading preferences: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Currency:           %s\n", p.Currency)
		fmt.Printf("Date format:        %s\n", p.DateFormat)
		fmt.Printf("Theme:              %s\n", p.Theme)
		if p.DefaultAccount != "" {
			fmt.Printf("Default account:    %s\n", p.DefaultAccount)
		}
		fmt.Printf("First day of month: %d\n", p.FirstDayOfMonth)
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update preferences",
	Long: `Update one or more preference fields. Flags not given keep their
current value.`,
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv()
		defer e.close()

		ctx := context.Background()
		p, err := e.db.GetPreferences(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading preferences: %v\n", err)
			os.Exit(1)
		}

		if cmd.Flags().Changed("currency") {
			p.Currency = prefCurrency
		}
		if cmd.Flags().Changed("date-format") {
			p.DateFormat = prefDateFormat
		}
		if cmd.Flags().Changed("theme") {
			p.Theme = prefTheme
		}
		if cmd.Flags().Changed("account") {
			p.DefaultAccount = prefAccount
		}
		if cmd.Flags().Changed("first-day") {
			p.FirstDayOfMonth = prefFirstDay
		}

		if err := e.db.SetPreferences(ctx, p); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving preferences: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Preferences saved.")
	},
}

func init() {
	prefsSetCmd.Flags().StringVar(&prefCurrency, "currency", "", "display currency code")
	prefsSetCmd.Flags().StringVar(&prefDateFormat, "date-format", "", "date display format")
	prefsSetCmd.Flags().StringVar(&prefTheme, "theme", "", "UI theme (light, dark or system)")
	prefsSetCmd.Flags().StringVar(&prefAccount, "account", "", "default account name")
	prefsSetCmd.Flags().IntVar(&prefFirstDay, "first-day", 1, "first day of the budgeting month")

	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsSetCmd)
	rootCmd.AddCommand(prefsCmd)
}
