package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Olooce/ledgerly/internal/ledger"
	"github.com/Olooce/ledgerly/internal/recurring"
)

var recurringCmd = &cobra.Command{
	Use:   "recurring",
	Short: "Manage recurring transactions",
}

var (
	recType   string
	recNote   string
	recMethod string
	recStart  string
	recEnd    string
	recAll    bool
)

var recurringAddCmd = &cobra.Command{
	Use:   "add <category> <amount> <frequency>",
	Short: "Add a recurring transaction template",
	Long: `Add a template that generates transactions on a schedule.

Frequency is one of daily, weekly, monthly or yearly. Due occurrences
are materialized by the daemon once a day, or on demand with
'ledgerly recurring run'.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		amount, err := decimal.NewFromString(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid amount %q: %v\n", args[1], err)
			os.Exit(1)
		}

		start := time.Now()
		if recStart != "" {
			start, err = time.Parse("2006-01-02", recStart)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: invalid start date %q (want YYYY-MM-DD)\n", recStart)
				os.Exit(1)
			}
		}
		var end *time.Time
		if recEnd != "" {
			t, err := time.Parse("2006-01-02", recEnd)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: invalid end date %q (want YYYY-MM-DD)\n", recEnd)
				os.Exit(1)
			}
			end = &t
		}

		e := openEnv()
		defer e.close()

		rt := &ledger.RecurringTransaction{
			Type:          recType,
			Category:      args[0],
			Amount:        amount,
			Note:          recNote,
			PaymentMethod: recMethod,
			Frequency:     ledger.Frequency(args[2]),
			StartDate:     start,
			EndDate:       end,
		}
		if err := rt.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := e.db.InsertRecurring(context.Background(), rt); err != nil {
			fmt.Fprintf(os.Stderr, "Error adding recurring transaction: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added %s %s %s %s (id %d)\n",
			rt.Frequency, rt.Type, rt.Category, rt.Amount.StringFixed(2), rt.ID)
	},
}

var recurringListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recurring transaction templates",
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv()
		defer e.close()

		ctx := context.Background()
		var (
			rts []*ledger.RecurringTransaction
			err error
		)
		if recAll {
			rts, err = e.db.ListRecurringWithDeleted(ctx)
		} else {
			rts, err = e.db.ListRecurring(ctx)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing recurring transactions: %v\n", err)
			os.Exit(1)
		}
		if len(rts) == 0 {
			fmt.Println("No recurring transactions.")
			return
		}

		for _, rt := range rts {
			marker := " "
			if rt.IsDeleted {
				marker = "D"
			}
			line := fmt.Sprintf("%s %6d  %-8s %-10s %-14s %10s  next %s",
				marker, rt.ID, rt.Frequency, rt.Type, rt.Category,
				rt.Amount.StringFixed(2), rt.NextDue.Format("2006-01-02"))
			if rt.EndDate != nil {
				line += "  until " + rt.EndDate.Format("2006-01-02")
			}
			fmt.Println(line)
		}
	},
}

var recurringRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a recurring transaction template",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid id %q\n", args[0])
			os.Exit(1)
		}

		e := openEnv()
		defer e.close()

		if err := e.db.SoftDeleteRecurring(context.Background(), id, ledger.NowMillis()); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting recurring transaction: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted recurring transaction %d\n", id)
	},
}

var recurringRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Materialize due recurring transactions now",
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv()
		defer e.close()

		logger := log.New(os.Stderr, "[recurring] ", log.LstdFlags)
		m := recurring.New(e.db, logger)
		if err := m.Run(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error materializing recurring transactions: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Recurring transactions materialized.")
	},
}

func init() {
	recurringAddCmd.Flags().StringVar(&recType, "type", ledger.TypeExpense, "transaction type (expense or income)")
	recurringAddCmd.Flags().StringVar(&recNote, "note", "", "free-form note")
	recurringAddCmd.Flags().StringVar(&recMethod, "method", "", "payment method")
	recurringAddCmd.Flags().StringVar(&recStart, "start", "", "first due date (YYYY-MM-DD, default today)")
	recurringAddCmd.Flags().StringVar(&recEnd, "end", "", "last date occurrences may fall on (YYYY-MM-DD)")
	recurringListCmd.Flags().BoolVar(&recAll, "all", false, "include deleted templates")

	recurringCmd.AddCommand(recurringAddCmd)
	recurringCmd.AddCommand(recurringListCmd)
	recurringCmd.AddCommand(recurringRmCmd)
	recurringCmd.AddCommand(recurringRunCmd)
	rootCmd.AddCommand(recurringCmd)
}
