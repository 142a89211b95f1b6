package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Olooce/ledgerly/internal/ledger"
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Manage transactions",
}

var (
	txType   string
	txDate   string
	txNote   string
	txMethod string
	txTags   []string
	txAll    bool
)

var txAddCmd = &cobra.Command{
	Use:   "add <category> <amount>",
	Short: "Record a transaction",
	Long: `Record an expense or income transaction in the local database.

The amount is a decimal string ("42.50"). The date defaults to today
and accepts YYYY-MM-DD.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv()
		defer e.close()

		amount, err := decimal.NewFromString(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid amount %q: %v\n", args[1], err)
			os.Exit(1)
		}

		date := time.Now()
		if txDate != "" {
			date, err = time.Parse("2006-01-02", txDate)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: invalid date %q (want YYYY-MM-DD)\n", txDate)
				os.Exit(1)
			}
		}

		t := &ledger.Transaction{
			Type:          txType,
			Category:      args[0],
			Amount:        amount,
			Date:          date,
			Note:          txNote,
			PaymentMethod: txMethod,
			Tags:          txTags,
		}
		if err := t.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := e.db.InsertTransaction(context.Background(), t); err != nil {
			fmt.Fprintf(os.Stderr, "Error recording transaction: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Recorded %s %s %s (id %d)\n", t.Type, t.Category, t.Amount.StringFixed(2), t.ID)
	},
}

var txListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transactions",
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv()
		defer e.close()

		ctx := context.Background()
		var (
			txs []*ledger.Transaction
			err error
		)
		if txAll {
			txs, err = e.db.ListTransactionsWithDeleted(ctx)
		} else {
			txs, err = e.db.ListTransactions(ctx)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing transactions: %v\n", err)
			os.Exit(1)
		}
		if len(txs) == 0 {
			fmt.Println("No transactions.")
			return
		}

		for _, t := range txs {
			marker := " "
			if t.IsDeleted {
				marker = "D"
			}
			line := fmt.Sprintf("%s %6d  %-10s %-14s %10s  %s",
				marker, t.ID, t.Type, t.Category, t.Amount.StringFixed(2),
				t.Date.Format("2006-01-02"))
			if len(t.Tags) > 0 {
				line += "  [" + strings.Join(t.Tags, ",") + "]"
			}
			if t.Note != "" {
				line += "  " + t.Note
			}
			fmt.Println(line)
		}
	},
}

var txRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a transaction",
	Long: `Delete a transaction by id.

The row is tombstoned, not erased, so the deletion propagates to other
devices on the next sync. Tombstones are erased for good once they age
past the retention window (see 'ledgerly gc').`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid id %q\n", args[0])
			os.Exit(1)
		}

		e := openEnv()
		defer e.close()

		if err := e.db.SoftDeleteTransaction(context.Background(), id, ledger.NowMillis()); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting transaction: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted transaction %d\n", id)
	},
}

func init() {
	txAddCmd.Flags().StringVar(&txType, "type", ledger.TypeExpense, "transaction type (expense or income)")
	txAddCmd.Flags().StringVar(&txDate, "date", "", "transaction date (YYYY-MM-DD, default today)")
	txAddCmd.Flags().StringVar(&txNote, "note", "", "free-form note")
	txAddCmd.Flags().StringVar(&txMethod, "method", "", "payment method")
	txAddCmd.Flags().StringSliceVar(&txTags, "tag", nil, "tag (repeatable)")
	txListCmd.Flags().BoolVar(&txAll, "all", false, "include deleted transactions")

	txCmd.AddCommand(txAddCmd)
	txCmd.AddCommand(txListCmd)
	txCmd.AddCommand(txRmCmd)
	rootCmd.AddCommand(txCmd)
}
