package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Olooce/ledgerly/internal/ledger"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Manage budgets",
}

var budgetAll bool

var budgetSetCmd = &cobra.Command{
	Use:   "set <category> <period> <amount>",
	Short: "Set a budget for a category and period",
	Long: `Set the budget amount for a category in a period.

Periods are free-form labels like "2026-08" or "2026-Q3". Setting an
existing budget overwrites its amount.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		amount, err := decimal.NewFromString(args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid amount %q: %v\n", args[2], err)
			os.Exit(1)
		}

		e := openEnv()
		defer e.close()

		b := &ledger.Budget{Category: args[0], Period: args[1], Amount: amount}
		if err := b.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := e.db.SetBudget(context.Background(), b); err != nil {
			fmt.Fprintf(os.Stderr, "Error setting budget: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Budget %s/%s set to %s\n", b.Category, b.Period, b.Amount.StringFixed(2))
	},
}

var budgetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List budgets",
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv()
		defer e.close()

		ctx := context.Background()
		var (
			budgets []*ledger.Budget
			err     error
		)
		if budgetAll {
			budgets, err = e.db.ListBudgetsWithDeleted(ctx)
		} else {
			budgets, err = e.db.ListBudgets(ctx)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing budgets: %v\n", err)
			os.Exit(1)
		}
		if len(budgets) == 0 {
			fmt.Println("No budgets.")
			return
		}

		for _, b := range budgets {
			marker := " "
			if b.IsDeleted {
				marker = "D"
			}
			fmt.Printf("%s %-14s %-10s %10s\n", marker, b.Category, b.Period, b.Amount.StringFixed(2))
		}
	},
}

var budgetRmCmd = &cobra.Command{
	Use:   "rm <category> <period>",
	Short: "Delete a budget",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv()
		defer e.close()

		if err := e.db.SoftDeleteBudget(context.Background(), args[0], args[1], ledger.NowMillis()); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting budget: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted budget %s/%s\n", args[0], args[1])
	},
}

func init() {
	budgetListCmd.Flags().BoolVar(&budgetAll, "all", false, "include deleted budgets")

	budgetCmd.AddCommand(budgetSetCmd)
	budgetCmd.AddCommand(budgetListCmd)
	budgetCmd.AddCommand(budgetRmCmd)
	rootCmd.AddCommand(budgetCmd)
}
