package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/smallbiznis/rentledger/internal/migration"
	"github.com/smallbiznis/rentledger/internal/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context(), fx.Options(infrastructure(), migration.Module), nil)
	},
}

var lateFeesCmd = &cobra.Command{
	Use:   "late-fees",
	Short: "Mark overdue invoices and apply the fixed late fee once",
	Example: `  # daily, after midnight UTC
  rentledger late-fees`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd.Context(), func(ctx context.Context, s *scheduler.Scheduler) (any, error) {
			return s.RunLateFees(ctx)
		})
	},
}

var generateInvoicesCmd = &cobra.Command{
	Use:   "generate-invoices",
	Short: "Create this month's invoice for every active tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd.Context(), func(ctx context.Context, s *scheduler.Scheduler) (any, error) {
			return s.RunGenerateInvoices(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, lateFeesCmd, generateInvoicesCmd)
}

// runOnce starts the graph, calls fn while it is running, then stops it.
func runOnce(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	app := fx.New(opts)
	startCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	var runErr error
	if fn != nil {
		runErr = fn(ctx)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func runJob(ctx context.Context, job func(context.Context, *scheduler.Scheduler) (any, error)) error {
	var s *scheduler.Scheduler
	return runOnce(ctx, fx.Options(ledger(), fx.Populate(&s)), func(ctx context.Context) error {
		result, err := job(ctx, s)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("print result: %w", err)
		}
		return nil
	})
}
