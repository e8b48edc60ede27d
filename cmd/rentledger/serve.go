package main

import (
	"github.com/smallbiznis/rentledger/internal/scheduler"
	"github.com/smallbiznis/rentledger/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API. Jobs can be triggered through /api/jobs; pass
--with-scheduler to also run the cron triggers in this process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		withScheduler, _ := cmd.Flags().GetBool("with-scheduler")

		opts := []fx.Option{ledger(), server.Module}
		if withScheduler {
			opts = append(opts, scheduler.CronModule)
		}
		app := fx.New(opts...)
		if err := app.Err(); err != nil {
			return err
		}
		app.Run()
		return nil
	},
}

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the cron triggers for late fees and monthly invoice generation",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(ledger(), scheduler.CronModule)
		if err := app.Err(); err != nil {
			return err
		}
		app.Run()
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("with-scheduler", false, "Also run the cron triggers in the API process")
	rootCmd.AddCommand(serveCmd, schedulerCmd)
}
