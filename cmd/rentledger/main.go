package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "rentledger",
	Short: "Rent billing ledger: invoices, payments, tenant credit and late fees",
	Long: `rentledger runs the rent billing ledger.

Configuration is read from the environment (and a .env file when present).
The late fee and due-date rules live in billing.yml, see BILLING_CONFIG_PATH.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rentledger: %v\n", err)
		os.Exit(1)
	}
}
