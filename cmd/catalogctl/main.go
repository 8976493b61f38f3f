// Command catalogctl imports product feeds and manages the catalog database
// from the command line.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "catalogctl",
	Short: "Product catalog import tool",
	Long: `catalogctl imports product feeds (.csv, .xlsx) into the catalog database
and inspects the import run ledger.

Examples:
  catalogctl migrate up                    # Apply schema migrations
  catalogctl import feed.xlsx              # Import a feed and print a summary
  catalogctl runs --status failed          # List failed runs
  catalogctl convert feed.csv -o feed.xlsx # Convert a CSV feed to Excel
  catalogctl generate --rows 10000         # Write a synthetic feed for load tests`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(generateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
