package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gridfeed",
	Short: "Session-grid minute bar ingestion service",
	Long: `gridfeed - intraday bar ingestion and reconciliation

Fetches minute bars from the market data provider, reprojects them onto
the canonical session grid, screens sessions for corporate-action
contamination and persists an idempotent, append-only dataset.

Usage:
  go run ./cmd/gridfeed [command]

Examples:
  go run ./cmd/gridfeed migrate
  go run ./cmd/gridfeed ingest --sessions 5
  go run ./cmd/gridfeed gaps --symbol SBER.ME --date 2026-08-24
  go run ./cmd/gridfeed quality
  go run ./cmd/gridfeed api`,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
