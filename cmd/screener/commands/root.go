package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global strategy flags shared by the screening commands.
	endDate    string
	periodDays int
	threshold  float64
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "screener",
	Short: "Personal equity screening toolkit",
	Long: `Daily bar ingestion, technical indicators, RPS percentile ranking and
multi-stage screening strategies with CSV reports.

Usage:
  go run ./cmd/screener [command]

Examples:
  go run ./cmd/screener ingest
  go run ./cmd/screener rps --end-date 20250626 --period 20
  go run ./cmd/screener combined
  go run ./cmd/screener api`,
}

// Execute runs the CLI. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}
