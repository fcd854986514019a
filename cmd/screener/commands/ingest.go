package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/astock-tools/screener/internal/ingest"
	"github.com/astock-tools/screener/pkg/dates"
)

var (
	ingestFrom       string
	ingestTo         string
	ingestMinRecords int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch instruments and daily bars from the quote provider",
	Long: `Refreshes the instrument listing and tops every instrument up to the
latest trading day. With --from/--to, collects that exact range instead.

Examples:
  go run ./cmd/screener ingest
  go run ./cmd/screener ingest --from 20240101 --to 20250626
  go run ./cmd/screener ingest complete --from 20240101 --to 20250626 --min-records 200`,
	RunE: runIngest,
}

var ingestCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Re-fetch instruments with incomplete history in a range",
	RunE:  runIngestComplete,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFrom, "from", "", "range start, YYYYMMDD")
	ingestCmd.Flags().StringVar(&ingestTo, "to", "", "range end, YYYYMMDD (default: today)")
	ingestCompleteCmd.Flags().StringVar(&ingestFrom, "from", "", "range start, YYYYMMDD")
	ingestCompleteCmd.Flags().StringVar(&ingestTo, "to", "", "range end, YYYYMMDD (default: today)")
	ingestCompleteCmd.Flags().IntVar(&ingestMinRecords, "min-records", 200, "minimum bars an instrument must hold in range")

	ingestCmd.AddCommand(ingestCompleteCmd)
	rootCmd.AddCommand(ingestCmd)
}

func ingestRange() (time.Time, time.Time, error) {
	from, err := dates.Parse(ingestFrom)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse --from: %w", err)
	}
	to, err := dates.Parse(ingestTo)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse --to: %w", err)
	}
	if to.IsZero() {
		to = dates.Day(time.Now())
	}
	return from, to, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	from, to, err := ingestRange()
	if err != nil {
		return err
	}

	listing, err := a.collector.SyncInstruments(ctx)
	if err != nil {
		return fmt.Errorf("sync instruments: %w", err)
	}
	fmt.Printf("instruments synced: %d\n", len(listing))

	cfg := ingest.Config{Workers: a.cfg.Provider.Workers}
	var results []ingest.FetchResult
	if from.IsZero() {
		results, err = a.collector.CollectLatest(ctx, to, cfg)
	} else {
		codes := make([]string, len(listing))
		for i, inst := range listing {
			codes[i] = inst.Code
		}
		results, err = a.collector.CollectRange(ctx, codes, from, to, cfg)
	}
	if err != nil {
		return fmt.Errorf("collect bars: %w", err)
	}

	printIngestSummary(results)
	return nil
}

func runIngestComplete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	from, to, err := ingestRange()
	if err != nil {
		return err
	}
	if from.IsZero() {
		return fmt.Errorf("--from is required")
	}

	codes, err := a.collector.Codes(ctx)
	if err != nil {
		return fmt.Errorf("list instruments: %w", err)
	}

	results, err := a.collector.CompleteRange(ctx, codes, from, to, ingestMinRecords,
		ingest.Config{Workers: a.cfg.Provider.Workers})
	if err != nil {
		return fmt.Errorf("complete range: %w", err)
	}

	printIngestSummary(results)
	return nil
}

func printIngestSummary(results []ingest.FetchResult) {
	saved, failed := 0, 0
	for _, r := range results {
		saved += r.Saved
		if r.Error != nil {
			failed++
		}
	}
	fmt.Printf("bars saved: %d, instruments failed: %d\n", saved, failed)
}
