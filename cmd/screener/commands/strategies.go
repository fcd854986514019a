package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/astock-tools/screener/internal/contracts"
	"github.com/astock-tools/screener/internal/strategy"
	"github.com/astock-tools/screener/pkg/dates"
)

var rpsCmd = &cobra.Command{
	Use:   "rps",
	Short: "Rank the universe by interval price strength",
	Long: `Ranks every instrument by price change over the configured interval
and keeps the percentile scores at or above the threshold.

Example:
  go run ./cmd/screener rps --end-date 20250626 --period 20 --threshold 90`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStrategy(cmd.Context(), "rps")
	},
}

var maCmd = &cobra.Command{
	Use:   "ma",
	Short: "Screen for sustained moving-average alignment",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStrategy(cmd.Context(), "ma")
	},
}

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Screen on all technical stages (strict intersection)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStrategy(cmd.Context(), "trend")
	},
}

var combinedCmd = &cobra.Command{
	Use:   "combined",
	Short: "RPS ranking plus technical screens with relaxed combination",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStrategy(cmd.Context(), "combined")
	},
}

func init() {
	for _, cmd := range []*cobra.Command{rpsCmd, maCmd, trendCmd, combinedCmd} {
		cmd.Flags().StringVar(&endDate, "end-date", "", "evaluation date, YYYYMMDD or YYYY-MM-DD (default: latest)")
		cmd.Flags().IntVar(&periodDays, "period", 0, "ranking interval in days (default: configured)")
		cmd.Flags().Float64Var(&threshold, "threshold", -1, "rps cutoff 0-100 (default: configured)")
		rootCmd.AddCommand(cmd)
	}
}

func runStrategy(ctx context.Context, name string) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	params := strategy.Params{
		EndDate:    endDate,
		PeriodDays: periodDays,
		Threshold:  threshold,
	}

	var (
		candidates []contracts.Candidate
		status     contracts.RunStatus
	)
	switch name {
	case "rps":
		candidates, status, err = a.runner.RunRPS(ctx, params)
	case "ma":
		candidates, status, err = a.runner.RunMA(ctx, params)
	case "trend":
		candidates, status, err = a.runner.RunTrend(ctx, params)
	case "combined":
		candidates, status, err = a.runner.RunCombined(ctx, params)
	}
	if err != nil {
		return fmt.Errorf("%s strategy: %w", name, err)
	}

	printResult(name, candidates, status)
	return nil
}

func printResult(name string, candidates []contracts.Candidate, status contracts.RunStatus) {
	fmt.Printf("=== %s strategy (%s) ===\n", name, dates.Format(status.EndDate))
	if status.Empty {
		fmt.Println("no candidates")
		return
	}

	for i, c := range candidates {
		fmt.Printf("%3d  %-10s %-12s rps=%3.0f  %s\n",
			i+1, c.DisplayCode, c.Name, c.RPS, strategy.JoinTags(c.ConditionsMet))
	}
	if status.ReportPath != "" {
		fmt.Printf("report: %s\n", status.ReportPath)
	}
}
