package jobs

import (
	"context"
	"fmt"

	"github.com/astock-tools/screener/internal/contracts"
	"github.com/astock-tools/screener/internal/strategy"
	"github.com/astock-tools/screener/pkg/logger"
)

// ScreeningJob runs every strategy after the nightly ingest so reports and
// the result cache are fresh for the next morning.
type ScreeningJob struct {
	runner *strategy.Runner
	logger *logger.Logger
}

// NewScreeningJob creates the nightly screening job.
func NewScreeningJob(runner *strategy.Runner, log *logger.Logger) *ScreeningJob {
	return &ScreeningJob{runner: runner, logger: log}
}

func (j *ScreeningJob) Name() string { return "daily_screening" }

// Schedule runs on weekdays at 18:30, an hour after ingest.
func (j *ScreeningJob) Schedule() string { return "0 30 18 * * 1-5" }

func (j *ScreeningJob) Run(ctx context.Context) error {
	params := strategy.Params{Threshold: -1}

	runs := []struct {
		name string
		fn   func(context.Context, strategy.Params) ([]contracts.Candidate, contracts.RunStatus, error)
	}{
		{"rps", j.runner.RunRPS},
		{"trend", j.runner.RunTrend},
		{"combined", j.runner.RunCombined},
	}

	for _, run := range runs {
		_, status, err := run.fn(ctx, params)
		if err != nil {
			return fmt.Errorf("%s strategy: %w", run.name, err)
		}
		j.logger.WithFields(map[string]interface{}{
			"strategy":   run.name,
			"candidates": status.Candidates,
			"empty":      status.Empty,
		}).Info("Scheduled strategy run finished")
	}
	return nil
}
