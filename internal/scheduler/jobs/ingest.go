// Package jobs holds the concrete scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/astock-tools/screener/internal/ingest"
	"github.com/astock-tools/screener/pkg/config"
	"github.com/astock-tools/screener/pkg/logger"
)

// IngestJob refreshes the instrument listing and tops up daily bars after
// the close.
type IngestJob struct {
	collector *ingest.Collector
	cfg       config.ProviderConfig
	logger    *logger.Logger
}

// NewIngestJob creates the nightly ingest job.
func NewIngestJob(collector *ingest.Collector, cfg config.ProviderConfig, log *logger.Logger) *IngestJob {
	return &IngestJob{collector: collector, cfg: cfg, logger: log}
}

func (j *IngestJob) Name() string { return "daily_ingest" }

// Schedule runs on weekdays at 17:30, after settlement data is final.
func (j *IngestJob) Schedule() string { return "0 30 17 * * 1-5" }

func (j *IngestJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled ingest")

	if _, err := j.collector.SyncInstruments(ctx); err != nil {
		return fmt.Errorf("sync instruments: %w", err)
	}

	results, err := j.collector.CollectLatest(ctx, time.Now(), ingest.Config{Workers: j.cfg.Workers})
	if err != nil {
		return fmt.Errorf("collect latest bars: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}
	if failed > 0 {
		j.logger.WithField("failed", failed).Warn("Some instruments failed to ingest")
	}
	return nil
}
