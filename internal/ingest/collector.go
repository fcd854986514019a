// Package ingest orchestrates bar collection from the quote provider into
// the bar repository. Per-instrument fetches are independent and
// idempotent (upsert on save), so a failed run can simply be repeated.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/astock-tools/screener/internal/contracts"
	"github.com/astock-tools/screener/internal/indicators"
	"github.com/astock-tools/screener/pkg/logger"
)

// maLeadInDays is how far before the requested range each fetch starts so
// the longest moving-average column is already warm on the first saved bar.
// 120 trading days needs roughly 180 calendar days of cushion.
const maLeadInDays = 200

// defaultHistoryDays is the initial backfill depth for instruments with no
// stored bars at all.
const defaultHistoryDays = 365

// Fetcher is what the collector consumes from the provider client.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, code string, from, to time.Time) ([]contracts.Bar, error)
	FetchInstruments(ctx context.Context) ([]contracts.Instrument, error)
}

// Config holds collector configuration.
type Config struct {
	Workers int // concurrent fetch workers
}

// FetchResult is the per-instrument outcome of one collection run.
type FetchResult struct {
	Code  string
	Saved int
	Error error
}

// Collector fans per-instrument fetches out over a bounded worker pool.
type Collector struct {
	fetcher     Fetcher
	bars        contracts.BarWriter
	source      contracts.BarRepository
	instruments contracts.InstrumentRepository
	logger      *logger.Logger
}

// NewCollector creates a collector.
func NewCollector(
	fetcher Fetcher,
	bars contracts.BarWriter,
	source contracts.BarRepository,
	instruments contracts.InstrumentRepository,
	log *logger.Logger,
) *Collector {
	return &Collector{
		fetcher:     fetcher,
		bars:        bars,
		source:      source,
		instruments: instruments,
		logger:      log.WithField("module", "collector"),
	}
}

// SyncInstruments refreshes the instrument reference table and returns
// the fetched listing.
func (c *Collector) SyncInstruments(ctx context.Context) ([]contracts.Instrument, error) {
	instruments, err := c.fetcher.FetchInstruments(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.instruments.SaveBatch(ctx, instruments); err != nil {
		return nil, err
	}
	c.logger.WithField("count", len(instruments)).Info("instrument listing synced")
	return instruments, nil
}

// CollectRange fetches and stores bars for every given instrument over
// [from, to]. Moving averages are computed before saving, over a lead-in
// window wide enough to make the longest column valid at from.
func (c *Collector) CollectRange(ctx context.Context, codes []string, from, to time.Time, cfg Config) ([]FetchResult, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}

	c.logger.WithFields(map[string]interface{}{
		"instruments": len(codes),
		"from":        from.Format("2006-01-02"),
		"to":          to.Format("2006-01-02"),
		"workers":     workers,
	}).Info("Starting bar collection")

	codeCh := make(chan string, len(codes))
	resultCh := make(chan FetchResult, len(codes))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(ctx, codeCh, resultCh, from, to)
		}()
	}

	for _, code := range codes {
		codeCh <- code
	}
	close(codeCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]FetchResult, 0, len(codes))
	success, failed := 0, 0
	for result := range resultCh {
		results = append(results, result)
		if result.Error != nil {
			failed++
		} else {
			success++
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"success": success,
		"failed":  failed,
	}).Info("Bar collection completed")

	return results, nil
}

// CollectLatest tops every instrument up from its newest stored bar to the
// given cutoff. Instruments already at the cutoff are skipped.
func (c *Collector) CollectLatest(ctx context.Context, to time.Time, cfg Config) ([]FetchResult, error) {
	codes, err := c.source.GetAllCodes(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := c.source.GetLatestDatePerInstrument(ctx)
	if err != nil {
		return nil, err
	}

	pending := make([]string, 0, len(codes))
	start := to
	for _, code := range codes {
		last, ok := latest[code]
		if ok && !last.Before(to) {
			continue
		}
		pending = append(pending, code)

		next := to.AddDate(0, 0, -defaultHistoryDays)
		if ok {
			next = last.AddDate(0, 0, 1)
		}
		if next.Before(start) {
			start = next
		}
	}
	if len(pending) == 0 {
		c.logger.Info("all instruments already current")
		return nil, nil
	}

	return c.CollectRange(ctx, pending, start, to, cfg)
}

// CompleteRange re-fetches instruments holding fewer than minRecords bars
// inside [from, to]. Saves are upserts, so re-fetching a partially stored
// range is harmless.
func (c *Collector) CompleteRange(ctx context.Context, codes []string, from, to time.Time, minRecords int, cfg Config) ([]FetchResult, error) {
	sparse := make([]string, 0)
	for _, code := range codes {
		count, err := c.bars.CountBars(ctx, code, from, to)
		if err != nil {
			return nil, err
		}
		if count < minRecords {
			sparse = append(sparse, code)
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"checked":    len(codes),
		"incomplete": len(sparse),
		"min":        minRecords,
	}).Info("completeness check finished")

	if len(sparse) == 0 {
		return nil, nil
	}
	return c.CollectRange(ctx, sparse, from, to, cfg)
}

// Codes lists every instrument with stored bars.
func (c *Collector) Codes(ctx context.Context) ([]string, error) {
	return c.source.GetAllCodes(ctx)
}

func (c *Collector) worker(ctx context.Context, codeCh <-chan string, resultCh chan<- FetchResult, from, to time.Time) {
	for code := range codeCh {
		select {
		case <-ctx.Done():
			resultCh <- FetchResult{Code: code, Error: ctx.Err()}
			return
		default:
		}
		resultCh <- c.collectOne(ctx, code, from, to)
	}
}

func (c *Collector) collectOne(ctx context.Context, code string, from, to time.Time) FetchResult {
	fetchFrom := from.AddDate(0, 0, -maLeadInDays)

	bars, err := c.fetcher.FetchDailyBars(ctx, code, fetchFrom, to)
	if err != nil {
		c.logger.WithError(err).WithField("ts_code", code).Warn("fetch failed")
		return FetchResult{Code: code, Error: err}
	}
	if len(bars) == 0 {
		return FetchResult{Code: code}
	}

	indicators.ApplyMovingAverages(bars)

	// The lead-in only exists to warm the averages; keep the asked range.
	keep := bars[:0:0]
	for _, b := range bars {
		if b.Date.Before(from) {
			continue
		}
		keep = append(keep, b)
	}
	if len(keep) == 0 {
		return FetchResult{Code: code}
	}

	if err := c.bars.SaveBatch(ctx, keep); err != nil {
		c.logger.WithError(err).WithField("ts_code", code).Warn("save failed")
		return FetchResult{Code: code, Error: err}
	}
	return FetchResult{Code: code, Saved: len(keep)}
}
