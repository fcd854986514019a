// Package rps ranks every instrument in the working set by interval price
// change and converts rank to a percentile score.
package rps

import (
	"context"
	"math"
	"sort"

	"github.com/astock-tools/screener/internal/contracts"
	"github.com/astock-tools/screener/pkg/logger"
)

// Options configures one ranking computation.
type Options struct {
	// UsePreClose selects the previous close of the reference day as the
	// interval base instead of its open.
	UsePreClose bool

	// Threshold drops everything whose percentile falls below it. Zero
	// keeps the full list.
	Threshold float64
}

// Engine computes RPS records. Results are derived and ephemeral:
// recomputed per request, never persisted.
type Engine struct {
	instruments contracts.InstrumentRepository
	logger      *logger.Logger
}

// NewEngine creates a new RPS engine.
func NewEngine(instruments contracts.InstrumentRepository, log *logger.Logger) *Engine {
	return &Engine{
		instruments: instruments,
		logger:      log,
	}
}

// Rank pairs the reference-date and evaluation-date bars by instrument,
// computes each interval price change, and assigns percentile scores.
//
// Ordering is a stable sort by price change descending: instruments with
// identical changes keep their retrieval order and are NOT merged into
// equal ranks. rank 1 maps to rps 100, rank total to 100/total.
//
// Instruments with a zero (or missing) reference price are skipped and
// counted, not raised. An empty pairing yields an empty result.
func (e *Engine) Rank(ctx context.Context, startBars, endBars []contracts.Bar, opts Options) ([]contracts.RPSRecord, error) {
	endByCode := make(map[string]*contracts.Bar, len(endBars))
	for i := range endBars {
		endByCode[endBars[i].Code] = &endBars[i]
	}

	records := make([]contracts.RPSRecord, 0, len(startBars))
	skipped := 0
	for i := range startBars {
		start := &startBars[i]
		end, ok := endByCode[start.Code]
		if !ok {
			continue
		}

		ref := start.Open
		if opts.UsePreClose {
			ref = start.PreClose
		}
		if ref == 0 || math.IsNaN(ref) || math.IsNaN(end.Close) {
			skipped++
			continue
		}

		records = append(records, contracts.RPSRecord{
			Code:        start.Code,
			PriceChange: (end.Close - ref) / ref,
		})
	}

	if len(records) == 0 {
		e.logger.WithField("skipped", skipped).Info("RPS ranking produced no records")
		return nil, nil
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PriceChange > records[j].PriceChange
	})

	total := len(records)
	for i := range records {
		records[i].Rank = i + 1
		records[i].RPS = float64(total-i) / float64(total) * 100
	}

	// rps is non-increasing in rank, so stopping at the first record below
	// the threshold yields exactly the filtered set.
	kept := records
	for i := range records {
		if records[i].RPS < opts.Threshold {
			kept = records[:i]
			break
		}
	}

	if err := e.attachMetadata(ctx, kept); err != nil {
		return nil, err
	}

	e.logger.WithFields(map[string]interface{}{
		"ranked":    total,
		"kept":      len(kept),
		"skipped":   skipped,
		"threshold": opts.Threshold,
	}).Info("RPS ranking completed")

	return kept, nil
}

// attachMetadata fills names and industries, substituting the Unknown
// sentinels for instruments missing from the reference table.
func (e *Engine) attachMetadata(ctx context.Context, records []contracts.RPSRecord) error {
	if len(records) == 0 {
		return nil
	}

	codes := make([]string, len(records))
	for i := range records {
		codes[i] = records[i].Code
	}

	meta, err := e.instruments.Lookup(ctx, codes)
	if err != nil {
		return err
	}

	missing := 0
	for i := range records {
		if inst, ok := meta[records[i].Code]; ok {
			records[i].Name = inst.Name
			records[i].Industry = inst.Industry
		} else {
			records[i].Name = contracts.UnknownName
			records[i].Industry = contracts.UnknownIndustry
			missing++
		}
	}

	if missing > 0 {
		e.logger.WithField("missing", missing).Warn("Instruments absent from reference data, using sentinels")
	}
	return nil
}
