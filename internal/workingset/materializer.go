package workingset

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/astock-tools/screener/internal/contracts"
	"github.com/astock-tools/screener/pkg/logger"
)

// BarSource is what the materializer consumes from the bar repository.
type BarSource interface {
	contracts.BarRepository
	GetBarsByDate(ctx context.Context, date time.Time) ([]contracts.Bar, error)
}

// Window describes a resolved ranking window.
type Window struct {
	Reference  time.Time // start of the interval
	Evaluation time.Time // end of the interval
}

// Materializer builds the working set from the bar repository. Contents are
// always fully cleared before repopulating, so a run sees exactly one
// point-in-time materialization and nothing from previous runs.
//
// At most one run may use a given store at a time; the embedded mutex is
// the explicit guard callers hold across replace-and-read.
type Materializer struct {
	source          BarSource
	store           contracts.WorkingSetStore
	excludeSuffixes []string
	logger          *logger.Logger

	mu sync.Mutex
}

// NewMaterializer creates a new materializer. excludeSuffixes drops
// instruments whose code carries one of the given exchange suffixes.
func NewMaterializer(source BarSource, store contracts.WorkingSetStore, excludeSuffixes []string, log *logger.Logger) *Materializer {
	return &Materializer{
		source:          source,
		store:           store,
		excludeSuffixes: excludeSuffixes,
		logger:          log,
	}
}

// Lock acquires the run guard. Callers hold it from materialization until
// the last read of the working set.
func (m *Materializer) Lock() { m.mu.Lock() }

// Unlock releases the run guard.
func (m *Materializer) Unlock() { m.mu.Unlock() }

// Store exposes the underlying working-set store for reads within a run.
func (m *Materializer) Store() contracts.WorkingSetStore { return m.store }

// MaterializeRankingWindow fills the working set with exactly the two trade
// dates an RPS window needs: the evaluation date (latest at or before
// cutoff; cutoff zero means the repository's latest) and the reference date
// (latest at or before evaluation minus periodDays calendar days).
//
// Returns the resolved window and the number of rows materialized.
func (m *Materializer) MaterializeRankingWindow(ctx context.Context, cutoff time.Time, periodDays int) (Window, int, error) {
	evalDate, err := m.source.GetLatestDate(ctx, cutoff)
	if err != nil {
		return Window{}, 0, fmt.Errorf("resolve evaluation date: %w", err)
	}
	if evalDate.IsZero() {
		return Window{}, 0, contracts.ErrInsufficientHistory
	}

	refCutoff := evalDate.AddDate(0, 0, -periodDays)
	refDate, err := m.source.GetLatestDate(ctx, refCutoff)
	if err != nil {
		return Window{}, 0, fmt.Errorf("resolve reference date: %w", err)
	}
	if refDate.IsZero() {
		return Window{}, 0, contracts.ErrInsufficientHistory
	}

	if err := m.store.Clear(ctx); err != nil {
		return Window{}, 0, err
	}

	for _, date := range []time.Time{refDate, evalDate} {
		bars, err := m.source.GetBarsByDate(ctx, date)
		if err != nil {
			return Window{}, 0, fmt.Errorf("fetch bars for %s: %w", date.Format("2006-01-02"), err)
		}
		if err := m.store.BulkInsert(ctx, m.filter(bars)); err != nil {
			return Window{}, 0, err
		}
	}

	count, err := m.store.Count(ctx)
	if err != nil {
		return Window{}, 0, err
	}

	m.logger.WithFields(map[string]interface{}{
		"reference_date":  refDate.Format("2006-01-02"),
		"evaluation_date": evalDate.Format("2006-01-02"),
		"rows":            count,
	}).Info("Materialized ranking window")

	return Window{Reference: refDate, Evaluation: evalDate}, count, nil
}

// MaterializeRecent fills the working set with the n most recent bars per
// instrument at or before cutoff (cutoff zero means the repository's
// latest). Instruments with fewer than n bars keep all they have; zero
// total rows is a valid outcome.
func (m *Materializer) MaterializeRecent(ctx context.Context, cutoff time.Time, n int) (int, error) {
	if cutoff.IsZero() {
		latest, err := m.source.GetLatestDate(ctx, time.Time{})
		if err != nil {
			return 0, fmt.Errorf("resolve cutoff date: %w", err)
		}
		cutoff = latest
	}
	if cutoff.IsZero() {
		// Empty repository: an empty working set, not an error.
		if err := m.store.Clear(ctx); err != nil {
			return 0, err
		}
		return 0, nil
	}

	codes, err := m.source.GetAllCodes(ctx)
	if err != nil {
		return 0, fmt.Errorf("list instruments: %w", err)
	}

	if err := m.store.Clear(ctx); err != nil {
		return 0, err
	}

	total := 0
	for _, code := range codes {
		if m.excluded(code) {
			continue
		}

		// The repository returns ascending order; asking for the window
		// ending at cutoff and keeping the tail gives the n most recent.
		bars, err := m.source.GetBars(ctx, code, time.Time{}, cutoff, 0)
		if err != nil {
			return 0, fmt.Errorf("fetch bars for %s: %w", code, err)
		}
		if len(bars) > n {
			bars = bars[len(bars)-n:]
		}
		if len(bars) == 0 {
			continue
		}
		if err := m.store.BulkInsert(ctx, bars); err != nil {
			return 0, err
		}
		total += len(bars)
	}

	m.logger.WithFields(map[string]interface{}{
		"cutoff":      cutoff.Format("2006-01-02"),
		"window":      n,
		"instruments": len(codes),
		"rows":        total,
	}).Info("Materialized recent window")

	return total, nil
}

func (m *Materializer) filter(bars []contracts.Bar) []contracts.Bar {
	if len(m.excludeSuffixes) == 0 {
		return bars
	}
	out := bars[:0:0]
	for _, b := range bars {
		if !m.excluded(b.Code) {
			out = append(out, b)
		}
	}
	return out
}

func (m *Materializer) excluded(code string) bool {
	for _, suffix := range m.excludeSuffixes {
		if strings.HasSuffix(code, suffix) {
			return true
		}
	}
	return false
}
