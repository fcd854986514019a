// Package workingset owns the per-run scratch collection of bars every
// strategy computes against. The set is fully replaced before each run and
// logically discarded afterwards; it is never patched incrementally.
package workingset

import (
	"context"
	"sort"
	"time"

	"github.com/astock-tools/screener/internal/contracts"
)

// MemoryStore is the in-memory contracts.WorkingSetStore. One run owns it
// exclusively; the materializer serializes replace-and-read around it.
type MemoryStore struct {
	bars []contracts.Bar
}

// NewMemoryStore creates an empty in-memory working-set store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Clear discards all contents.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.bars = s.bars[:0]
	return nil
}

// BulkInsert appends bars in the order given.
func (s *MemoryStore) BulkInsert(ctx context.Context, bars []contracts.Bar) error {
	s.bars = append(s.bars, bars...)
	return nil
}

// Count returns the number of stored bars.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	return len(s.bars), nil
}

// BarsByDate returns all bars for one trade date in insertion order.
func (s *MemoryStore) BarsByDate(ctx context.Context, date time.Time) ([]contracts.Bar, error) {
	var out []contracts.Bar
	for _, b := range s.bars {
		if b.Date.Equal(date) {
			out = append(out, b)
		}
	}
	return out, nil
}

// BarsByCode returns every instrument's bars ascending by date.
func (s *MemoryStore) BarsByCode(ctx context.Context) (map[string][]contracts.Bar, error) {
	out := make(map[string][]contracts.Bar)
	for _, b := range s.bars {
		out[b.Code] = append(out[b.Code], b)
	}
	for code := range out {
		seq := out[code]
		sort.SliceStable(seq, func(i, j int) bool { return seq[i].Date.Before(seq[j].Date) })
		out[code] = seq
	}
	return out, nil
}

// DateBounds returns the earliest and latest trade dates present.
func (s *MemoryStore) DateBounds(ctx context.Context) (time.Time, time.Time, error) {
	var earliest, latest time.Time
	for _, b := range s.bars {
		if earliest.IsZero() || b.Date.Before(earliest) {
			earliest = b.Date
		}
		if latest.IsZero() || b.Date.After(latest) {
			latest = b.Date
		}
	}
	return earliest, latest, nil
}
