package workingset

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astock-tools/screener/internal/contracts"
	"github.com/astock-tools/screener/pkg/logger"
)

// fakeSource serves bars from memory in repository order.
type fakeSource struct {
	bars []contracts.Bar
}

func (f *fakeSource) GetBars(ctx context.Context, code string, from, to time.Time, limit int) ([]contracts.Bar, error) {
	var out []contracts.Bar
	for _, b := range f.bars {
		if b.Code != code {
			continue
		}
		if !from.IsZero() && b.Date.Before(from) {
			continue
		}
		if !to.IsZero() && b.Date.After(to) {
			continue
		}
		out = append(out, b)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeSource) GetBarsByDate(ctx context.Context, date time.Time) ([]contracts.Bar, error) {
	var out []contracts.Bar
	for _, b := range f.bars {
		if b.Date.Equal(date) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeSource) GetLatestDate(ctx context.Context, cutoff time.Time) (time.Time, error) {
	var latest time.Time
	for _, b := range f.bars {
		if !cutoff.IsZero() && b.Date.After(cutoff) {
			continue
		}
		if b.Date.After(latest) {
			latest = b.Date
		}
	}
	return latest, nil
}

func (f *fakeSource) GetLatestDatePerInstrument(ctx context.Context) (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	for _, b := range f.bars {
		if b.Date.After(out[b.Code]) {
			out[b.Code] = b.Date
		}
	}
	return out, nil
}

func (f *fakeSource) GetAllCodes(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var codes []string
	for _, b := range f.bars {
		if !seen[b.Code] {
			seen[b.Code] = true
			codes = append(codes, b.Code)
		}
	}
	return codes, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func bar(code string, date time.Time, close float64) contracts.Bar {
	return contracts.Bar{Code: code, Date: date, Close: close, Open: close, High: close, Low: close}
}

func TestMaterializeRankingWindow(t *testing.T) {
	source := &fakeSource{bars: []contracts.Bar{
		bar("600000.SH", day(2025, 3, 3), 10),
		bar("600000.SH", day(2025, 3, 14), 12),
		bar("000001.SZ", day(2025, 3, 3), 20),
		bar("000001.SZ", day(2025, 3, 14), 25),
	}}
	m := NewMaterializer(source, NewMemoryStore(), nil, logger.NewNop())

	window, count, err := m.MaterializeRankingWindow(context.Background(), time.Time{}, 10)
	require.NoError(t, err)

	assert.Equal(t, day(2025, 3, 14), window.Evaluation)
	// 2025-03-14 minus 10 calendar days is 03-04; latest at or before is 03-03
	assert.Equal(t, day(2025, 3, 3), window.Reference)
	assert.Equal(t, 4, count)
}

func TestMaterializeRankingWindow_InsufficientHistory(t *testing.T) {
	source := &fakeSource{bars: []contracts.Bar{
		bar("600000.SH", day(2025, 3, 14), 12),
	}}
	m := NewMaterializer(source, NewMemoryStore(), nil, logger.NewNop())

	_, _, err := m.MaterializeRankingWindow(context.Background(), time.Time{}, 10)
	assert.ErrorIs(t, err, contracts.ErrInsufficientHistory)
}

func TestMaterializeRankingWindow_EmptyRepository(t *testing.T) {
	m := NewMaterializer(&fakeSource{}, NewMemoryStore(), nil, logger.NewNop())

	_, _, err := m.MaterializeRankingWindow(context.Background(), time.Time{}, 10)
	assert.ErrorIs(t, err, contracts.ErrInsufficientHistory)
}

func TestMaterializeRankingWindow_ExcludesSuffixes(t *testing.T) {
	source := &fakeSource{bars: []contracts.Bar{
		bar("600000.SH", day(2025, 3, 3), 10),
		bar("600000.SH", day(2025, 3, 14), 12),
		bar("830001.BJ", day(2025, 3, 3), 5),
		bar("830001.BJ", day(2025, 3, 14), 6),
	}}
	store := NewMemoryStore()
	m := NewMaterializer(source, store, []string{".BJ"}, logger.NewNop())

	_, count, err := m.MaterializeRankingWindow(context.Background(), time.Time{}, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	bars, err := store.BarsByDate(context.Background(), day(2025, 3, 14))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "600000.SH", bars[0].Code)
}

func TestMaterializeRecent(t *testing.T) {
	var bars []contracts.Bar
	for i := 0; i < 8; i++ {
		bars = append(bars, bar("600000.SH", day(2025, 3, 1).AddDate(0, 0, i), float64(10+i)))
	}
	// Second instrument has fewer bars than the window: keep them all
	bars = append(bars,
		bar("000001.SZ", day(2025, 3, 7), 20),
		bar("000001.SZ", day(2025, 3, 8), 21),
	)
	source := &fakeSource{bars: bars}
	store := NewMemoryStore()
	m := NewMaterializer(source, store, nil, logger.NewNop())

	count, err := m.MaterializeRecent(context.Background(), time.Time{}, 5)
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	byCode, err := store.BarsByCode(context.Background())
	require.NoError(t, err)
	require.Len(t, byCode["600000.SH"], 5)
	// Most recent 5, ascending
	assert.Equal(t, day(2025, 3, 4), byCode["600000.SH"][0].Date)
	assert.Equal(t, day(2025, 3, 8), byCode["600000.SH"][4].Date)
	assert.Len(t, byCode["000001.SZ"], 2)
}

func TestMaterializeRecent_EmptyRepository(t *testing.T) {
	store := NewMemoryStore()
	m := NewMaterializer(&fakeSource{}, store, nil, logger.NewNop())

	count, err := m.MaterializeRecent(context.Background(), time.Time{}, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMaterialize_ReplacesPriorContents(t *testing.T) {
	source := &fakeSource{bars: []contracts.Bar{
		bar("600000.SH", day(2025, 3, 3), 10),
		bar("600000.SH", day(2025, 3, 14), 12),
	}}
	store := NewMemoryStore()
	m := NewMaterializer(source, store, nil, logger.NewNop())

	// Seed stale contents from a pretend previous run
	require.NoError(t, store.BulkInsert(context.Background(), []contracts.Bar{
		bar("STALE.SH", day(2020, 1, 1), 1),
	}))

	_, count, err := m.MaterializeRankingWindow(context.Background(), time.Time{}, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stale, err := store.BarsByDate(context.Background(), day(2020, 1, 1))
	require.NoError(t, err)
	assert.Empty(t, stale, "prior contents must be fully cleared")
}

func TestMaterialize_Idempotent(t *testing.T) {
	source := &fakeSource{bars: []contracts.Bar{
		bar("600000.SH", day(2025, 3, 3), 10),
		bar("600000.SH", day(2025, 3, 14), 12),
		bar("000001.SZ", day(2025, 3, 3), 20),
		bar("000001.SZ", day(2025, 3, 14), 25),
	}}
	store := NewMemoryStore()
	m := NewMaterializer(source, store, nil, logger.NewNop())

	_, first, err := m.MaterializeRankingWindow(context.Background(), time.Time{}, 10)
	require.NoError(t, err)
	firstBars, err := store.BarsByDate(context.Background(), day(2025, 3, 14))
	require.NoError(t, err)

	_, second, err := m.MaterializeRankingWindow(context.Background(), time.Time{}, 10)
	require.NoError(t, err)
	secondBars, err := store.BarsByDate(context.Background(), day(2025, 3, 14))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstBars, secondBars)
}
