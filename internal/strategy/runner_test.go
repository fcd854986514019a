package strategy

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astock-tools/screener/internal/contracts"
	"github.com/astock-tools/screener/internal/rps"
	"github.com/astock-tools/screener/internal/workingset"
	"github.com/astock-tools/screener/pkg/config"
	"github.com/astock-tools/screener/pkg/logger"
)

type fakeSource struct {
	bars map[string][]contracts.Bar
}

func (f *fakeSource) GetBars(ctx context.Context, code string, from, to time.Time, limit int) ([]contracts.Bar, error) {
	var out []contracts.Bar
	for _, b := range f.bars[code] {
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
	for _, code := range f.codes() {
		for _, b := range f.bars[code] {
			if b.Date.Equal(date) {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

func (f *fakeSource) GetLatestDate(ctx context.Context, cutoff time.Time) (time.Time, error) {
	var latest time.Time
	for _, bars := range f.bars {
		for _, b := range bars {
			if !cutoff.IsZero() && b.Date.After(cutoff) {
				continue
			}
			if b.Date.After(latest) {
				latest = b.Date
			}
		}
	}
	return latest, nil
}

func (f *fakeSource) GetLatestDatePerInstrument(ctx context.Context) (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	for code, bars := range f.bars {
		for _, b := range bars {
			if b.Date.After(out[code]) {
				out[code] = b.Date
			}
		}
	}
	return out, nil
}

func (f *fakeSource) GetAllCodes(ctx context.Context) ([]string, error) {
	return f.codes(), nil
}

func (f *fakeSource) codes() []string {
	codes := make([]string, 0, len(f.bars))
	for code := range f.bars {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

type fakeInstruments struct {
	meta map[string]contracts.Instrument
}

func (f *fakeInstruments) Lookup(ctx context.Context, codes []string) (map[string]contracts.Instrument, error) {
	out := make(map[string]contracts.Instrument)
	for _, code := range codes {
		if inst, ok := f.meta[code]; ok {
			out[code] = inst
		}
	}
	return out, nil
}

func (f *fakeInstruments) SaveBatch(ctx context.Context, instruments []contracts.Instrument) error {
	return nil
}

type fakeSink struct {
	reports []*contracts.Report
}

func (f *fakeSink) Write(ctx context.Context, report *contracts.Report) (string, error) {
	f.reports = append(f.reports, report)
	return "/tmp/" + report.Label + ".csv", nil
}

func testConfig() config.ScreenerConfig {
	return config.ScreenerConfig{
		RPSPeriodDays:   20,
		RPSThreshold:    90,
		MAPeriods:       []int{5, 10},
		DaysToCheck:     1,
		LookbackDays:    1,
		VolSurgeRatio:   1.5,
		MaxVolRatio:     5.0,
		MaxDailyVolIncr: 3.0,
		MaxMA5MA10Diff:  5.0,
		MaxPriceMA5Diff: 3.0,
		MinCandidates:   5,
	}
}

func newTestRunner(source *fakeSource, meta map[string]contracts.Instrument, sink contracts.ReportSink) *Runner {
	log := logger.NewNop()
	instruments := &fakeInstruments{meta: meta}
	materializer := workingset.NewMaterializer(source, workingset.NewMemoryStore(), nil, log)
	engine := rps.NewEngine(instruments, log)
	return NewRunner(testConfig(), materializer, engine, instruments, sink, nil, log)
}

func tradeDay(i int) time.Time {
	return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func TestRunner_RunRPS(t *testing.T) {
	ref, eval := tradeDay(0), tradeDay(25)
	source := &fakeSource{bars: map[string][]contracts.Bar{
		"600001.SH": {
			{Code: "600001.SH", Date: ref, Open: 10, Close: 10},
			{Code: "600001.SH", Date: eval, Open: 18, Close: 20},
		},
		"600002.SH": {
			{Code: "600002.SH", Date: ref, Open: 10, Close: 10},
			{Code: "600002.SH", Date: eval, Open: 14, Close: 15},
		},
		"600003.SH": {
			{Code: "600003.SH", Date: ref, Open: 10, Close: 10},
			{Code: "600003.SH", Date: eval, Open: 6, Close: 5},
		},
	}}
	sink := &fakeSink{}
	runner := newTestRunner(source, map[string]contracts.Instrument{
		"600001.SH": {Code: "600001.SH", Name: "Alpha", Industry: "Tech"},
		"600002.SH": {Code: "600002.SH", Name: "Beta", Industry: "Energy"},
		"600003.SH": {Code: "600003.SH", Name: "Gamma", Industry: "Retail"},
	}, sink)

	candidates, status, err := runner.RunRPS(context.Background(), Params{Threshold: 0})
	require.NoError(t, err)

	require.Len(t, candidates, 3)
	assert.Equal(t, "600001.SH", candidates[0].Code)
	assert.Equal(t, "600001", candidates[0].DisplayCode)
	assert.Equal(t, "Alpha", candidates[0].Name)
	assert.InDelta(t, 100.0, candidates[0].RPS, 1e-9)
	assert.InDelta(t, 100.0, candidates[0].PriceChangePct, 1e-9)
	assert.InDelta(t, 66.67, candidates[1].RPS, 0.01)
	assert.InDelta(t, 33.33, candidates[2].RPS, 0.01)

	assert.Equal(t, eval, status.EndDate)
	assert.Equal(t, 6, status.Materialized)
	assert.Equal(t, 3, status.Candidates)
	assert.False(t, status.Empty)

	require.Len(t, sink.reports, 1)
	assert.Equal(t, "20250626-rps-20days", sink.reports[0].Label)
	require.Len(t, sink.reports[0].Rows, 3)
	// Percentages carry 2 decimals, rps is rounded to an integer.
	assert.Equal(t, []string{"600001", "Alpha", "Tech", "100.00", "1", "100"}, sink.reports[0].Rows[0])
	assert.Equal(t, "67", sink.reports[0].Rows[1][5])
}

func TestRunner_RunRPS_Threshold(t *testing.T) {
	ref, eval := tradeDay(0), tradeDay(25)
	source := &fakeSource{bars: map[string][]contracts.Bar{
		"600001.SH": {
			{Code: "600001.SH", Date: ref, Open: 10, Close: 10},
			{Code: "600001.SH", Date: eval, Open: 18, Close: 20},
		},
		"600002.SH": {
			{Code: "600002.SH", Date: ref, Open: 10, Close: 10},
			{Code: "600002.SH", Date: eval, Open: 6, Close: 5},
		},
	}}
	runner := newTestRunner(source, nil, &fakeSink{})

	// Negative threshold falls back to the configured cutoff of 90.
	candidates, _, err := runner.RunRPS(context.Background(), Params{Threshold: -1})
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "600001.SH", candidates[0].Code)
	assert.Equal(t, contracts.UnknownName, candidates[0].Name)
}

func TestRunner_RunRPS_MalformedDate(t *testing.T) {
	runner := newTestRunner(&fakeSource{}, nil, &fakeSink{})

	_, _, err := runner.RunRPS(context.Background(), Params{EndDate: "2025/06/26"})
	assert.ErrorIs(t, err, contracts.ErrMalformedDate)
}

func TestRunner_RunRPS_InsufficientHistory(t *testing.T) {
	runner := newTestRunner(&fakeSource{bars: map[string][]contracts.Bar{}}, nil, &fakeSink{})

	_, _, err := runner.RunRPS(context.Background(), Params{})
	assert.ErrorIs(t, err, contracts.ErrInsufficientHistory)
}

func TestRunner_RunMA(t *testing.T) {
	day := tradeDay(0)
	source := &fakeSource{bars: map[string][]contracts.Bar{
		"600001.SH": {{Code: "600001.SH", Date: day, Close: 10.2, MA5: 10.0, MA10: 9.9, MA20: 9.8}},
		"600002.SH": {{Code: "600002.SH", Date: day, Close: 9.5, MA5: 10.0, MA10: 9.9, MA20: 9.8}},
	}}
	sink := &fakeSink{}
	runner := newTestRunner(source, map[string]contracts.Instrument{
		"600001.SH": {Code: "600001.SH", Name: "Alpha", Industry: "Tech"},
	}, sink)

	candidates, status, err := runner.RunMA(context.Background(), Params{})
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "600001.SH", candidates[0].Code)
	assert.Equal(t, "Alpha", candidates[0].Name)
	assert.Equal(t, []contracts.StageTag{contracts.StageMA}, candidates[0].ConditionsMet)
	assert.Positive(t, candidates[0].MATrendStrength)

	assert.Equal(t, day, status.EndDate)
	require.Len(t, sink.reports, 1)
	assert.Equal(t, "20250601-ma", sink.reports[0].Label)
}

func TestRunner_RunTrend_EmptyStageEndsRun(t *testing.T) {
	// No instrument aligns, so the first screen comes up empty and the
	// run terminates without touching the sink.
	day := tradeDay(0)
	source := &fakeSource{bars: map[string][]contracts.Bar{
		"600001.SH": {{Code: "600001.SH", Date: day, Close: 9.0, MA5: 10.0, MA10: 9.9}},
	}}
	sink := &fakeSink{}
	runner := newTestRunner(source, nil, sink)

	candidates, status, err := runner.RunTrend(context.Background(), Params{})
	require.NoError(t, err)

	assert.Empty(t, candidates)
	assert.True(t, status.Empty)
	assert.Zero(t, status.Candidates)
	assert.Empty(t, sink.reports)
}

func TestRunner_RunCombined_EmptyRankingEndsRun(t *testing.T) {
	// Every reference price is zero: the engine skips the whole universe
	// and the combined run reports empty instead of raising.
	ref, eval := tradeDay(0), tradeDay(25)
	source := &fakeSource{bars: map[string][]contracts.Bar{
		"600001.SH": {
			{Code: "600001.SH", Date: ref, Open: 0, Close: 0},
			{Code: "600001.SH", Date: eval, Open: 10, Close: 12},
		},
	}}
	sink := &fakeSink{}
	runner := newTestRunner(source, nil, sink)

	candidates, status, err := runner.RunCombined(context.Background(), Params{Threshold: 0})
	require.NoError(t, err)

	assert.Empty(t, candidates)
	assert.True(t, status.Empty)
	assert.Empty(t, sink.reports)
}

func TestRunner_SequentialRunsDoNotLeakWorkingSet(t *testing.T) {
	ref, eval := tradeDay(0), tradeDay(25)
	source := &fakeSource{bars: map[string][]contracts.Bar{
		"600001.SH": {
			{Code: "600001.SH", Date: ref, Open: 10, Close: 10},
			{Code: "600001.SH", Date: eval, Open: 11, Close: 12},
		},
	}}
	runner := newTestRunner(source, nil, &fakeSink{})

	first, _, err := runner.RunRPS(context.Background(), Params{Threshold: 0})
	require.NoError(t, err)
	second, _, err := runner.RunRPS(context.Background(), Params{Threshold: 0})
	require.NoError(t, err)

	assert.Equal(t, first, second)

	store := runner.materializer.Store()
	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestJoinTags(t *testing.T) {
	assert.Equal(t, "RPS+MA+VOL", JoinTags([]contracts.StageTag{
		contracts.StageRPS, contracts.StageMA, contracts.StageVOL,
	}))
	assert.Equal(t, "", JoinTags(nil))
}

func TestRunner_ReportErrorAborts(t *testing.T) {
	ref, eval := tradeDay(0), tradeDay(25)
	source := &fakeSource{bars: map[string][]contracts.Bar{
		"600001.SH": {
			{Code: "600001.SH", Date: ref, Open: 10, Close: 10},
			{Code: "600001.SH", Date: eval, Open: 11, Close: 12},
		},
	}}
	runner := newTestRunner(source, nil, failingSink{})

	_, status, err := runner.RunRPS(context.Background(), Params{Threshold: 0})
	require.Error(t, err)
	assert.Empty(t, status.ReportPath)
}

type failingSink struct{}

func (failingSink) Write(ctx context.Context, report *contracts.Report) (string, error) {
	return "", errors.New("disk full")
}
