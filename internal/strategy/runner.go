package strategy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/astock-tools/screener/internal/contracts"
	"github.com/astock-tools/screener/internal/rps"
	"github.com/astock-tools/screener/internal/screen"
	"github.com/astock-tools/screener/internal/workingset"
	"github.com/astock-tools/screener/pkg/config"
	"github.com/astock-tools/screener/pkg/dates"
	"github.com/astock-tools/screener/pkg/logger"
	"github.com/astock-tools/screener/pkg/redis"
)

// Params configures one strategy run.
type Params struct {
	// EndDate is the evaluation cutoff in YYYYMMDD or YYYY-MM-DD form.
	// Empty means the latest available trading day.
	EndDate string

	// PeriodDays overrides the configured ranking interval when positive.
	PeriodDays int

	// Threshold overrides the configured rps cutoff. Negative means use
	// the configured default; zero keeps the full ranked list.
	Threshold float64
}

// Runner executes the strategy entry operations. One runner is safe for
// concurrent callers: the materializer lock serializes working-set
// replace-and-read, so overlapping runs queue rather than corrupt.
type Runner struct {
	cfg          config.ScreenerConfig
	materializer *workingset.Materializer
	engine       *rps.Engine
	instruments  contracts.InstrumentRepository
	sink         contracts.ReportSink
	cache        *redis.Cache // nil when result caching is disabled
	logger       *logger.Logger
}

// NewRunner wires the strategy layer. sink and cache may be nil.
func NewRunner(
	cfg config.ScreenerConfig,
	materializer *workingset.Materializer,
	engine *rps.Engine,
	instruments contracts.InstrumentRepository,
	sink contracts.ReportSink,
	cache *redis.Cache,
	log *logger.Logger,
) *Runner {
	return &Runner{
		cfg:          cfg,
		materializer: materializer,
		engine:       engine,
		instruments:  instruments,
		sink:         sink,
		cache:        cache,
		logger:       log,
	}
}

// RunRPS ranks the whole universe by interval price change and keeps
// everything at or above the threshold.
func (r *Runner) RunRPS(ctx context.Context, p Params) ([]contracts.Candidate, contracts.RunStatus, error) {
	status := contracts.RunStatus{Strategy: "rps", StartedAt: time.Now()}

	cutoff, err := r.parseDate(p.EndDate)
	if err != nil {
		return nil, status, err
	}
	period := p.PeriodDays
	if period <= 0 {
		period = r.cfg.RPSPeriodDays
	}
	threshold := p.Threshold
	if threshold < 0 {
		threshold = r.cfg.RPSThreshold
	}

	r.materializer.Lock()
	defer r.materializer.Unlock()

	window, rows, err := r.materializer.MaterializeRankingWindow(ctx, cutoff, period)
	if err != nil {
		return nil, status, err
	}
	status.EndDate = window.Evaluation
	status.Materialized = rows

	records, err := r.rankWindow(ctx, window, threshold)
	if err != nil {
		return nil, status, err
	}

	candidates := candidatesFromRPS(records)
	if err := r.finish(ctx, &status, candidates, rpsReport(window.Evaluation, period, records)); err != nil {
		return nil, status, err
	}
	return candidates, status, nil
}

// RunMA screens for sustained moving-average alignment only, ordered by
// trend strength.
func (r *Runner) RunMA(ctx context.Context, p Params) ([]contracts.Candidate, contracts.RunStatus, error) {
	status := contracts.RunStatus{Strategy: "ma", StartedAt: time.Now()}

	cutoff, err := r.parseDate(p.EndDate)
	if err != nil {
		return nil, status, err
	}

	r.materializer.Lock()
	defer r.materializer.Unlock()

	byCode, err := r.materializeRecent(ctx, cutoff, &status)
	if err != nil {
		return nil, status, err
	}

	stage := screen.NewMATrendStage(r.maTrendConfig(), r.logger)
	result, err := stage.Screen(ctx, byCode)
	if err != nil {
		return nil, status, err
	}

	candidates := make([]contracts.Candidate, 0, len(result.Rows))
	for code, metrics := range result.Rows {
		candidates = append(candidates, contracts.Candidate{
			Code:            code,
			MATrendStrength: metrics.MATrendStrength,
			ConditionsMet:   []contracts.StageTag{contracts.StageMA},
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].MATrendStrength != candidates[j].MATrendStrength {
			return candidates[i].MATrendStrength > candidates[j].MATrendStrength
		}
		return candidates[i].Code < candidates[j].Code
	})

	if err := r.attachMetadata(ctx, candidates); err != nil {
		return nil, status, err
	}
	if err := r.finish(ctx, &status, candidates, candidateReport("ma", status.EndDate, candidates)); err != nil {
		return nil, status, err
	}
	return candidates, status, nil
}

// RunTrend applies every technical screen and keeps the strict
// intersection: alignment, crossover, volume confirmation and pattern.
func (r *Runner) RunTrend(ctx context.Context, p Params) ([]contracts.Candidate, contracts.RunStatus, error) {
	status := contracts.RunStatus{Strategy: "trend", StartedAt: time.Now()}

	cutoff, err := r.parseDate(p.EndDate)
	if err != nil {
		return nil, status, err
	}

	r.materializer.Lock()
	defer r.materializer.Unlock()

	byCode, err := r.materializeRecent(ctx, cutoff, &status)
	if err != nil {
		return nil, status, err
	}

	results, empty, err := r.runStages(ctx, byCode, r.technicalStages())
	if err != nil {
		return nil, status, err
	}
	if empty {
		return r.finishEmpty(&status), status, nil
	}

	combinator := NewCombinator(ModeStrict, r.cfg.MinCandidates, r.logger)
	candidates := combinator.Combine(results)

	if err := r.attachMetadata(ctx, candidates); err != nil {
		return nil, status, err
	}
	if err := r.finish(ctx, &status, candidates, candidateReport("trend", status.EndDate, candidates)); err != nil {
		return nil, status, err
	}
	return candidates, status, nil
}

// RunCombined ranks by rps first, then layers the technical screens on
// top and combines with the at-least-K fallback.
func (r *Runner) RunCombined(ctx context.Context, p Params) ([]contracts.Candidate, contracts.RunStatus, error) {
	status := contracts.RunStatus{Strategy: "combined", StartedAt: time.Now()}

	cutoff, err := r.parseDate(p.EndDate)
	if err != nil {
		return nil, status, err
	}
	period := p.PeriodDays
	if period <= 0 {
		period = r.cfg.RPSPeriodDays
	}
	threshold := p.Threshold
	if threshold < 0 {
		threshold = r.cfg.RPSThreshold
	}

	r.materializer.Lock()
	defer r.materializer.Unlock()

	window, rows, err := r.materializer.MaterializeRankingWindow(ctx, cutoff, period)
	if err != nil {
		return nil, status, err
	}
	status.EndDate = window.Evaluation
	status.Materialized = rows

	records, err := r.rankWindow(ctx, window, threshold)
	if err != nil {
		return nil, status, err
	}
	if len(records) == 0 {
		return r.finishEmpty(&status), status, nil
	}

	// The ranking window only holds two dates; the technical screens need
	// recent history, so the working set is rebuilt before they run.
	byCode, err := r.materializeRecent(ctx, window.Evaluation, &status)
	if err != nil {
		return nil, status, err
	}

	results, empty, err := r.runStages(ctx, byCode, r.technicalStages())
	if err != nil {
		return nil, status, err
	}
	if empty {
		return r.finishEmpty(&status), status, nil
	}

	stages := append([]*contracts.StageResult{stageFromRPS(records)}, results...)
	combinator := NewCombinator(ModeAtLeastK, r.cfg.MinCandidates, r.logger)
	candidates := combinator.Combine(stages)

	if err := r.attachMetadata(ctx, candidates); err != nil {
		return nil, status, err
	}
	if err := r.finish(ctx, &status, candidates, candidateReport("combined", status.EndDate, candidates)); err != nil {
		return nil, status, err
	}
	return candidates, status, nil
}

// parseDate validates a boundary date string before any query runs.
func (r *Runner) parseDate(s string) (time.Time, error) {
	t, err := dates.Parse(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", contracts.ErrMalformedDate, err)
	}
	return t, nil
}

// rankWindow runs the rps engine over the two materialized dates.
func (r *Runner) rankWindow(ctx context.Context, window workingset.Window, threshold float64) ([]contracts.RPSRecord, error) {
	store := r.materializer.Store()
	startBars, err := store.BarsByDate(ctx, window.Reference)
	if err != nil {
		return nil, err
	}
	endBars, err := store.BarsByDate(ctx, window.Evaluation)
	if err != nil {
		return nil, err
	}
	return r.engine.Rank(ctx, startBars, endBars, rps.Options{
		UsePreClose: r.cfg.RPSUsePreClose,
		Threshold:   threshold,
	})
}

// materializeRecent rebuilds the working set with the trailing history the
// technical screens inspect and returns it grouped per instrument.
func (r *Runner) materializeRecent(ctx context.Context, cutoff time.Time, status *contracts.RunStatus) (map[string][]contracts.Bar, error) {
	depth := r.cfg.LookbackDays
	if min := screen.DefaultPatternConfig().BreakoutWindow + 1; depth < min {
		depth = min
	}

	rows, err := r.materializer.MaterializeRecent(ctx, cutoff, depth)
	if err != nil {
		return nil, err
	}
	status.Materialized += rows

	store := r.materializer.Store()
	if status.EndDate.IsZero() {
		if _, latest, err := store.DateBounds(ctx); err == nil {
			status.EndDate = latest
		}
	}
	return store.BarsByCode(ctx)
}

// runStages executes the screens in order, stopping at the first one that
// qualifies nothing.
func (r *Runner) runStages(ctx context.Context, byCode map[string][]contracts.Bar, stages []screen.Stage) ([]*contracts.StageResult, bool, error) {
	results := make([]*contracts.StageResult, 0, len(stages))
	for _, stage := range stages {
		result, err := stage.Screen(ctx, byCode)
		if err != nil {
			return nil, false, err
		}
		if len(result.Rows) == 0 {
			r.logger.WithField("stage", string(stage.Tag())).Info("stage qualified nothing, run ends empty")
			return nil, true, nil
		}
		results = append(results, result)
	}
	return results, false, nil
}

func (r *Runner) technicalStages() []screen.Stage {
	return []screen.Stage{
		screen.NewMATrendStage(r.maTrendConfig(), r.logger),
		screen.NewCrossMAStage(screen.CrossMAConfig{Lookback: r.cfg.DaysToCheck}, r.logger),
		screen.NewVolumeStage(screen.VolumeConfig{
			Lookback:         r.cfg.LookbackDays,
			SurgeRatio:       r.cfg.VolSurgeRatio,
			MaxVolRatio:      r.cfg.MaxVolRatio,
			MaxDailyIncrease: r.cfg.MaxDailyVolIncr,
		}, r.logger),
		screen.NewPatternStage(screen.DefaultPatternConfig(), r.logger),
	}
}

func (r *Runner) maTrendConfig() screen.MATrendConfig {
	return screen.MATrendConfig{
		Periods:            r.cfg.MAPeriods,
		MinDays:            r.cfg.DaysToCheck,
		Lookback:           r.cfg.LookbackDays,
		MaxMA5MA10DiffPct:  r.cfg.MaxMA5MA10Diff,
		MaxPriceMA5DiffPct: r.cfg.MaxPriceMA5Diff,
	}
}

// attachMetadata fills name, industry and display code on each candidate.
// Instruments missing from the reference table get the Unknown sentinels.
func (r *Runner) attachMetadata(ctx context.Context, candidates []contracts.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}

	codes := make([]string, len(candidates))
	for i := range candidates {
		codes[i] = candidates[i].Code
	}
	meta, err := r.instruments.Lookup(ctx, codes)
	if err != nil {
		return err
	}

	for i := range candidates {
		c := &candidates[i]
		c.DisplayCode = contracts.DisplayCode(c.Code)
		if inst, ok := meta[c.Code]; ok {
			c.Name, c.Industry = inst.Name, inst.Industry
		} else {
			r.logger.WithField("ts_code", c.Code).Warn("instrument missing from reference data")
			c.Name, c.Industry = contracts.UnknownName, contracts.UnknownIndustry
		}
	}
	return nil
}

// finish records the outcome, writes the report and caches the result.
// Nothing is written when the run came up empty.
func (r *Runner) finish(ctx context.Context, status *contracts.RunStatus, candidates []contracts.Candidate, report *contracts.Report) error {
	status.Candidates = len(candidates)
	if len(candidates) == 0 {
		r.finishEmpty(status)
		return nil
	}

	if r.sink != nil {
		path, err := r.sink.Write(ctx, report)
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		status.ReportPath = path
	}
	r.cacheResult(ctx, status.Strategy, candidates, status)
	status.FinishedAt = time.Now()

	r.logger.WithFields(map[string]interface{}{
		"strategy":   status.Strategy,
		"end_date":   dates.Format(status.EndDate),
		"candidates": status.Candidates,
		"report":     status.ReportPath,
	}).Info("strategy run completed")

	return nil
}

func (r *Runner) finishEmpty(status *contracts.RunStatus) []contracts.Candidate {
	status.Empty = true
	status.Candidates = 0
	status.FinishedAt = time.Now()
	r.logger.WithField("strategy", status.Strategy).Info("strategy run produced no candidates")
	return []contracts.Candidate{}
}

func (r *Runner) cacheResult(ctx context.Context, strategy string, candidates []contracts.Candidate, status *contracts.RunStatus) {
	if r.cache == nil {
		return
	}
	const ttl = 24 * time.Hour
	if err := r.cache.Set(ctx, "results:"+strategy, candidates, ttl); err != nil {
		r.logger.WithError(err).Warn("failed to cache candidates")
	}
	if err := r.cache.Set(ctx, "status:"+strategy, status, ttl); err != nil {
		r.logger.WithError(err).Warn("failed to cache run status")
	}
}

// stageFromRPS presents the ranked list as one more stage so the
// combinator can intersect it with the technical screens.
func stageFromRPS(records []contracts.RPSRecord) *contracts.StageResult {
	result := &contracts.StageResult{
		Tag:  contracts.StageRPS,
		Rows: make(map[string]contracts.StageMetrics, len(records)),
	}
	for _, rec := range records {
		result.Rows[rec.Code] = contracts.StageMetrics{
			RPS:            rec.RPS,
			PriceChangePct: rec.PriceChange * 100,
		}
	}
	return result
}

func candidatesFromRPS(records []contracts.RPSRecord) []contracts.Candidate {
	candidates := make([]contracts.Candidate, len(records))
	for i, rec := range records {
		candidates[i] = contracts.Candidate{
			Code:           rec.Code,
			DisplayCode:    contracts.DisplayCode(rec.Code),
			Name:           rec.Name,
			Industry:       rec.Industry,
			RPS:            rec.RPS,
			PriceChangePct: rec.PriceChange * 100,
			ConditionsMet:  []contracts.StageTag{contracts.StageRPS},
		}
	}
	return candidates
}
