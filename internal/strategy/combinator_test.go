package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astock-tools/screener/internal/contracts"
	"github.com/astock-tools/screener/pkg/logger"
)

func stageOf(tag contracts.StageTag, rows map[string]contracts.StageMetrics) *contracts.StageResult {
	return &contracts.StageResult{Tag: tag, Rows: rows}
}

func TestCombine_StrictIntersection(t *testing.T) {
	c := NewCombinator(ModeStrict, 5, logger.NewNop())

	stages := []*contracts.StageResult{
		stageOf(contracts.StageRPS, map[string]contracts.StageMetrics{
			"A": {RPS: 95}, "B": {RPS: 92}, "C": {RPS: 91},
		}),
		stageOf(contracts.StageMA, map[string]contracts.StageMetrics{
			"A": {MATrendStrength: 2.0}, "B": {MATrendStrength: 1.0},
		}),
	}

	got := c.Combine(stages)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Code)
	assert.Equal(t, "B", got[1].Code)
}

func TestCombine_EmptyIntersectionIsNotAnError(t *testing.T) {
	c := NewCombinator(ModeStrict, 5, logger.NewNop())

	stages := []*contracts.StageResult{
		stageOf(contracts.StageRPS, map[string]contracts.StageMetrics{"A": {}}),
		stageOf(contracts.StageMA, map[string]contracts.StageMetrics{"B": {}}),
	}

	assert.Empty(t, c.Combine(stages))
}

// Four stages, strict intersection empty, six instruments each satisfying
// exactly three of the four, minimum five: the fallback must return all
// six, each tagged with its three satisfied stages.
func TestCombine_AtLeastKFallback(t *testing.T) {
	c := NewCombinator(ModeAtLeastK, 5, logger.NewNop())

	in := func(codes ...string) map[string]contracts.StageMetrics {
		rows := make(map[string]contracts.StageMetrics, len(codes))
		for _, code := range codes {
			rows[code] = contracts.StageMetrics{}
		}
		return rows
	}

	stages := []*contracts.StageResult{
		stageOf(contracts.StageRPS, in("I2", "I3", "I4", "I5", "I6")),
		stageOf(contracts.StageMA, in("I1", "I3", "I4", "I5", "I6")),
		stageOf(contracts.StageVOL, in("I1", "I2", "I4", "I5", "I6")),
		stageOf(contracts.StagePattern, in("I1", "I2", "I3")),
	}

	got := c.Combine(stages)
	require.Len(t, got, 6)

	byCode := make(map[string][]contracts.StageTag, len(got))
	for _, cand := range got {
		byCode[cand.Code] = cand.ConditionsMet
	}
	assert.Equal(t, []contracts.StageTag{contracts.StageMA, contracts.StageVOL, contracts.StagePattern}, byCode["I1"])
	assert.Equal(t, []contracts.StageTag{contracts.StageRPS, contracts.StageVOL, contracts.StagePattern}, byCode["I2"])
	assert.Equal(t, []contracts.StageTag{contracts.StageRPS, contracts.StageMA, contracts.StagePattern}, byCode["I3"])
	assert.Equal(t, []contracts.StageTag{contracts.StageRPS, contracts.StageMA, contracts.StageVOL}, byCode["I4"])
	assert.Equal(t, []contracts.StageTag{contracts.StageRPS, contracts.StageMA, contracts.StageVOL}, byCode["I5"])
	assert.Equal(t, []contracts.StageTag{contracts.StageRPS, contracts.StageMA, contracts.StageVOL}, byCode["I6"])
}

func TestCombine_FallbackNotTriggeredWhenStrictSetIsLargeEnough(t *testing.T) {
	c := NewCombinator(ModeAtLeastK, 2, logger.NewNop())

	stages := []*contracts.StageResult{
		stageOf(contracts.StageRPS, map[string]contracts.StageMetrics{"A": {}, "B": {}, "C": {}}),
		stageOf(contracts.StageMA, map[string]contracts.StageMetrics{"A": {}, "B": {}}),
	}

	got := c.Combine(stages)
	require.Len(t, got, 2)
	for _, cand := range got {
		assert.NotEqual(t, "C", cand.Code)
	}
}

func TestCombine_FallbackNeverRelaxesBelowAllButOne(t *testing.T) {
	c := NewCombinator(ModeAtLeastK, 5, logger.NewNop())

	// "W" satisfies only one of three stages and must stay out even though
	// the result remains short of the minimum.
	stages := []*contracts.StageResult{
		stageOf(contracts.StageRPS, map[string]contracts.StageMetrics{"A": {}, "B": {}, "W": {}}),
		stageOf(contracts.StageMA, map[string]contracts.StageMetrics{"A": {}, "B": {}}),
		stageOf(contracts.StageVOL, map[string]contracts.StageMetrics{"A": {}}),
	}

	got := c.Combine(stages)
	require.Len(t, got, 2)
	for _, cand := range got {
		assert.NotEqual(t, "W", cand.Code)
	}
}

func TestCombine_MergesMetricsInStageOrder(t *testing.T) {
	c := NewCombinator(ModeStrict, 5, logger.NewNop())

	stages := []*contracts.StageResult{
		stageOf(contracts.StageRPS, map[string]contracts.StageMetrics{
			"A": {RPS: 97, PriceChangePct: 31.5},
		}),
		stageOf(contracts.StageMA, map[string]contracts.StageMetrics{
			"A": {MATrendStrength: 4.2},
		}),
		stageOf(contracts.StageVOL, map[string]contracts.StageMetrics{
			"A": {MaxVolRatio: 2.8},
		}),
	}

	got := c.Combine(stages)
	require.Len(t, got, 1)
	assert.Equal(t, 97.0, got[0].RPS)
	assert.Equal(t, 31.5, got[0].PriceChangePct)
	assert.Equal(t, 4.2, got[0].MATrendStrength)
	assert.Equal(t, 2.8, got[0].MaxVolRatio)
	assert.Equal(t, "RPS+MA+VOL", JoinTags(got[0].ConditionsMet))
}

func TestCombine_OrdersByRPSDescending(t *testing.T) {
	c := NewCombinator(ModeStrict, 5, logger.NewNop())

	stages := []*contracts.StageResult{
		stageOf(contracts.StageRPS, map[string]contracts.StageMetrics{
			"LOW": {RPS: 60}, "HIGH": {RPS: 99}, "MID": {RPS: 80},
		}),
	}

	got := c.Combine(stages)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"HIGH", "MID", "LOW"}, []string{got[0].Code, got[1].Code, got[2].Code})
}
