// Package strategy combines the independent filter stages into ranked
// candidate lists and exposes one entry operation per strategy.
package strategy

import (
	"sort"
	"strings"

	"github.com/astock-tools/screener/internal/contracts"
	"github.com/astock-tools/screener/pkg/logger"
)

// Mode selects the combination policy.
type Mode string

const (
	// ModeStrict keeps only instruments satisfying every stage.
	ModeStrict Mode = "strict"

	// ModeAtLeastK starts from the strict set and, when it falls below
	// the configured minimum, unions in every instrument satisfying all
	// but one stage. The relaxation stops there: it never drops more
	// than one stage regardless of how short the result remains.
	ModeAtLeastK Mode = "at_least_k"
)

// Combinator merges stage results into candidates.
type Combinator struct {
	mode   Mode
	minLen int
	logger *logger.Logger
}

// NewCombinator creates a combinator. minCandidates only matters in
// ModeAtLeastK.
func NewCombinator(mode Mode, minCandidates int, log *logger.Logger) *Combinator {
	if minCandidates <= 0 {
		minCandidates = 5
	}
	return &Combinator{mode: mode, minLen: minCandidates, logger: log}
}

// Combine intersects the stage sets under the configured policy and merges
// each survivor's metrics, first stage wins on shared fields. An empty
// result is a valid outcome, not an error.
//
// Candidates come back ordered by rps descending; instruments with equal
// rps keep a fixed order by code so repeated runs agree.
func (c *Combinator) Combine(stages []*contracts.StageResult) []contracts.Candidate {
	n := len(stages)
	if n == 0 {
		return nil
	}

	hits := make(map[string]int)
	for _, stage := range stages {
		for code := range stage.Rows {
			hits[code]++
		}
	}

	selected := make(map[string]bool)
	for code, count := range hits {
		if count == n {
			selected[code] = true
		}
	}

	relaxed := false
	if c.mode == ModeAtLeastK && len(selected) < c.minLen && n >= 2 {
		relaxed = true
		for code, count := range hits {
			if count == n-1 {
				selected[code] = true
			}
		}
	}

	candidates := make([]contracts.Candidate, 0, len(selected))
	for code := range selected {
		candidates = append(candidates, c.merge(code, stages))
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].RPS != candidates[j].RPS {
			return candidates[i].RPS > candidates[j].RPS
		}
		return candidates[i].Code < candidates[j].Code
	})

	c.logger.WithFields(map[string]interface{}{
		"stages":     n,
		"strict":     !relaxed,
		"candidates": len(candidates),
	}).Info("stage combination completed")

	return candidates
}

// merge folds one instrument's metrics across the stages it satisfied,
// in stage order, taking the first stage that set each field.
func (c *Combinator) merge(code string, stages []*contracts.StageResult) contracts.Candidate {
	cand := contracts.Candidate{Code: code}
	for _, stage := range stages {
		metrics, ok := stage.Rows[code]
		if !ok {
			continue
		}
		cand.ConditionsMet = append(cand.ConditionsMet, stage.Tag)

		if cand.RPS == 0 {
			cand.RPS = metrics.RPS
		}
		if cand.PriceChangePct == 0 {
			cand.PriceChangePct = metrics.PriceChangePct
		}
		if cand.MATrendStrength == 0 {
			cand.MATrendStrength = metrics.MATrendStrength
		}
		if cand.MaxVolRatio == 0 {
			cand.MaxVolRatio = metrics.MaxVolRatio
		}
		if cand.BreakoutStrength == 0 {
			cand.BreakoutStrength = metrics.BreakoutStrength
		}
	}
	return cand
}

// JoinTags renders stage provenance for display, e.g. "RPS+MA+VOL".
func JoinTags(tags []contracts.StageTag) string {
	parts := make([]string, len(tags))
	for i, tag := range tags {
		parts[i] = string(tag)
	}
	return strings.Join(parts, "+")
}
