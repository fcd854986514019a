// Package screen implements the independent filter stages. Each stage is a
// pure predicate over per-instrument bar sequences from the working set,
// producing a qualifying set with stage-specific diagnostics. Stages do not
// depend on each other; the strategy layer combines their outputs.
package screen

import (
	"context"
	"math"

	"github.com/astock-tools/screener/internal/contracts"
)

// Stage is one independent screen over the working set.
type Stage interface {
	Tag() contracts.StageTag

	// Screen inspects each instrument's bars (ascending by date) and
	// returns the qualifying set. An empty result is a valid outcome.
	Screen(ctx context.Context, bars map[string][]contracts.Bar) (*contracts.StageResult, error)
}

// valid reports whether every value is a usable number.
func valid(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// tail returns the last n elements (all of them when fewer exist).
func tail(bars []contracts.Bar, n int) []contracts.Bar {
	if len(bars) > n {
		return bars[len(bars)-n:]
	}
	return bars
}
