package contracts

import "errors"

// Hard errors: these abort the run entirely and no output is written.
var (
	// ErrInsufficientHistory means the requested reference date has no
	// available trading day at or before it.
	ErrInsufficientHistory = errors.New("insufficient history for ranking window")

	// ErrMalformedDate means an input date string matched neither supported
	// format. Raised at the boundary before any query executes.
	ErrMalformedDate = errors.New("malformed date input")
)

// Empty results, metadata gaps and zero denominators are not errors: they
// are recovered where detected (sentinel substitution, skip-and-count) and
// never propagate.
