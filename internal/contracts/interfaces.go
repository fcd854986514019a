package contracts

import (
	"context"
	"time"
)

// BarRepository owns historical daily bars keyed by (instrument, date).
// Reads are snapshot-at-call-time; no transactional guarantee holds across
// two reads within one run (ingestion may append concurrently).
type BarRepository interface {
	// GetBars returns bars for one instrument ascending by date. Zero from/to
	// leave that bound open; limit <= 0 means unlimited.
	GetBars(ctx context.Context, code string, from, to time.Time, limit int) ([]Bar, error)

	// GetLatestDate returns the most recent trade date at or before cutoff
	// (zero cutoff: overall latest). A zero result means the repository holds
	// no bars in range.
	GetLatestDate(ctx context.Context, cutoff time.Time) (time.Time, error)

	// GetLatestDatePerInstrument maps every instrument to its newest trade date.
	GetLatestDatePerInstrument(ctx context.Context) (map[string]time.Time, error)

	// GetAllCodes returns every instrument code with at least one bar.
	GetAllCodes(ctx context.Context) ([]string, error)
}

// BarWriter is the ingestion-side extension of the bar store.
type BarWriter interface {
	SaveBatch(ctx context.Context, bars []Bar) error
	CountBars(ctx context.Context, code string, from, to time.Time) (int, error)
}

// InstrumentRepository provides static reference data.
type InstrumentRepository interface {
	// Lookup resolves codes to instrument metadata. Codes without a row are
	// simply absent from the result; callers substitute the Unknown sentinels.
	Lookup(ctx context.Context, codes []string) (map[string]Instrument, error)

	SaveBatch(ctx context.Context, instruments []Instrument) error
}

// WorkingSetStore is the per-run scratch collection the materializer owns.
// Contents are fully replaced before each run and discarded afterwards.
type WorkingSetStore interface {
	Clear(ctx context.Context) error
	BulkInsert(ctx context.Context, bars []Bar) error
	Count(ctx context.Context) (int, error)

	// BarsByDate returns all bars for one trade date, in insertion order.
	BarsByDate(ctx context.Context, date time.Time) ([]Bar, error)

	// BarsByCode returns every instrument's bars ascending by date.
	BarsByCode(ctx context.Context) (map[string][]Bar, error)

	// DateBounds returns the earliest and latest trade dates present.
	// Zero times when the set is empty.
	DateBounds(ctx context.Context) (earliest, latest time.Time, err error)
}

// Report is a flat tabular result handed to a sink. Rendering (CSV, HTML)
// is entirely the sink's concern.
type Report struct {
	Label  string     `json:"label"` // suggested filename stem
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// ReportSink accepts one report per run. Implementations must write
// atomically: a failed run leaves no partial output behind.
type ReportSink interface {
	Write(ctx context.Context, report *Report) (path string, err error)
}
