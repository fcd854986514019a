// Package marketdata implements the bar and instrument repositories on
// PostgreSQL. All reads are snapshot-at-call-time; ingestion may append
// concurrently and no cross-read transaction is assumed.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/astock-tools/screener/internal/contracts"
)

const barColumns = `ts_code, trade_date, open, high, low, close, pre_close, change, pct_chg,
	vol, amount, ma5, ma10, ma20, ma30, ma60, ma120,
	ma_v_5, ma_v_10, ma_v_20, ma_v_30, ma_v_60, ma_v_120`

// BarRepository implements contracts.BarRepository and contracts.BarWriter
// on top of the daily_bars table.
type BarRepository struct {
	pool *pgxpool.Pool
}

// NewBarRepository creates a new bar repository.
func NewBarRepository(pool *pgxpool.Pool) *BarRepository {
	return &BarRepository{pool: pool}
}

// GetBars returns bars for one instrument ascending by date.
func (r *BarRepository) GetBars(ctx context.Context, code string, from, to time.Time, limit int) ([]contracts.Bar, error) {
	query := fmt.Sprintf(`SELECT %s FROM data.daily_bars WHERE ts_code = $1`, barColumns)
	args := []interface{}{code}

	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(" AND trade_date >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(" AND trade_date <= $%d", len(args))
	}
	query += " ORDER BY trade_date ASC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bars for %s: %w", code, err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetBarsByDate returns every instrument's bar for one trade date.
func (r *BarRepository) GetBarsByDate(ctx context.Context, date time.Time) ([]contracts.Bar, error) {
	query := fmt.Sprintf(`SELECT %s FROM data.daily_bars WHERE trade_date = $1 ORDER BY ts_code`, barColumns)

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("query bars for %s: %w", date.Format("2006-01-02"), err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetLatestDate returns the most recent trade date at or before cutoff.
// A zero result means the repository holds no bars in range.
func (r *BarRepository) GetLatestDate(ctx context.Context, cutoff time.Time) (time.Time, error) {
	query := `SELECT MAX(trade_date) FROM data.daily_bars`
	args := []interface{}{}
	if !cutoff.IsZero() {
		query += ` WHERE trade_date <= $1`
		args = append(args, cutoff)
	}

	var latest *time.Time
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("query latest trade date: %w", err)
	}
	if latest == nil {
		return time.Time{}, nil
	}
	return *latest, nil
}

// GetLatestDatePerInstrument maps every instrument to its newest trade date.
func (r *BarRepository) GetLatestDatePerInstrument(ctx context.Context) (map[string]time.Time, error) {
	rows, err := r.pool.Query(ctx, `SELECT ts_code, MAX(trade_date) FROM data.daily_bars GROUP BY ts_code`)
	if err != nil {
		return nil, fmt.Errorf("query latest dates: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var code string
		var date time.Time
		if err := rows.Scan(&code, &date); err != nil {
			return nil, err
		}
		out[code] = date
	}
	return out, rows.Err()
}

// GetAllCodes returns every instrument code with at least one bar.
func (r *BarRepository) GetAllCodes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT ts_code FROM data.daily_bars ORDER BY ts_code`)
	if err != nil {
		return nil, fmt.Errorf("query instrument codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// SaveBatch upserts bars. History is append-only, but the moving-average
// columns are recomputed as new bars arrive, so conflicts update them.
func (r *BarRepository) SaveBatch(ctx context.Context, bars []contracts.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	query := `
		INSERT INTO data.daily_bars (` + barColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		        $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (ts_code, trade_date) DO UPDATE SET
			ma5 = EXCLUDED.ma5, ma10 = EXCLUDED.ma10, ma20 = EXCLUDED.ma20,
			ma30 = EXCLUDED.ma30, ma60 = EXCLUDED.ma60, ma120 = EXCLUDED.ma120,
			ma_v_5 = EXCLUDED.ma_v_5, ma_v_10 = EXCLUDED.ma_v_10, ma_v_20 = EXCLUDED.ma_v_20,
			ma_v_30 = EXCLUDED.ma_v_30, ma_v_60 = EXCLUDED.ma_v_60, ma_v_120 = EXCLUDED.ma_v_120
	`

	batch := &pgx.Batch{}
	for i := range bars {
		batch.Queue(query, barArgs(&bars[i])...)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range bars {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("save bars: %w", err)
		}
	}
	return nil
}

// CountBars counts stored bars for one instrument in a date range.
func (r *BarRepository) CountBars(ctx context.Context, code string, from, to time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM data.daily_bars WHERE ts_code = $1 AND trade_date BETWEEN $2 AND $3`,
		code, from, to,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count bars for %s: %w", code, err)
	}
	return count, nil
}

func barArgs(b *contracts.Bar) []interface{} {
	return []interface{}{
		b.Code, b.Date,
		nullIfNaN(b.Open), nullIfNaN(b.High), nullIfNaN(b.Low), nullIfNaN(b.Close),
		nullIfNaN(b.PreClose), nullIfNaN(b.Change), nullIfNaN(b.PctChange),
		nullIfNaN(b.Volume), nullIfNaN(b.Amount),
		nullIfNaN(b.MA5), nullIfNaN(b.MA10), nullIfNaN(b.MA20),
		nullIfNaN(b.MA30), nullIfNaN(b.MA60), nullIfNaN(b.MA120),
		nullIfNaN(b.MAV5), nullIfNaN(b.MAV10), nullIfNaN(b.MAV20),
		nullIfNaN(b.MAV30), nullIfNaN(b.MAV60), nullIfNaN(b.MAV120),
	}
}

type barRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanBars(rows barRows) ([]contracts.Bar, error) {
	var bars []contracts.Bar
	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBar(row rowScanner) (contracts.Bar, error) {
	var b contracts.Bar
	fields := []*float64{
		&b.Open, &b.High, &b.Low, &b.Close, &b.PreClose, &b.Change, &b.PctChange,
		&b.Volume, &b.Amount,
		&b.MA5, &b.MA10, &b.MA20, &b.MA30, &b.MA60, &b.MA120,
		&b.MAV5, &b.MAV10, &b.MAV20, &b.MAV30, &b.MAV60, &b.MAV120,
	}

	dest := make([]interface{}, 0, len(fields)+2)
	dest = append(dest, &b.Code, &b.Date)
	nullable := make([]*float64, len(fields))
	for i := range fields {
		nullable[i] = nil
		dest = append(dest, &nullable[i])
	}

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return b, err
		}
		return b, fmt.Errorf("scan bar: %w", err)
	}

	for i, src := range nullable {
		if src == nil {
			*fields[i] = math.NaN()
		} else {
			*fields[i] = *src
		}
	}
	return b, nil
}

// nullIfNaN maps the in-memory NaN sentinel back to SQL NULL.
func nullIfNaN(f float64) interface{} {
	if math.IsNaN(f) {
		return nil
	}
	return f
}
