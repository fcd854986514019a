package workingset

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/astock-tools/screener/internal/contracts"
)

// PostgresStore is the storage-backed contracts.WorkingSetStore, the
// equivalent of a scratch table the run truncates and repopulates. An id
// column preserves insertion order so ranking tie-breaks stay stable.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates the working-set table if needed.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS data.working_set (
			id         BIGSERIAL PRIMARY KEY,
			ts_code    TEXT NOT NULL,
			trade_date DATE NOT NULL,
			open       DOUBLE PRECISION, high DOUBLE PRECISION,
			low        DOUBLE PRECISION, close DOUBLE PRECISION,
			pre_close  DOUBLE PRECISION, change DOUBLE PRECISION,
			pct_chg    DOUBLE PRECISION, vol DOUBLE PRECISION,
			amount     DOUBLE PRECISION,
			ma5 DOUBLE PRECISION, ma10 DOUBLE PRECISION, ma20 DOUBLE PRECISION,
			ma30 DOUBLE PRECISION, ma60 DOUBLE PRECISION, ma120 DOUBLE PRECISION,
			ma_v_5 DOUBLE PRECISION, ma_v_10 DOUBLE PRECISION, ma_v_20 DOUBLE PRECISION,
			ma_v_30 DOUBLE PRECISION, ma_v_60 DOUBLE PRECISION, ma_v_120 DOUBLE PRECISION
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("create working_set table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Clear truncates the working set.
func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE data.working_set RESTART IDENTITY`); err != nil {
		return fmt.Errorf("clear working set: %w", err)
	}
	return nil
}

// BulkInsert copies bars into the working set in the order given.
func (s *PostgresStore) BulkInsert(ctx context.Context, bars []contracts.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	columns := []string{
		"ts_code", "trade_date", "open", "high", "low", "close", "pre_close",
		"change", "pct_chg", "vol", "amount",
		"ma5", "ma10", "ma20", "ma30", "ma60", "ma120",
		"ma_v_5", "ma_v_10", "ma_v_20", "ma_v_30", "ma_v_60", "ma_v_120",
	}

	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"data", "working_set"},
		columns,
		pgx.CopyFromSlice(len(bars), func(i int) ([]interface{}, error) {
			b := &bars[i]
			return []interface{}{
				b.Code, b.Date,
				nullIfNaN(b.Open), nullIfNaN(b.High), nullIfNaN(b.Low), nullIfNaN(b.Close),
				nullIfNaN(b.PreClose), nullIfNaN(b.Change), nullIfNaN(b.PctChange),
				nullIfNaN(b.Volume), nullIfNaN(b.Amount),
				nullIfNaN(b.MA5), nullIfNaN(b.MA10), nullIfNaN(b.MA20),
				nullIfNaN(b.MA30), nullIfNaN(b.MA60), nullIfNaN(b.MA120),
				nullIfNaN(b.MAV5), nullIfNaN(b.MAV10), nullIfNaN(b.MAV20),
				nullIfNaN(b.MAV30), nullIfNaN(b.MAV60), nullIfNaN(b.MAV120),
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy into working set: %w", err)
	}
	return nil
}

// Count returns the number of stored bars.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM data.working_set`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count working set: %w", err)
	}
	return count, nil
}

// BarsByDate returns all bars for one trade date in insertion order.
func (s *PostgresStore) BarsByDate(ctx context.Context, date time.Time) ([]contracts.Bar, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ts_code, trade_date, open, high, low, close, pre_close, change, pct_chg,
		       vol, amount, ma5, ma10, ma20, ma30, ma60, ma120,
		       ma_v_5, ma_v_10, ma_v_20, ma_v_30, ma_v_60, ma_v_120
		FROM data.working_set
		WHERE trade_date = $1
		ORDER BY id
	`, date)
	if err != nil {
		return nil, fmt.Errorf("query working set by date: %w", err)
	}
	defer rows.Close()

	return scanWorkingBars(rows)
}

// BarsByCode returns every instrument's bars ascending by date.
func (s *PostgresStore) BarsByCode(ctx context.Context) (map[string][]contracts.Bar, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ts_code, trade_date, open, high, low, close, pre_close, change, pct_chg,
		       vol, amount, ma5, ma10, ma20, ma30, ma60, ma120,
		       ma_v_5, ma_v_10, ma_v_20, ma_v_30, ma_v_60, ma_v_120
		FROM data.working_set
		ORDER BY ts_code, trade_date
	`)
	if err != nil {
		return nil, fmt.Errorf("query working set by code: %w", err)
	}
	defer rows.Close()

	bars, err := scanWorkingBars(rows)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]contracts.Bar)
	for _, b := range bars {
		out[b.Code] = append(out[b.Code], b)
	}
	return out, nil
}

// DateBounds returns the earliest and latest trade dates present.
func (s *PostgresStore) DateBounds(ctx context.Context) (time.Time, time.Time, error) {
	var earliest, latest *time.Time
	err := s.pool.QueryRow(ctx, `SELECT MIN(trade_date), MAX(trade_date) FROM data.working_set`).
		Scan(&earliest, &latest)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("query working set bounds: %w", err)
	}
	if earliest == nil || latest == nil {
		return time.Time{}, time.Time{}, nil
	}
	return *earliest, *latest, nil
}

func scanWorkingBars(rows pgx.Rows) ([]contracts.Bar, error) {
	var bars []contracts.Bar
	for rows.Next() {
		var b contracts.Bar
		fields := []*float64{
			&b.Open, &b.High, &b.Low, &b.Close, &b.PreClose, &b.Change, &b.PctChange,
			&b.Volume, &b.Amount,
			&b.MA5, &b.MA10, &b.MA20, &b.MA30, &b.MA60, &b.MA120,
			&b.MAV5, &b.MAV10, &b.MAV20, &b.MAV30, &b.MAV60, &b.MAV120,
		}

		nullable := make([]*float64, len(fields))
		dest := []interface{}{&b.Code, &b.Date}
		for i := range nullable {
			dest = append(dest, &nullable[i])
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan working-set bar: %w", err)
		}
		for i, src := range nullable {
			if src == nil {
				*fields[i] = math.NaN()
			} else {
				*fields[i] = *src
			}
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

func nullIfNaN(f float64) interface{} {
	if math.IsNaN(f) {
		return nil
	}
	return f
}
