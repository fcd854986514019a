package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/astock-tools/screener/internal/contracts"
)

// InstrumentRepository implements contracts.InstrumentRepository on the
// instruments reference table.
type InstrumentRepository struct {
	pool *pgxpool.Pool
}

// NewInstrumentRepository creates a new instrument repository.
func NewInstrumentRepository(pool *pgxpool.Pool) *InstrumentRepository {
	return &InstrumentRepository{pool: pool}
}

// Lookup resolves codes to instrument metadata. Codes without a reference
// row are absent from the result.
func (r *InstrumentRepository) Lookup(ctx context.Context, codes []string) (map[string]contracts.Instrument, error) {
	out := make(map[string]contracts.Instrument, len(codes))
	if len(codes) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT ts_code, name, COALESCE(industry, ''), COALESCE(market, ''), list_date
		FROM data.instruments
		WHERE ts_code = ANY($1)
	`, codes)
	if err != nil {
		return nil, fmt.Errorf("lookup instruments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var inst contracts.Instrument
		var listDate *time.Time
		if err := rows.Scan(&inst.Code, &inst.Name, &inst.Industry, &inst.Market, &listDate); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		if listDate != nil {
			inst.ListingDate = *listDate
		}
		if inst.Industry == "" {
			inst.Industry = contracts.UnknownIndustry
		}
		out[inst.Code] = inst
	}
	return out, rows.Err()
}

// SaveBatch upserts instrument reference rows.
func (r *InstrumentRepository) SaveBatch(ctx context.Context, instruments []contracts.Instrument) error {
	if len(instruments) == 0 {
		return nil
	}

	query := `
		INSERT INTO data.instruments (ts_code, name, industry, market, list_date)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (ts_code) DO UPDATE SET
			name = EXCLUDED.name,
			industry = EXCLUDED.industry,
			market = EXCLUDED.market,
			list_date = EXCLUDED.list_date
	`

	batch := &pgx.Batch{}
	for _, inst := range instruments {
		var listDate interface{}
		if !inst.ListingDate.IsZero() {
			listDate = inst.ListingDate
		}
		batch.Queue(query, inst.Code, inst.Name, inst.Industry, inst.Market, listDate)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range instruments {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("save instruments: %w", err)
		}
	}
	return nil
}
