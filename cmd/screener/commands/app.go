package commands

import (
	"context"
	"fmt"

	"github.com/astock-tools/screener/internal/ingest"
	"github.com/astock-tools/screener/internal/marketdata"
	"github.com/astock-tools/screener/internal/provider"
	"github.com/astock-tools/screener/internal/report"
	"github.com/astock-tools/screener/internal/rps"
	"github.com/astock-tools/screener/internal/strategy"
	"github.com/astock-tools/screener/internal/workingset"
	"github.com/astock-tools/screener/pkg/config"
	"github.com/astock-tools/screener/pkg/database"
	"github.com/astock-tools/screener/pkg/httputil"
	"github.com/astock-tools/screener/pkg/logger"
	"github.com/astock-tools/screener/pkg/redis"
)

// app holds the wired dependency graph every command starts from.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	redis *redis.Client

	runner    *strategy.Runner
	collector *ingest.Collector
	cache     *redis.Cache
}

// newApp loads config and connects everything. Callers must close().
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	var cache *redis.Cache
	if redisClient.Enabled() {
		cache = redis.NewCache(redisClient, "screener")
	}

	barRepo := marketdata.NewBarRepository(db.Pool)
	instRepo := marketdata.NewInstrumentRepository(db.Pool)

	store, err := workingset.NewPostgresStore(ctx, db.Pool)
	if err != nil {
		redisClient.Close()
		db.Close()
		return nil, fmt.Errorf("init working set: %w", err)
	}

	materializer := workingset.NewMaterializer(barRepo, store, cfg.Screener.ExcludeSuffixes, log)
	engine := rps.NewEngine(instRepo, log)
	sink := report.NewCSVSink(cfg.Report.OutputDir, log)
	runner := strategy.NewRunner(cfg.Screener, materializer, engine, instRepo, sink, cache, log)

	httpClient := httputil.New(cfg.Provider, log)
	quoteClient := provider.NewClient(httpClient, cfg.Provider.BaseURL, log)
	collector := ingest.NewCollector(quoteClient, barRepo, barRepo, instRepo, log)

	return &app{
		cfg:       cfg,
		log:       log,
		db:        db,
		redis:     redisClient,
		runner:    runner,
		collector: collector,
		cache:     cache,
	}, nil
}

func (a *app) close() {
	a.redis.Close()
	a.db.Close()
}
