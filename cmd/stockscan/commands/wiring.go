package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/linhao/stockscan/internal/batch"
	"github.com/linhao/stockscan/internal/cache"
	"github.com/linhao/stockscan/internal/checkpoint"
	"github.com/linhao/stockscan/internal/external/eastmoney"
	"github.com/linhao/stockscan/internal/fetch"
	"github.com/linhao/stockscan/internal/report"
	"github.com/linhao/stockscan/internal/strategy"
	"github.com/linhao/stockscan/internal/universe"
	"github.com/linhao/stockscan/pkg/config"
	"github.com/linhao/stockscan/pkg/database"
	"github.com/linhao/stockscan/pkg/httputil"
	"github.com/linhao/stockscan/pkg/logger"
)

// scanStack bundles the fully wired scan pipeline.
type scanStack struct {
	loader      *universe.Loader
	coordinator *batch.Coordinator
	checkpoints *checkpoint.Store
	strategies  []strategy.Strategy
	repo        *report.Repository // nil without DATABASE_URL
	db          *database.DB       // nil without DATABASE_URL
}

func (s *scanStack) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// buildScanStack wires cache, fetcher, strategies and coordinator from config
// ⭐ SSOT: 스캔 파이프라인 조립은 이 함수에서만
func buildScanStack(cfg *config.Config, log *logger.Logger) (*scanStack, error) {
	seriesCache, err := cache.New(cfg.Cache.Dir, cfg.Cache.Freshness, log)
	if err != nil {
		return nil, fmt.Errorf("init series cache: %w", err)
	}

	store, err := checkpoint.NewStore(cfg.Batch.CheckpointDir, log)
	if err != nil {
		return nil, fmt.Errorf("init checkpoint store: %w", err)
	}

	// Separate HTTP clients: the kline client rate-limits and leaves
	// retries to the fetcher, the listing client keeps default retries.
	klineClient := httputil.New(log).
		WithRateLimit(cfg.Upstream.RateLimit, cfg.Upstream.RateBurst)
	source := eastmoney.NewClient(klineClient, cfg.Upstream, log)

	loader, err := universe.NewLoader(httputil.New(log), cfg.Upstream, filepath.Join(cfg.Cache.Dir, "universe"), log)
	if err != nil {
		return nil, fmt.Errorf("init universe loader: %w", err)
	}

	fetcher := fetch.New(source, seriesCache, cfg.Batch, cfg.Upstream.AttemptTimeout, log)
	runner := strategy.NewRunner(log)
	coordinator := batch.NewCoordinator(fetcher, runner, store, cfg.Batch, log)

	stack := &scanStack{
		loader:      loader,
		coordinator: coordinator,
		checkpoints: store,
		strategies:  strategy.DefaultRegistry().Strategies(),
	}

	if cfg.Database.URL != "" {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		repo, err := report.NewRepository(context.Background(), db.Pool, log)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init report repository: %w", err)
		}
		stack.db = db
		stack.repo = repo
		log.Info("Report archive enabled")
	}

	return stack, nil
}

// loadConfig loads config and applies the global --verbose flag.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, logger.New(cfg), nil
}
