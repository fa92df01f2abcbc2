package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/linhao/stockscan/internal/cache"
	"github.com/linhao/stockscan/internal/marketdata"
	"github.com/linhao/stockscan/pkg/config"
	"github.com/linhao/stockscan/pkg/logger"
)

// Source retrieves the raw daily bars for one symbol from the upstream.
// Implementations classify their failures with Transient/Permanent; an
// unclassified error is treated as transient.
type Source interface {
	DailyBars(ctx context.Context, symbol string) ([]marketdata.Bar, error)
}

// Fetcher retrieves a symbol's series, cache-first, with bounded retries
// and exponential backoff against a flaky upstream.
// ⭐ SSOT: 시세 조회 정책(재시도/캐시/검증)은 여기서만
type Fetcher struct {
	source Source
	cache  *cache.Cache
	logger *logger.Logger

	maxRetries     int
	retryDelay     time.Duration
	attemptTimeout time.Duration

	// Injectable clock for accelerated tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a fetcher over source and cache with the batch retry policy.
func New(source Source, c *cache.Cache, cfg config.BatchConfig, attemptTimeout time.Duration, log *logger.Logger) *Fetcher {
	return &Fetcher{
		source:         source,
		cache:          c,
		logger:         log.WithField("module", "fetcher"),
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
		attemptTimeout: attemptTimeout,
		now:            time.Now,
		sleep:          time.Sleep,
	}
}

// WithClock overrides time functions. Test helper.
func (f *Fetcher) WithClock(now func() time.Time, sleep func(time.Duration)) *Fetcher {
	f.now = now
	f.sleep = sleep
	return f
}

// Fetch returns the validated series for symbol.
//
//  1. A fresh cache entry is returned with no network call.
//  2. Otherwise the upstream is tried up to maxRetries times with
//     delay = retryDelay * 2^(attempt-1) between attempts.
//  3. Permanent failures (malformed data, unknown symbol, validation)
//     abort immediately.
//  4. When transient retries exhaust and a stale cache entry exists, the
//     stale entry is returned with Stale=true so the batch keeps moving.
func (f *Fetcher) Fetch(ctx context.Context, symbol string) (*marketdata.Series, error) {
	entry, cached := f.cache.Get(symbol)
	if cached && f.cache.Fresh(entry.FetchedAt) {
		f.logger.WithField("symbol", symbol).Debug("Cache hit")
		return &marketdata.Series{
			Symbol:    symbol,
			Bars:      entry.Bars,
			FetchedAt: entry.FetchedAt,
		}, nil
	}

	var lastErr error
	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		series, err := f.attempt(ctx, symbol)
		if err == nil {
			return series, nil
		}

		if IsPermanent(err) {
			return nil, err
		}

		lastErr = err
		f.logger.WithError(err).WithFields(map[string]interface{}{
			"symbol":  symbol,
			"attempt": attempt,
		}).Warn("Fetch attempt failed")

		// Back off before the next attempt, except after the last.
		if attempt < f.maxRetries {
			f.sleep(f.retryDelay * (1 << (attempt - 1)))
		}
	}

	// Degraded path: serve the stale entry rather than failing outright.
	if cached {
		f.logger.WithField("symbol", symbol).Warn("Retries exhausted, returning stale cache entry")
		return &marketdata.Series{
			Symbol:    symbol,
			Bars:      entry.Bars,
			FetchedAt: entry.FetchedAt,
			Stale:     true,
		}, nil
	}

	return nil, Transient(symbol, fmt.Errorf("%d attempts exhausted: %w", f.maxRetries, lastErr))
}

// attempt performs one bounded network retrieval plus validation and
// cache write-through.
func (f *Fetcher) attempt(ctx context.Context, symbol string) (*marketdata.Series, error) {
	attemptCtx := ctx
	if f.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, f.attemptTimeout)
		defer cancel()
	}

	bars, err := f.source.DailyBars(attemptCtx, symbol)
	if err != nil {
		if IsPermanent(err) {
			return nil, err
		}
		return nil, Transient(symbol, err)
	}

	normalized, err := marketdata.Normalize(bars)
	if err != nil {
		return nil, Permanent(symbol, err)
	}

	validated, err := marketdata.Validate(normalized)
	if err != nil {
		return nil, Permanent(symbol, err)
	}

	fetchedAt := f.now()
	if err := f.cache.Put(symbol, validated, fetchedAt); err != nil {
		// The series itself is good; a cache write failure only costs a
		// future refetch.
		f.logger.WithError(err).WithField("symbol", symbol).Error("Cache write-through failed")
	}

	return &marketdata.Series{
		Symbol:    symbol,
		Bars:      validated,
		FetchedAt: fetchedAt,
	}, nil
}
