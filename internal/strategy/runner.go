package strategy

import (
	"fmt"

	"github.com/linhao/stockscan/internal/marketdata"
	"github.com/linhao/stockscan/pkg/logger"
)

// Runner executes a strategy set against one series. A failing strategy
// never blocks the others; it yields a non-triggered verdict carrying the
// error detail instead.
type Runner struct {
	logger *logger.Logger
}

// NewRunner creates a runner.
func NewRunner(log *logger.Logger) *Runner {
	return &Runner{logger: log.WithField("module", "strategy_runner")}
}

// Run evaluates every strategy in order and returns one verdict per
// strategy, in the given order, for deterministic reporting.
func (r *Runner) Run(symbol string, series *marketdata.Series, strategies []Strategy) []Verdict {
	verdicts := make([]Verdict, 0, len(strategies))

	for _, s := range strategies {
		verdict := r.evaluate(symbol, series, s)
		verdicts = append(verdicts, verdict)
	}

	return verdicts
}

// evaluate runs one strategy with error and panic isolation.
func (r *Runner) evaluate(symbol string, series *marketdata.Series, s Strategy) (verdict Verdict) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.WithFields(map[string]interface{}{
				"symbol":   symbol,
				"strategy": s.Name(),
				"panic":    rec,
			}).Error("Strategy panicked")
			verdict = Verdict{
				Symbol:   symbol,
				Strategy: s.Name(),
				Detail:   fmt.Sprintf("error: panic: %v", rec),
			}
		}
	}()

	v, err := s.Evaluate(series)
	if err != nil {
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"symbol":   symbol,
			"strategy": s.Name(),
		}).Error("Strategy failed")
		return Verdict{
			Symbol:   symbol,
			Strategy: s.Name(),
			Detail:   fmt.Sprintf("error: %v", err),
		}
	}

	// Stamp identity so strategies only have to fill Triggered/Detail.
	v.Symbol = symbol
	v.Strategy = s.Name()
	return v
}
