package strategy

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linhao/stockscan/internal/marketdata"
	"github.com/linhao/stockscan/pkg/logger"
)

type stubStrategy struct {
	name      string
	triggered bool
	err       error
	panics    bool
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Evaluate(series *marketdata.Series) (Verdict, error) {
	if s.panics {
		panic("boom")
	}
	if s.err != nil {
		return Verdict{}, s.err
	}
	return Verdict{Triggered: s.triggered}, nil
}

func flatSeries(n int) *marketdata.Series {
	bars := make([]marketdata.Bar, n)
	for i := range bars {
		bars[i] = marketdata.Bar{
			Date:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:   10, High: 10, Low: 10, Close: 10,
			Volume: 1000,
		}
	}
	return &marketdata.Series{Symbol: "600000", Bars: bars}
}

func TestRunner_VerdictOrderMatchesStrategyOrder(t *testing.T) {
	runner := NewRunner(logger.NewNop())
	strategies := []Strategy{
		&stubStrategy{name: "always_true", triggered: true},
		&stubStrategy{name: "always_false"},
	}

	verdicts := runner.Run("AAA", flatSeries(10), strategies)

	require.Len(t, verdicts, 2)
	assert.Equal(t, "always_true", verdicts[0].Strategy)
	assert.True(t, verdicts[0].Triggered)
	assert.Equal(t, "always_false", verdicts[1].Strategy)
	assert.False(t, verdicts[1].Triggered)
	assert.Equal(t, "AAA", verdicts[0].Symbol)
}

func TestRunner_BadStrategyDoesNotBlockOthers(t *testing.T) {
	runner := NewRunner(logger.NewNop())
	strategies := []Strategy{
		&stubStrategy{name: "first", triggered: true},
		&stubStrategy{name: "broken", err: errors.New("division by zero")},
		&stubStrategy{name: "last", triggered: true},
	}

	verdicts := runner.Run("600000", flatSeries(10), strategies)

	require.Len(t, verdicts, 3)
	assert.True(t, verdicts[0].Triggered)
	assert.False(t, verdicts[1].Triggered)
	assert.Contains(t, verdicts[1].Detail, "division by zero")
	assert.True(t, verdicts[2].Triggered)
}

func TestRunner_PanicIsolated(t *testing.T) {
	runner := NewRunner(logger.NewNop())
	strategies := []Strategy{
		&stubStrategy{name: "panicky", panics: true},
		&stubStrategy{name: "fine", triggered: true},
	}

	verdicts := runner.Run("600000", flatSeries(10), strategies)

	require.Len(t, verdicts, 2)
	assert.False(t, verdicts[0].Triggered)
	assert.Contains(t, verdicts[0].Detail, "panic")
	assert.True(t, verdicts[1].Triggered)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubStrategy{name: "dup"}))
	assert.Error(t, r.Register(&stubStrategy{name: "dup"}))
	assert.Equal(t, 1, r.Len())
}

func TestDefaultRegistry_Order(t *testing.T) {
	r := DefaultRegistry()
	strategies := r.Strategies()

	require.Len(t, strategies, 3)
	assert.Equal(t, "breakout", strategies[0].Name())
	assert.Equal(t, "keep_increasing", strategies[1].Name())
	assert.Equal(t, "backtrace_ma250", strategies[2].Name())
}
