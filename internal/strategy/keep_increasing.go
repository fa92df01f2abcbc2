package strategy

import (
	"fmt"

	"github.com/linhao/stockscan/internal/marketdata"
)

// KeepIncreasing triggers on a sustained uptrend: enough up days inside the
// observation window, a minimum window return, and a bounded drawdown.
type KeepIncreasing struct {
	window      int
	minUpDays   int
	maxDownDays int
	minReturn   float64
	maxDrawdown float64
}

// NewKeepIncreasing creates the trend strategy with its standard parameters.
func NewKeepIncreasing() *KeepIncreasing {
	return &KeepIncreasing{
		window:      20,
		minUpDays:   15,
		maxDownDays: 5,
		minReturn:   0.2,
		maxDrawdown: 0.05,
	}
}

func (s *KeepIncreasing) Name() string { return "keep_increasing" }

// Evaluate counts up/down days and drawdown over the window.
func (s *KeepIncreasing) Evaluate(series *marketdata.Series) (Verdict, error) {
	if series.Len() < s.window+1 {
		return Verdict{}, fmt.Errorf("need at least %d bars, have %d", s.window+1, series.Len())
	}

	closes := series.Closes()
	n := len(closes)
	window := closes[n-s.window-1:]

	upDays, downDays := 0, 0
	peak := window[0]
	maxDrawdown := 0.0

	for i := 1; i < len(window); i++ {
		switch {
		case window[i] > window[i-1]:
			upDays++
		case window[i] < window[i-1]:
			downDays++
		}

		if window[i] > peak {
			peak = window[i]
		}
		if dd := (peak - window[i]) / peak; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}

	windowReturn := window[len(window)-1]/window[0] - 1

	triggered := upDays >= s.minUpDays &&
		downDays <= s.maxDownDays &&
		windowReturn >= s.minReturn &&
		maxDrawdown <= s.maxDrawdown

	detail := fmt.Sprintf("up_days=%d down_days=%d return=%.3f drawdown=%.3f",
		upDays, downDays, windowReturn, maxDrawdown)

	return Verdict{Triggered: triggered, Detail: detail}, nil
}
