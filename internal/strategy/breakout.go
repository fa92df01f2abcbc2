package strategy

import (
	"fmt"

	"github.com/linhao/stockscan/internal/marketdata"
)

// Breakout triggers when the last close breaks above the prior observation
// window's high on expanded volume.
type Breakout struct {
	window      int     // breakout observation period
	volumeRatio float64 // required volume expansion vs previous day
	priceChange float64 // required day-over-day price gain
}

// NewBreakout creates the breakout strategy with its standard parameters.
func NewBreakout() *Breakout {
	return &Breakout{
		window:      30,
		volumeRatio: 1.5,
		priceChange: 0.02,
	}
}

func (s *Breakout) Name() string { return "breakout" }

// Evaluate checks breakout plus volume confirmation.
func (s *Breakout) Evaluate(series *marketdata.Series) (Verdict, error) {
	if series.Len() < s.window+1 {
		return Verdict{}, fmt.Errorf("need at least %d bars, have %d", s.window+1, series.Len())
	}

	closes := series.Closes()
	volumes := series.Volumes()
	n := len(closes)

	// Breakout: last close clears the prior window's close high.
	prevMax := maxOf(closes[:n-1], s.window)
	breakout := closes[n-1] > prevMax && prevMax > closes[n-2]

	// Confirmation: price and volume both expanded day over day.
	priceChange := closes[n-1]/closes[n-2] - 1
	volumeChange := volumes[n-1] / volumes[n-2]
	confirmed := priceChange > s.priceChange && volumeChange > s.volumeRatio

	triggered := breakout && confirmed
	detail := fmt.Sprintf("close=%.2f prev_max=%.2f vol_ratio=%.2f", closes[n-1], prevMax, volumeChange)

	return Verdict{Triggered: triggered, Detail: detail}, nil
}
