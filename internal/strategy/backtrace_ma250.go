package strategy

import (
	"fmt"
	"math"

	"github.com/linhao/stockscan/internal/marketdata"
)

// BacktraceMA250 triggers when price pulls back onto a rising yearly moving
// average on expanded volume while momentum is not yet overheated.
type BacktraceMA250 struct {
	maWindow     int
	maxDeviation float64 // allowed |close-ma|/ma at the touch
	volumeRatio  float64 // volume vs its 20-day average
	rsiCeiling   float64
}

// NewBacktraceMA250 creates the pullback strategy with its standard parameters.
func NewBacktraceMA250() *BacktraceMA250 {
	return &BacktraceMA250{
		maWindow:     250,
		maxDeviation: 0.02,
		volumeRatio:  1.5,
		rsiCeiling:   50,
	}
}

func (s *BacktraceMA250) Name() string { return "backtrace_ma250" }

// Evaluate checks the yearly-line touch conditions on the latest bar.
func (s *BacktraceMA250) Evaluate(series *marketdata.Series) (Verdict, error) {
	if series.Len() < s.maWindow {
		return Verdict{}, fmt.Errorf("need at least %d bars, have %d", s.maWindow, series.Len())
	}

	closes := series.Closes()
	volumes := series.Volumes()

	ma250 := ma(closes, s.maWindow)
	lastClose := closes[len(closes)-1]
	deviation := (lastClose - ma250) / ma250

	volMA20 := ma(volumes, 20)
	volRatio := 0.0
	if volMA20 > 0 {
		volRatio = volumes[len(volumes)-1] / volMA20
	}

	lastRSI := rsi(closes, 14)

	triggered := math.Abs(deviation) < s.maxDeviation &&
		lastClose > ma250 &&
		volRatio > s.volumeRatio &&
		lastRSI < s.rsiCeiling

	detail := fmt.Sprintf("ma250=%.2f deviation=%.4f vol_ratio=%.2f rsi=%.1f",
		ma250, deviation, volRatio, lastRSI)

	return Verdict{Triggered: triggered, Detail: detail}, nil
}
