package marketdata

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// Bar is one normalized daily candle for a symbol.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Series is a validated price/volume history for one symbol.
// Stale marks a degraded result: a cache entry past its freshness window
// returned because a live refetch failed.
type Series struct {
	Symbol    string    `json:"symbol"`
	Bars      []Bar     `json:"bars"`
	FetchedAt time.Time `json:"fetched_at"`
	Stale     bool      `json:"stale,omitempty"`
}

// Validation errors. Both are permanent: retrying the same payload cannot fix them.
var (
	ErrInvalidBar  = errors.New("bar has missing or non-positive price fields")
	ErrEmptySeries = errors.New("series is empty after validation")
)

// Normalize orders bars by date and rejects duplicate dates. Upstream
// payloads arrive oldest-first already; sorting keeps the invariant
// independent of the source.
func Normalize(bars []Bar) ([]Bar, error) {
	out := make([]Bar, len(bars))
	copy(out, bars)

	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})

	for i := 1; i < len(out); i++ {
		if out[i].Date.Equal(out[i-1].Date) {
			return nil, fmt.Errorf("duplicate bar date %s: %w",
				out[i].Date.Format("2006-01-02"), ErrInvalidBar)
		}
	}

	return out, nil
}

// Validate enforces the bar invariants: every bar must carry a date and
// positive OHLC prices; bars with zero or negative volume are dropped
// rather than treated as fatal. An empty post-filter series is an error.
func Validate(bars []Bar) ([]Bar, error) {
	filtered := make([]Bar, 0, len(bars))

	for _, b := range bars {
		if b.Date.IsZero() {
			return nil, fmt.Errorf("bar without date: %w", ErrInvalidBar)
		}
		if !validPrice(b.Open) || !validPrice(b.High) || !validPrice(b.Low) || !validPrice(b.Close) {
			return nil, fmt.Errorf("bar %s: %w", b.Date.Format("2006-01-02"), ErrInvalidBar)
		}
		if b.Volume <= 0 {
			continue
		}
		filtered = append(filtered, b)
	}

	if len(filtered) == 0 {
		return nil, ErrEmptySeries
	}

	return filtered, nil
}

func validPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0
}

// Len returns the number of bars in the series.
func (s *Series) Len() int {
	return len(s.Bars)
}

// Last returns the most recent bar. Callers must check Len first.
func (s *Series) Last() Bar {
	return s.Bars[len(s.Bars)-1]
}

// Closes returns the close prices in date order.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Volumes returns the volumes in date order.
func (s *Series) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = float64(b.Volume)
	}
	return out
}
