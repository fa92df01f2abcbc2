package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func validBar(n int) Bar {
	return Bar{Date: day(n), Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1000}
}

func TestNormalize(t *testing.T) {
	t.Run("sorts by date", func(t *testing.T) {
		bars := []Bar{validBar(2), validBar(0), validBar(1)}

		out, err := Normalize(bars)
		require.NoError(t, err)

		require.Len(t, out, 3)
		assert.True(t, out[0].Date.Before(out[1].Date))
		assert.True(t, out[1].Date.Before(out[2].Date))
	})

	t.Run("rejects duplicate dates", func(t *testing.T) {
		bars := []Bar{validBar(0), validBar(1), validBar(1)}

		_, err := Normalize(bars)
		assert.ErrorIs(t, err, ErrInvalidBar)
	})
}

func TestValidate(t *testing.T) {
	t.Run("drops zero volume bars", func(t *testing.T) {
		bars := make([]Bar, 0, 10)
		for i := 0; i < 10; i++ {
			bars = append(bars, validBar(i))
		}
		bars[3].Volume = 0

		out, err := Validate(bars)
		require.NoError(t, err)
		assert.Len(t, out, 9)
	})

	t.Run("empty after filter is an error", func(t *testing.T) {
		bars := []Bar{validBar(0)}
		bars[0].Volume = 0

		_, err := Validate(bars)
		assert.ErrorIs(t, err, ErrEmptySeries)
	})

	t.Run("rejects non-positive prices", func(t *testing.T) {
		bars := []Bar{validBar(0), validBar(1)}
		bars[1].Close = 0

		_, err := Validate(bars)
		assert.ErrorIs(t, err, ErrInvalidBar)
	})

	t.Run("rejects missing date", func(t *testing.T) {
		bars := []Bar{{Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}}

		_, err := Validate(bars)
		assert.ErrorIs(t, err, ErrInvalidBar)
	})
}

func TestSeriesAccessors(t *testing.T) {
	s := &Series{Symbol: "600000", Bars: []Bar{validBar(0), validBar(1)}}

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, day(1), s.Last().Date)
	assert.Equal(t, []float64{10.5, 10.5}, s.Closes())
	assert.Equal(t, []float64{1000, 1000}, s.Volumes())
}
