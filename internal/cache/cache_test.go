package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linhao/stockscan/internal/marketdata"
	"github.com/linhao/stockscan/pkg/logger"
)

func testBars(n int) []marketdata.Bar {
	bars := make([]marketdata.Bar, n)
	for i := range bars {
		bars[i] = marketdata.Bar{
			Date:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:   10, High: 11, Low: 9, Close: 10.5,
			Volume: 1000,
		}
	}
	return bars
}

func newTestCache(t *testing.T, freshness time.Duration) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), freshness, logger.NewNop())
	require.NoError(t, err)
	return c
}

func TestCache_PutGet(t *testing.T) {
	c := newTestCache(t, 24*time.Hour)

	require.NoError(t, c.Put("600000", testBars(5), time.Now()))

	entry, ok := c.Get("600000")
	require.True(t, ok)
	assert.Equal(t, "600000", entry.Symbol)
	assert.Len(t, entry.Bars, 5)

	_, ok = c.Get("000001")
	assert.False(t, ok)
}

func TestCache_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	c1, err := New(dir, 24*time.Hour, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, c1.Put("600000", testBars(3), time.Now()))

	// A second cache over the same directory sees the persisted entry.
	c2, err := New(dir, 24*time.Hour, logger.NewNop())
	require.NoError(t, err)

	entry, ok := c2.Get("600000")
	require.True(t, ok)
	assert.Len(t, entry.Bars, 3)
}

func TestCache_Freshness(t *testing.T) {
	c := newTestCache(t, 24*time.Hour)

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	c.WithNow(func() time.Time { return now })

	tests := []struct {
		name      string
		fetchedAt time.Time
		want      bool
	}{
		{"10 hours old", now.Add(-10 * time.Hour), true},
		{"exactly at window", now.Add(-24 * time.Hour), true},
		{"25 hours old", now.Add(-25 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Fresh(tt.fetchedAt))
		})
	}
}

func TestCache_StaleEntryRetained(t *testing.T) {
	c := newTestCache(t, time.Hour)

	fetchedAt := time.Now().Add(-48 * time.Hour)
	require.NoError(t, c.Put("600000", testBars(2), fetchedAt))

	// Stale, but still present as a fallback value.
	entry, ok := c.Get("600000")
	require.True(t, ok)
	assert.False(t, c.Fresh(entry.FetchedAt))
}

func TestCache_LastWriteWins(t *testing.T) {
	c := newTestCache(t, 24*time.Hour)

	first := time.Now().Add(-time.Hour)
	second := time.Now()

	require.NoError(t, c.Put("600000", testBars(2), first))
	require.NoError(t, c.Put("600000", testBars(7), second))

	entry, ok := c.Get("600000")
	require.True(t, ok)
	assert.Len(t, entry.Bars, 7)
	assert.True(t, entry.FetchedAt.Equal(second))
}

func TestCache_ConcurrentSymbols(t *testing.T) {
	c := newTestCache(t, 24*time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			symbol := fmt.Sprintf("60%04d", i)
			if err := c.Put(symbol, testBars(1), time.Now()); err != nil {
				t.Error(err)
				return
			}
			if _, ok := c.Get(symbol); !ok {
				t.Errorf("entry for %s missing after put", symbol)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 32, c.Len())
}
