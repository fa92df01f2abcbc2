package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/linhao/stockscan/internal/marketdata"
	"github.com/linhao/stockscan/pkg/logger"
)

// Entry is one cached series for a symbol. Stale entries are never deleted
// by the freshness window; they stay around as a fallback value when a
// refetch fails.
type Entry struct {
	Symbol    string           `json:"symbol"`
	Bars      []marketdata.Bar `json:"bars"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// Cache is a durable, time-windowed series store keyed by symbol.
// ⭐ SSOT: 시세 캐시는 이 구조체에서만
//
// Concurrency: reads/writes for different symbols never block each other;
// writes for the same symbol are serialized (last write wins). Put persists
// to disk before returning, so a crash immediately after Put never loses
// the entry.
type Cache struct {
	dir       string
	freshness time.Duration
	logger    *logger.Logger

	mu      sync.RWMutex
	entries map[string]*slot

	now func() time.Time
}

// slot holds the in-memory copy of one symbol plus its write lock.
type slot struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	entry   *Entry // nil until loaded from disk
	loaded  bool
}

// New creates a cache rooted at dir. The directory is created if missing.
func New(dir string, freshness time.Duration, log *logger.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	return &Cache{
		dir:       dir,
		freshness: freshness,
		logger:    log.WithField("module", "cache"),
		entries:   make(map[string]*slot),
		now:       time.Now,
	}, nil
}

// WithNow overrides the clock. Test helper.
func (c *Cache) WithNow(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Get returns the cached entry for symbol, loading it from disk on first
// access. The second return is false when no entry exists at all.
func (c *Cache) Get(symbol string) (*Entry, bool) {
	s := c.slotFor(symbol)

	s.mu.RLock()
	if s.loaded {
		entry := s.entry
		s.mu.RUnlock()
		return entry, entry != nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.entry = c.readFile(symbol)
		s.loaded = true
	}
	return s.entry, s.entry != nil
}

// Put stores a series for symbol, persisting to disk before returning.
func (c *Cache) Put(symbol string, bars []marketdata.Bar, fetchedAt time.Time) error {
	s := c.slotFor(symbol)

	// Serialize same-symbol writers; last write wins.
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	entry := &Entry{Symbol: symbol, Bars: bars, FetchedAt: fetchedAt}

	if err := c.writeFile(symbol, entry); err != nil {
		return fmt.Errorf("persist cache entry for %s: %w", symbol, err)
	}

	s.mu.Lock()
	s.entry = entry
	s.loaded = true
	s.mu.Unlock()

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"bars":   len(bars),
	}).Debug("Cached series")

	return nil
}

// Fresh reports whether an entry fetched at the given time is still inside
// the freshness window.
func (c *Cache) Fresh(fetchedAt time.Time) bool {
	return c.now().Sub(fetchedAt) <= c.freshness
}

// Len returns the number of symbols currently held in memory.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, s := range c.entries {
		s.mu.RLock()
		if s.entry != nil {
			n++
		}
		s.mu.RUnlock()
	}
	return n
}

// slotFor returns the slot for symbol, creating it if needed. The global
// lock only guards the map, never the per-symbol data.
func (c *Cache) slotFor(symbol string) *slot {
	c.mu.RLock()
	s, ok := c.entries[symbol]
	c.mu.RUnlock()
	if ok {
		return s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok = c.entries[symbol]; ok {
		return s
	}
	s = &slot{}
	c.entries[symbol] = s
	return s
}

func (c *Cache) path(symbol string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s.json", symbol))
}

// writeFile persists an entry atomically: write to a temp file in the same
// directory, fsync, then rename over the final path.
func (c *Cache) writeFile(symbol string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, symbol+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, c.path(symbol)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

// readFile loads an entry from disk, returning nil when absent or corrupt.
// A corrupt file is treated as a miss so the symbol gets refetched.
func (c *Cache) readFile(symbol string) *Entry {
	data, err := os.ReadFile(c.path(symbol))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to read cache file")
		}
		return nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Warn("Discarding corrupt cache file")
		return nil
	}

	return &entry
}
