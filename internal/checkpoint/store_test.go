package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linhao/stockscan/internal/strategy"
	"github.com/linhao/stockscan/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), logger.NewNop())
	require.NoError(t, err)
	return s
}

func sampleSnapshot(runID string) *Snapshot {
	return &Snapshot{
		RunID:     runID,
		StartedAt: time.Now().Add(-time.Minute),
		Symbols:   []string{"600000", "000001"},
		Status: map[string]string{
			"600000": "done",
			"000001": "pending",
		},
		Verdicts: map[string][]strategy.Verdict{
			"600000": {
				{Symbol: "600000", Strategy: "breakout", Triggered: true},
			},
		},
		Failures: map[string]string{},
		Degraded: map[string]bool{"600000": false},
	}
}

func TestStore_SaveLoadRoundtrip(t *testing.T) {
	s := newTestStore(t)

	snap := sampleSnapshot("run_20260826_120000")
	require.NoError(t, s.Save(snap))

	loaded, ok, err := s.Load("run_20260826_120000")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, snap.RunID, loaded.RunID)
	assert.Equal(t, snap.Symbols, loaded.Symbols)
	assert.Equal(t, "done", loaded.Status["600000"])
	require.Len(t, loaded.Verdicts["600000"], 1)
	assert.True(t, loaded.Verdicts["600000"][0].Triggered)
	assert.False(t, loaded.SavedAt.IsZero())
}

func TestStore_LoadAbsent(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.Load("run_never_existed")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_OverwriteKeepsLatest(t *testing.T) {
	s := newTestStore(t)

	snap := sampleSnapshot("run_x")
	require.NoError(t, s.Save(snap))

	snap.Status["000001"] = "done"
	require.NoError(t, s.Save(snap))

	loaded, ok, err := s.Load("run_x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "done", loaded.Status["000001"])
}

func TestStore_NoPartialFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Save(sampleSnapshot("run_a")))
	require.NoError(t, s.Save(sampleSnapshot("run_b")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, ".json", filepath.Ext(e.Name()), "no temp files should remain")
	}
}

func TestStore_List(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save(sampleSnapshot("run_a")))
	require.NoError(t, s.Save(sampleSnapshot("run_b")))

	ids, err := s.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"run_a", "run_b"}, ids)
}

func TestStore_ListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, logger.NewNop())
	require.NoError(t, err)

	// Pin mod times so the ordering does not depend on save timing.
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"run_old", "run_mid", "run_new"} {
		require.NoError(t, s.Save(sampleSnapshot(id)))
		mod := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(filepath.Join(dir, id+".json"), mod, mod))
	}

	ids, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"run_new", "run_mid", "run_old"}, ids)
}
