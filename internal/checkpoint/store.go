package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/linhao/stockscan/internal/strategy"
	"github.com/linhao/stockscan/pkg/logger"
)

// Snapshot is the durable image of a batch run: per-symbol status plus all
// verdicts collected so far. Readers never observe a partially written
// snapshot.
type Snapshot struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	SavedAt   time.Time `json:"saved_at"`

	// Symbols preserves the universe snapshot in its original order.
	Symbols  []string                      `json:"symbols"`
	Status   map[string]string             `json:"status"`
	Verdicts map[string][]strategy.Verdict `json:"verdicts"`
	Failures map[string]string             `json:"failures,omitempty"`
	Degraded map[string]bool               `json:"degraded,omitempty"`
}

// Store persists run snapshots, one file per run id.
// ⭐ SSOT: 체크포인트 영속화는 여기서만
type Store struct {
	dir    string
	logger *logger.Logger
}

// NewStore creates a store rooted at dir, creating it if missing.
func NewStore(dir string, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &Store{dir: dir, logger: log.WithField("module", "checkpoint")}, nil
}

// Save atomically persists the snapshot: write to a temp file, fsync, then
// rename over the final path.
func (s *Store) Save(snap *Snapshot) error {
	snap.SavedAt = time.Now()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", snap.RunID, err)
	}

	tmp, err := os.CreateTemp(s.dir, "checkpoint.*.tmp")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp checkpoint: %w", err)
	}

	if err := os.Rename(tmpName, s.path(snap.RunID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp checkpoint: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"run_id":  snap.RunID,
		"symbols": len(snap.Symbols),
	}).Debug("Checkpoint saved")

	return nil
}

// Load reads the snapshot for runID. The second return is false when no
// snapshot exists.
func (s *Store) Load(runID string) (*Snapshot, bool, error) {
	data, err := os.ReadFile(s.path(runID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read checkpoint %s: %w", runID, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("decode checkpoint %s: %w", runID, err)
	}

	return &snap, true, nil
}

// List returns the run ids with a persisted snapshot, newest first by
// file modification time.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	type item struct {
		id  string
		mod time.Time
	}
	items := make([]item, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, item{id: strings.TrimSuffix(name, ".json"), mod: info.ModTime()})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].mod.After(items[j].mod)
	})

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.id
	}
	return ids, nil
}

func (s *Store) path(runID string) string {
	// Run ids are generated internally, but keep path traversal out anyway.
	safe := strings.ReplaceAll(runID, string(os.PathSeparator), "_")
	return filepath.Join(s.dir, safe+".json")
}
