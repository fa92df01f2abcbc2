package batch

import (
	"sync"
	"time"
)

// Progress is an observational side channel: a monotonically increasing
// completion count plus elapsed time. It never influences scheduling or
// checkpoint cadence.
type Progress struct {
	mu        sync.RWMutex
	runID     string
	total     int
	completed int
	startedAt time.Time
}

// ProgressSnapshot is one point-in-time view, safe to serialize.
type ProgressSnapshot struct {
	RunID     string        `json:"run_id"`
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	Elapsed   time.Duration `json:"elapsed"`
	Running   bool          `json:"running"`
}

// NewProgress creates an idle tracker.
func NewProgress() *Progress {
	return &Progress{}
}

// Begin resets the tracker for a new or resumed run.
func (p *Progress) Begin(runID string, total, alreadyCompleted int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runID = runID
	p.total = total
	p.completed = alreadyCompleted
	p.startedAt = time.Now()
}

// CompleteOne bumps the completion counter.
func (p *Progress) CompleteOne() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed++
}

// Finish marks the run as no longer active.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runID = ""
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := ProgressSnapshot{
		RunID:     p.runID,
		Total:     p.total,
		Completed: p.completed,
		Running:   p.runID != "",
	}
	if !p.startedAt.IsZero() {
		snap.Elapsed = time.Since(p.startedAt)
	}
	return snap
}
