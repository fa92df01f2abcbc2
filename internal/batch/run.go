package batch

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/linhao/stockscan/internal/checkpoint"
	"github.com/linhao/stockscan/internal/strategy"
)

// Status is the lifecycle state of one symbol inside a run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Run is the live state of one batch run. Mutated only by the coordinator;
// workers communicate outcomes, never state changes.
type Run struct {
	ID        string
	StartedAt time.Time

	// Symbols is the universe snapshot in dispatch order.
	Symbols  []string
	Status   map[string]Status
	Verdicts map[string][]strategy.Verdict
	Failures map[string]string
	Degraded map[string]bool
}

func newRun(id string, symbols []string) *Run {
	r := &Run{
		ID:        id,
		StartedAt: time.Now(),
		Symbols:   append([]string(nil), symbols...),
		Status:    make(map[string]Status, len(symbols)),
		Verdicts:  make(map[string][]strategy.Verdict),
		Failures:  make(map[string]string),
		Degraded:  make(map[string]bool),
	}
	for _, s := range symbols {
		r.Status[s] = StatusPending
	}
	return r
}

// FromSnapshot rebuilds a run from a checkpoint. Symbols the aborted run
// left in_progress are reset to pending: their partial effects are gone.
func FromSnapshot(snap *checkpoint.Snapshot) *Run {
	r := &Run{
		ID:        snap.RunID,
		StartedAt: snap.StartedAt,
		Symbols:   append([]string(nil), snap.Symbols...),
		Status:    make(map[string]Status, len(snap.Symbols)),
		Verdicts:  make(map[string][]strategy.Verdict, len(snap.Verdicts)),
		Failures:  make(map[string]string, len(snap.Failures)),
		Degraded:  make(map[string]bool, len(snap.Degraded)),
	}

	for _, s := range snap.Symbols {
		status := Status(snap.Status[s])
		if status == StatusInProgress || status == "" {
			status = StatusPending
		}
		r.Status[s] = status
	}
	for s, v := range snap.Verdicts {
		r.Verdicts[s] = v
	}
	for s, f := range snap.Failures {
		r.Failures[s] = f
	}
	for s, d := range snap.Degraded {
		r.Degraded[s] = d
	}

	return r
}

// snapshot converts the run into its durable form.
func (r *Run) snapshot() *checkpoint.Snapshot {
	snap := &checkpoint.Snapshot{
		RunID:     r.ID,
		StartedAt: r.StartedAt,
		Symbols:   append([]string(nil), r.Symbols...),
		Status:    make(map[string]string, len(r.Status)),
		Verdicts:  make(map[string][]strategy.Verdict, len(r.Verdicts)),
		Failures:  make(map[string]string, len(r.Failures)),
		Degraded:  make(map[string]bool, len(r.Degraded)),
	}
	for s, st := range r.Status {
		snap.Status[s] = string(st)
	}
	for s, v := range r.Verdicts {
		snap.Verdicts[s] = v
	}
	for s, f := range r.Failures {
		snap.Failures[s] = f
	}
	for s, d := range r.Degraded {
		snap.Degraded[s] = d
	}
	return snap
}

// pendingSymbols returns the symbols still to dispatch, in universe order.
func (r *Run) pendingSymbols() []string {
	out := make([]string, 0)
	for _, s := range r.Symbols {
		if r.Status[s] == StatusPending {
			out = append(out, s)
		}
	}
	return out
}

// CompletedCount returns the number of symbols in a terminal status.
func (r *Run) CompletedCount() int {
	n := 0
	for _, st := range r.Status {
		if st == StatusDone || st == StatusFailed {
			n++
		}
	}
	return n
}

// Terminal reports whether every symbol reached done or failed.
func (r *Run) Terminal() bool {
	return r.CompletedCount() == len(r.Symbols)
}

// apply records one symbol's outcome. Called only from the coordinator loop.
func (r *Run) apply(symbol string, out *outcome) {
	r.Status[symbol] = out.status
	if out.status == StatusFailed {
		r.Failures[symbol] = out.failure
		return
	}
	r.Verdicts[symbol] = out.verdicts
	if out.degraded {
		r.Degraded[symbol] = true
	}
}

// GenerateRunID generates a unique run ID. The random suffix keeps runs
// started within the same second from overwriting each other's checkpoints.
func GenerateRunID() string {
	return fmt.Sprintf("run_%s_%06x", time.Now().Format("20060102_150405"), rand.Intn(1<<24))
}
