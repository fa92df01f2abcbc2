package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/linhao/stockscan/internal/checkpoint"
	"github.com/linhao/stockscan/internal/fetch"
	"github.com/linhao/stockscan/internal/strategy"
	"github.com/linhao/stockscan/pkg/config"
	"github.com/linhao/stockscan/pkg/logger"
)

// Coordinator drives a symbol universe through fetch → analyze with a
// bounded worker pool and persists checkpoints so interrupted runs resume
// without redoing completed work.
// ⭐ SSOT: 배치 상태 변경은 코디네이터 루프에서만
//
// Workers report through a single completion channel; all run mutations
// happen on the coordinator side, so Run needs no locking.
type Coordinator struct {
	fetcher     *fetch.Fetcher
	runner      *strategy.Runner
	checkpoints *checkpoint.Store
	logger      *logger.Logger
	progress    *Progress

	workers         int
	checkpointEvery int
	runTimeout      time.Duration
}

// NewCoordinator creates a coordinator with the batch configuration.
func NewCoordinator(fetcher *fetch.Fetcher, runner *strategy.Runner, store *checkpoint.Store, cfg config.BatchConfig, log *logger.Logger) *Coordinator {
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	return &Coordinator{
		fetcher:         fetcher,
		runner:          runner,
		checkpoints:     store,
		logger:          log.WithField("module", "coordinator"),
		progress:        NewProgress(),
		workers:         workers,
		checkpointEvery: cfg.CheckpointEvery,
		runTimeout:      cfg.RunTimeout,
	}
}

// DefaultWorkers returns the default worker pool size.
func DefaultWorkers() int {
	n := 4 * runtime.NumCPU()
	if n > 32 {
		n = 32
	}
	return n
}

// Progress exposes the observational progress tracker.
func (c *Coordinator) Progress() *Progress {
	return c.progress
}

// eventKind distinguishes the two messages a worker can send.
type eventKind int

const (
	eventClaimed eventKind = iota
	eventFinished
)

type event struct {
	kind    eventKind
	symbol  string
	outcome *outcome
}

// outcome is one symbol's terminal result as reported by a worker.
type outcome struct {
	status   Status
	verdicts []strategy.Verdict
	degraded bool
	failure  string
}

// Run executes the batch over symbols, or resumes the run identified by
// resumeID. It returns when every dispatched symbol reached a terminal
// status; with a global timeout the remaining symbols stay pending for a
// future resume. Only a checkpoint persistence failure returns an error.
func (c *Coordinator) Run(ctx context.Context, symbols []string, strategies []strategy.Strategy, resumeID string) (*Run, error) {
	run, err := c.prepareRun(symbols, resumeID)
	if err != nil {
		return nil, err
	}

	pending := run.pendingSymbols()
	c.progress.Begin(run.ID, len(run.Symbols), run.CompletedCount())
	defer c.progress.Finish()

	c.logger.WithFields(map[string]interface{}{
		"run_id":    run.ID,
		"universe":  len(run.Symbols),
		"pending":   len(pending),
		"workers":   c.workers,
		"resumed":   resumeID != "",
	}).Info("Starting batch run")

	startTime := time.Now()

	if c.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.runTimeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := c.workers
	if len(pending) > 0 && workers > len(pending) {
		workers = len(pending)
	}

	jobs := make(chan string)
	events := make(chan event)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.worker(ctx, workerID, jobs, events, strategies)
		}(i)
	}

	// Dispatcher: feeds pending symbols until done or cancelled.
	go func() {
		defer close(jobs)
		for _, symbol := range pending {
			select {
			case jobs <- symbol:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(events)
	}()

	// Coordinator loop: the only writer of run state.
	sinceCheckpoint := 0
	var fatal error
	for ev := range events {
		switch ev.kind {
		case eventClaimed:
			run.Status[ev.symbol] = StatusInProgress

		case eventFinished:
			run.apply(ev.symbol, ev.outcome)
			c.progress.CompleteOne()
			sinceCheckpoint++

			if fatal == nil && sinceCheckpoint >= c.checkpointEvery {
				sinceCheckpoint = 0
				if err := c.checkpoints.Save(run.snapshot()); err != nil {
					// Silent checkpoint loss would break the resume
					// guarantee; stop dispatching and surface the error.
					fatal = fmt.Errorf("persist checkpoint: %w", err)
					cancel()
				}
			}
		}
	}

	if fatal != nil {
		return run, fatal
	}

	if err := c.checkpoints.Save(run.snapshot()); err != nil {
		return run, fmt.Errorf("persist final checkpoint: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"run_id":    run.ID,
		"completed": run.CompletedCount(),
		"universe":  len(run.Symbols),
		"terminal":  run.Terminal(),
		"duration":  time.Since(startTime),
	}).Info("Batch run finished")

	return run, nil
}

// prepareRun builds a fresh run or reloads one from its checkpoint.
func (c *Coordinator) prepareRun(symbols []string, resumeID string) (*Run, error) {
	if resumeID == "" {
		return newRun(GenerateRunID(), symbols), nil
	}

	snap, ok, err := c.checkpoints.Load(resumeID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", resumeID, err)
	}
	if !ok {
		return nil, fmt.Errorf("no checkpoint found for run %s", resumeID)
	}

	run := FromSnapshot(snap)
	c.logger.WithFields(map[string]interface{}{
		"run_id":    run.ID,
		"completed": run.CompletedCount(),
		"remaining": len(run.pendingSymbols()),
	}).Info("Resuming batch run from checkpoint")

	return run, nil
}

// worker claims pending symbols and reports outcomes. Cancellation is
// cooperative: checked between symbols, never mid-fetch.
func (c *Coordinator) worker(ctx context.Context, workerID int, jobs <-chan string, events chan<- event, strategies []strategy.Strategy) {
	for symbol := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		events <- event{kind: eventClaimed, symbol: symbol}
		out := c.process(ctx, symbol, strategies)
		events <- event{kind: eventFinished, symbol: symbol, outcome: out}

		c.logger.WithFields(map[string]interface{}{
			"worker": workerID,
			"symbol": symbol,
			"status": out.status,
		}).Debug("Symbol processed")
	}
}

// process runs fetch → analyze for one claimed symbol. A claimed symbol is
// allowed to finish its own retry schedule even when the batch deadline
// fires, so the fetch context is detached from cancellation.
func (c *Coordinator) process(ctx context.Context, symbol string, strategies []strategy.Strategy) *outcome {
	series, err := c.fetcher.Fetch(context.WithoutCancel(ctx), symbol)
	if err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Error("Symbol failed")
		return &outcome{status: StatusFailed, failure: err.Error()}
	}

	verdicts := c.runner.Run(symbol, series, strategies)
	return &outcome{status: StatusDone, verdicts: verdicts, degraded: series.Stale}
}
