package jobs

import (
	"context"
	"fmt"

	"github.com/linhao/stockscan/internal/batch"
	"github.com/linhao/stockscan/internal/report"
	"github.com/linhao/stockscan/internal/strategy"
	"github.com/linhao/stockscan/internal/universe"
	"github.com/linhao/stockscan/pkg/logger"
)

// Archiver persists a finished scan report.
type Archiver interface {
	Archive(ctx context.Context, rep *report.Report) error
}

// ScanJob runs the nightly full-universe scan
// ⭐ SSOT: 야간 스캔 스케줄은 이 Job에서만
type ScanJob struct {
	loader      *universe.Loader
	coordinator *batch.Coordinator
	strategies  []strategy.Strategy
	archiver    Archiver // nil when no database is configured
	schedule    string
	logger      *logger.Logger
}

// NewScanJob creates the nightly scan job.
func NewScanJob(loader *universe.Loader, coordinator *batch.Coordinator, strategies []strategy.Strategy, archiver Archiver, schedule string, log *logger.Logger) *ScanJob {
	return &ScanJob{
		loader:      loader,
		coordinator: coordinator,
		strategies:  strategies,
		archiver:    archiver,
		schedule:    schedule,
		logger:      log.WithField("job", "nightly_scan"),
	}
}

// Name returns the job name.
func (j *ScanJob) Name() string {
	return "nightly_scan"
}

// Schedule returns the cron schedule expression.
func (j *ScanJob) Schedule() string {
	return j.schedule
}

// Run builds the universe, scans it, and archives the report.
func (j *ScanJob) Run(ctx context.Context) error {
	u, err := j.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}

	run, err := j.coordinator.Run(ctx, u.Symbols, j.strategies, "")
	if err != nil {
		return fmt.Errorf("scan run: %w", err)
	}

	rep := report.Build(run)
	j.logger.WithFields(map[string]interface{}{
		"run_id":    rep.RunID,
		"universe":  rep.Universe,
		"done":      rep.Done,
		"failed":    rep.Failed,
		"triggered": rep.Triggered,
	}).Info("Nightly scan finished")

	if j.archiver != nil {
		if err := j.archiver.Archive(ctx, rep); err != nil {
			return fmt.Errorf("archive report: %w", err)
		}
	}

	return nil
}
