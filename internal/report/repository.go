package report

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linhao/stockscan/pkg/logger"
)

// Repository persists scan reports to Postgres
// ⭐ SSOT: 스캔 결과 저장/조회는 여기서만
type Repository struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewRepository creates a report repository and ensures its tables exist.
func NewRepository(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger) (*Repository, error) {
	r := &Repository{
		pool:   pool,
		logger: log.WithField("module", "report_repo"),
	}
	if err := r.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure report schema: %w", err)
	}
	return r, nil
}

func (r *Repository) ensureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS scan_runs (
			run_id       TEXT PRIMARY KEY,
			generated_at TIMESTAMPTZ NOT NULL,
			universe     INT NOT NULL,
			done         INT NOT NULL,
			failed       INT NOT NULL,
			pending      INT NOT NULL,
			triggered    INT NOT NULL,
			degraded     INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scan_verdicts (
			run_id    TEXT NOT NULL REFERENCES scan_runs(run_id) ON DELETE CASCADE,
			symbol    TEXT NOT NULL,
			strategy  TEXT NOT NULL,
			triggered BOOLEAN NOT NULL,
			degraded  BOOLEAN NOT NULL,
			detail    TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, symbol, strategy)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_verdicts_triggered
			ON scan_verdicts (run_id, triggered)`,
	}

	for _, stmt := range ddl {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Archive stores a report. Re-archiving the same run replaces it, so the
// operation is safe to repeat after a partial failure.
func (r *Repository) Archive(ctx context.Context, rep *Report) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM scan_runs WHERE run_id = $1`, rep.RunID); err != nil {
		return fmt.Errorf("clear previous archive: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO scan_runs (run_id, generated_at, universe, done, failed, pending, triggered, degraded)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rep.RunID, rep.GeneratedAt, rep.Universe, rep.Done, rep.Failed, rep.Pending, rep.Triggered, rep.Degraded,
	)
	if err != nil {
		return fmt.Errorf("insert scan run: %w", err)
	}

	// One batched round trip for all verdict rows.
	b := &pgx.Batch{}
	rows := 0
	for _, res := range rep.Results {
		for _, v := range res.Verdicts {
			b.Queue(`
				INSERT INTO scan_verdicts (run_id, symbol, strategy, triggered, degraded, detail)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				rep.RunID, res.Symbol, v.Strategy, v.Triggered, res.Degraded, v.Detail,
			)
			rows++
		}
	}
	if rows > 0 {
		br := tx.SendBatch(ctx, b)
		for i := 0; i < rows; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert verdict row: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close verdict batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"run_id":   rep.RunID,
		"verdicts": rows,
	}).Info("Scan report archived")

	return nil
}

// RecentRuns returns the latest archived run summaries.
func (r *Repository) RecentRuns(ctx context.Context, limit int) ([]Report, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT run_id, generated_at, universe, done, failed, pending, triggered, degraded
		FROM scan_runs
		ORDER BY generated_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scan runs: %w", err)
	}
	defer rows.Close()

	reports := make([]Report, 0, limit)
	for rows.Next() {
		var rep Report
		var generatedAt time.Time
		if err := rows.Scan(&rep.RunID, &generatedAt, &rep.Universe, &rep.Done,
			&rep.Failed, &rep.Pending, &rep.Triggered, &rep.Degraded); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		rep.GeneratedAt = generatedAt
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}
