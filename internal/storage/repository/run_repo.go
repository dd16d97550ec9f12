package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ramonehamilton/NMJL-Companion/internal/storage/models"
)

// RunRepository stores the analysis run log.
type RunRepository interface {
	// Create records a completed run.
	Create(ctx context.Context, run *models.AnalysisRun) error

	// Recent returns the newest runs first.
	Recent(ctx context.Context, limit int) ([]*models.AnalysisRun, error)

	// Summary aggregates runs created at or after since, with the top
	// patterns ranked by how often they came first.
	Summary(ctx context.Context, since time.Time, topPatterns int) (*models.RunSummary, error)

	// DeleteBefore prunes runs older than cutoff and returns the count removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type runRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sql.DB) RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) Create(ctx context.Context, run *models.AnalysisRun) error {
	// Timestamps are stored as UTC text so range filters compare in order.
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO analysis_runs (
			run_id, session_id, hand_signature, top_pattern_id, top_score, top_tier,
			viable, cache_hit, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID, run.SessionID, run.HandSignature, run.TopPatternID, run.TopScore, run.TopTier,
		run.Viable, run.CacheHit, run.DurationMS, run.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis run %s: %w", run.RunID, err)
	}
	return nil
}

func (r *runRepository) Recent(ctx context.Context, limit int) ([]*models.AnalysisRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, session_id, hand_signature, top_pattern_id, top_score, top_tier,
			viable, cache_hit, duration_ms, created_at
		FROM analysis_runs
		ORDER BY created_at DESC, run_id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var runs []*models.AnalysisRun
	for rows.Next() {
		run := &models.AnalysisRun{}
		err := rows.Scan(
			&run.RunID, &run.SessionID, &run.HandSignature, &run.TopPatternID, &run.TopScore, &run.TopTier,
			&run.Viable, &run.CacheHit, &run.DurationMS, &run.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analysis runs: %w", err)
	}
	return runs, nil
}

func (r *runRepository) Summary(ctx context.Context, since time.Time, topPatterns int) (*models.RunSummary, error) {
	summary := &models.RunSummary{}
	var avg sql.NullFloat64
	var hits sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(cache_hit), AVG(duration_ms)
		FROM analysis_runs
		WHERE created_at >= ?
	`, since.UTC()).Scan(&summary.Runs, &hits, &avg)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize analysis runs: %w", err)
	}
	summary.CacheHits = int(hits.Int64)
	summary.AvgDurationMS = avg.Float64

	if topPatterns <= 0 {
		return summary, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT top_pattern_id, COUNT(*) AS runs, AVG(top_score)
		FROM analysis_runs
		WHERE created_at >= ? AND top_pattern_id != ''
		GROUP BY top_pattern_id
		ORDER BY runs DESC, top_pattern_id
		LIMIT ?
	`, since.UTC(), topPatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to query top patterns: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var f models.PatternFrequency
		if err := rows.Scan(&f.PatternID, &f.Runs, &f.AvgScore); err != nil {
			return nil, fmt.Errorf("failed to scan pattern frequency: %w", err)
		}
		summary.TopPatterns = append(summary.TopPatterns, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating top patterns: %w", err)
	}
	return summary, nil
}

func (r *runRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM analysis_runs WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune analysis runs: %w", err)
	}
	return result.RowsAffected()
}
