package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository on PostgreSQL
// ⭐ SSOT: 백테스트 결과 저장은 여기서만
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a repository backed by the given pool
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the result tables when missing
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE SCHEMA IF NOT EXISTS oneway;

		CREATE TABLE IF NOT EXISTS oneway.runs (
			id            TEXT PRIMARY KEY,
			created_at    TIMESTAMPTZ NOT NULL,
			start_date    TIMESTAMPTZ NOT NULL,
			end_date      TIMESTAMPTZ NOT NULL,
			lower_bound   DOUBLE PRECISION NOT NULL,
			upper_bound   DOUBLE PRECISION NOT NULL,
			lambda        DOUBLE PRECISION NOT NULL,
			oracle        TEXT NOT NULL,
			episode_count INTEGER NOT NULL,
			total_profit  DOUBLE PRECISION NOT NULL,
			mean_ratio    DOUBLE PRECISION NOT NULL,
			worst_ratio   DOUBLE PRECISION NOT NULL,
			duration_ms   BIGINT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS oneway.episodes (
			run_id           TEXT NOT NULL REFERENCES oneway.runs(id) ON DELETE CASCADE,
			idx              INTEGER NOT NULL,
			week_start       TIMESTAMPTZ NOT NULL,
			steps            INTEGER NOT NULL,
			profit           DOUBLE PRECISION NOT NULL,
			optimum          DOUBLE PRECISION NOT NULL,
			ratio            DOUBLE PRECISION NOT NULL,
			prediction       DOUBLE PRECISION,
			solver_fallbacks INTEGER NOT NULL,
			PRIMARY KEY (run_id, idx)
		);
	`

	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveRun stores a run and its episodes in one transaction
func (r *PostgresRepository) SaveRun(ctx context.Context, run *Run, episodes []EpisodeResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const runQuery = `
		INSERT INTO oneway.runs (
			id, created_at, start_date, end_date,
			lower_bound, upper_bound, lambda, oracle,
			episode_count, total_profit, mean_ratio, worst_ratio, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			episode_count = EXCLUDED.episode_count,
			total_profit  = EXCLUDED.total_profit,
			mean_ratio    = EXCLUDED.mean_ratio,
			worst_ratio   = EXCLUDED.worst_ratio,
			duration_ms   = EXCLUDED.duration_ms
	`

	_, err = tx.Exec(ctx, runQuery,
		run.ID, run.CreatedAt, run.StartDate, run.EndDate,
		run.LowerBound, run.UpperBound, run.Lambda, run.Oracle,
		run.EpisodeCount, run.TotalProfit, run.MeanRatio, run.WorstRatio,
		run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	const episodeQuery = `
		INSERT INTO oneway.episodes (
			run_id, idx, week_start, steps, profit, optimum, ratio, prediction, solver_fallbacks
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id, idx) DO UPDATE SET
			profit           = EXCLUDED.profit,
			optimum          = EXCLUDED.optimum,
			ratio            = EXCLUDED.ratio,
			prediction       = EXCLUDED.prediction,
			solver_fallbacks = EXCLUDED.solver_fallbacks
	`

	for _, ep := range episodes {
		_, err := tx.Exec(ctx, episodeQuery,
			run.ID, ep.Index, ep.WeekStart, ep.Steps,
			ep.Profit, ep.Optimum, ep.Ratio, ep.Prediction, ep.SolverFallbacks,
		)
		if err != nil {
			return fmt.Errorf("insert episode %d: %w", ep.Index, err)
		}
	}

	return tx.Commit(ctx)
}

// ListRuns returns runs newest-first
func (r *PostgresRepository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `
		SELECT id, created_at, start_date, end_date,
		       lower_bound, upper_bound, lambda, oracle,
		       episode_count, total_profit, mean_ratio, worst_ratio, duration_ms
		FROM oneway.runs
		ORDER BY created_at DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run by ID
func (r *PostgresRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	const query = `
		SELECT id, created_at, start_date, end_date,
		       lower_bound, upper_bound, lambda, oracle,
		       episode_count, total_profit, mean_ratio, worst_ratio, duration_ms
		FROM oneway.runs
		WHERE id = $1
	`

	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetEpisodes returns the per-episode outcomes of a run in order
func (r *PostgresRepository) GetEpisodes(ctx context.Context, runID string) ([]EpisodeResult, error) {
	const query = `
		SELECT run_id, idx, week_start, steps, profit, optimum, ratio, prediction, solver_fallbacks
		FROM oneway.episodes
		WHERE run_id = $1
		ORDER BY idx ASC
	`

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var episodes []EpisodeResult
	for rows.Next() {
		var ep EpisodeResult
		if err := rows.Scan(
			&ep.RunID, &ep.Index, &ep.WeekStart, &ep.Steps,
			&ep.Profit, &ep.Optimum, &ep.Ratio, &ep.Prediction, &ep.SolverFallbacks,
		); err != nil {
			return nil, err
		}
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

func scanRun(row pgx.Row) (*Run, error) {
	var run Run
	var durationMs int64
	if err := row.Scan(
		&run.ID, &run.CreatedAt, &run.StartDate, &run.EndDate,
		&run.LowerBound, &run.UpperBound, &run.Lambda, &run.Oracle,
		&run.EpisodeCount, &run.TotalProfit, &run.MeanRatio, &run.WorstRatio,
		&durationMs,
	); err != nil {
		return nil, err
	}
	run.Duration = time.Duration(durationMs) * time.Millisecond
	return &run, nil
}
