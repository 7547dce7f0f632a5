package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"timelens/internal/domain"
)

// ResultRepositoryPG persists generation outcomes in PostgreSQL. It backs the
// completion hook in production; development environments use the filesystem
// archive instead.
type ResultRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewResultRepository constructs a new result repository instance.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepositoryPG {
	return &ResultRepositoryPG{pool: pool}
}

// SaveResult upserts the terminal record for a run.
func (r *ResultRepositoryPG) SaveResult(ctx context.Context, job domain.GenerationJob, result domain.GenerationResult) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO generation_results (run_id, user_id, capability, preset_id, state, backend, output_url, reason, fallback_used, parent_id, group_key)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (run_id) DO UPDATE SET
  state = EXCLUDED.state,
  backend = EXCLUDED.backend,
  output_url = EXCLUDED.output_url,
  reason = EXCLUDED.reason,
  fallback_used = EXCLUDED.fallback_used,
  updated_at = now();
`, job.RunID, job.UserID, string(job.Capability), job.PresetID, string(result.State),
		result.Backend, result.OutputURL, result.Reason, result.FallbackUsed, job.ParentID, job.Group)
	return err
}

// GetByRunID loads one stored result.
func (r *ResultRepositoryPG) GetByRunID(ctx context.Context, runID string) (*domain.GenerationResult, error) {
	var (
		result domain.GenerationResult
		state  string
	)
	err := r.pool.QueryRow(ctx, `
SELECT run_id, state, backend, output_url, reason, fallback_used
FROM generation_results
WHERE run_id = $1;
`, runID).Scan(&result.RunID, &state, &result.Backend, &result.OutputURL, &result.Reason, &result.FallbackUsed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	result.State = domain.ResultState(state)
	return &result, nil
}

// ListByUser returns the user's stored results, newest first.
func (r *ResultRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.GenerationResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
SELECT run_id, state, backend, output_url, reason, fallback_used
FROM generation_results
WHERE user_id = $1
ORDER BY updated_at DESC
LIMIT $2;
`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.GenerationResult
	for rows.Next() {
		var (
			result domain.GenerationResult
			state  string
		)
		if err := rows.Scan(&result.RunID, &state, &result.Backend, &result.OutputURL, &result.Reason, &result.FallbackUsed); err != nil {
			return nil, err
		}
		result.State = domain.ResultState(state)
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
