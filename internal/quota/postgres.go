package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store backed by PostgreSQL. Per-user records live
// in quota_records; the global capacity pool is a single-row counter updated
// atomically so concurrent workers cannot overdraw it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (Record, error) {
	row := s.pool.QueryRow(ctx, `
SELECT user_id, daily_usage, weekly_usage, total_usage, last_daily_reset, last_weekly_reset, last_generation
FROM quota_records
WHERE user_id = $1`, userID)

	var rec Record
	var lastGen *time.Time
	if err := row.Scan(&rec.UserID, &rec.DailyUsage, &rec.WeeklyUsage, &rec.TotalUsage,
		&rec.LastDailyReset, &rec.LastWeeklyReset, &lastGen); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{UserID: userID}, nil
		}
		return Record{}, fmt.Errorf("select quota record: %w", err)
	}
	if lastGen != nil {
		rec.LastGeneration = *lastGen
	}
	return rec, nil
}

func (s *PostgresStore) Put(ctx context.Context, rec Record) error {
	var lastGen *time.Time
	if !rec.LastGeneration.IsZero() {
		lastGen = &rec.LastGeneration
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO quota_records (user_id, daily_usage, weekly_usage, total_usage, last_daily_reset, last_weekly_reset, last_generation)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id) DO UPDATE
SET daily_usage = EXCLUDED.daily_usage,
    weekly_usage = EXCLUDED.weekly_usage,
    total_usage = EXCLUDED.total_usage,
    last_daily_reset = EXCLUDED.last_daily_reset,
    last_weekly_reset = EXCLUDED.last_weekly_reset,
    last_generation = EXCLUDED.last_generation,
    updated_at = NOW()`,
		rec.UserID, rec.DailyUsage, rec.WeeklyUsage, rec.TotalUsage,
		rec.LastDailyReset, rec.LastWeeklyReset, lastGen)
	if err != nil {
		return fmt.Errorf("upsert quota record: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemainingCapacity(ctx context.Context) (int, error) {
	row := s.pool.QueryRow(ctx, `SELECT remaining FROM capacity_pool WHERE id = 1`)
	var remaining int
	if err := row.Scan(&remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("select capacity: %w", err)
	}
	return remaining, nil
}

func (s *PostgresStore) ConsumeCapacity(ctx context.Context, units int) error {
	_, err := s.pool.Exec(ctx, `
UPDATE capacity_pool
SET remaining = GREATEST(remaining - $1, 0), updated_at = NOW()
WHERE id = 1`, units)
	if err != nil {
		return fmt.Errorf("consume capacity: %w", err)
	}
	return nil
}

func (s *PostgresStore) ResetExpired(ctx context.Context, boundary time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
UPDATE quota_records
SET daily_usage = 0, last_daily_reset = $1, updated_at = NOW()
WHERE daily_usage > 0 AND last_daily_reset < $1`, boundary)
	if err != nil {
		return 0, fmt.Errorf("reset expired records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

var _ Store = (*PostgresStore)(nil)
