package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"minimal-user/internal/repository"
)

const createRateLimitTable = `
CREATE TABLE IF NOT EXISTS rate_limit_hits (
	key TEXT NOT NULL,
	hit_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rate_limit_hits_key_hit_at ON rate_limit_hits (key, hit_at);
`

// RateLimitRepository keeps a hit log per key; hit_at is stored as unix nanoseconds.
type RateLimitRepository struct {
	db *sql.DB
}

func NewRateLimitRepository(db *sql.DB) repository.RateLimitRepository {
	return &RateLimitRepository{db: db}
}

func (r *RateLimitRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createRateLimitTable); err != nil {
		return fmt.Errorf("create rate limit table: %w", err)
	}
	return nil
}

func (r *RateLimitRepository) Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin rate limit tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rate_limit_hits (key, hit_at) VALUES (?, ?)`,
		key, now.UnixNano(),
	); err != nil {
		return 0, fmt.Errorf("insert rate limit hit: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rate_limit_hits WHERE key = ? AND hit_at > ?`,
		key, now.Add(-window).UnixNano(),
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rate limit hits: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit rate limit tx: %w", err)
	}
	return count, nil
}

func (r *RateLimitRepository) Prune(ctx context.Context, before time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM rate_limit_hits WHERE hit_at <= ?`,
		before.UnixNano(),
	); err != nil {
		return fmt.Errorf("prune rate limit hits: %w", err)
	}
	return nil
}
