package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"minimal-user/internal/repository"
)

const lockRateLimitKey = `SELECT pg_advisory_xact_lock(hashtext(?))`

type rateLimitHit struct {
	ID    int64     `gorm:"primaryKey;autoIncrement"`
	Key   string    `gorm:"not null;index:idx_rate_limit_hits_key_hit_at,priority:1"`
	HitAt time.Time `gorm:"not null;index:idx_rate_limit_hits_key_hit_at,priority:2"`
}

func (rateLimitHit) TableName() string { return "rate_limit_hits" }

// RateLimitRepository keeps the rate limiter's hit log in PostgreSQL.
type RateLimitRepository struct {
	db *gorm.DB
}

func NewRateLimitRepository(db *gorm.DB) repository.RateLimitRepository {
	return &RateLimitRepository{db: db}
}

func (r *RateLimitRepository) Init(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&rateLimitHit{}); err != nil {
		return fmt.Errorf("failed to migrate rate limit table: %w", err)
	}
	return nil
}

func (r *RateLimitRepository) Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// serialize concurrent hits on one key until commit
		if err := tx.Exec(lockRateLimitKey, key).Error; err != nil {
			return fmt.Errorf("lock rate limit key: %w", err)
		}
		if err := tx.Create(&rateLimitHit{Key: key, HitAt: now}).Error; err != nil {
			return fmt.Errorf("insert rate limit hit: %w", err)
		}
		return tx.Model(&rateLimitHit{}).
			Where("key = ? AND hit_at > ?", key, now.Add(-window)).
			Count(&count).Error
	})
	if err != nil {
		return 0, fmt.Errorf("record rate limit hit: %w", err)
	}
	return int(count), nil
}

func (r *RateLimitRepository) Prune(ctx context.Context, before time.Time) error {
	if err := r.db.WithContext(ctx).Where("hit_at <= ?", before).Delete(&rateLimitHit{}).Error; err != nil {
		return fmt.Errorf("prune rate limit hits: %w", err)
	}
	return nil
}
