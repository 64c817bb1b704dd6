package repository

import (
	"context"
	"errors"
	"time"

	"minimal-user/internal/domain"
)

var (
	// ErrUserNotFound is returned when no user row matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAlreadyExists is returned when the username unique constraint is violated.
	ErrUserAlreadyExists = errors.New("user already exists")
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	// FindByUsername runs the parameterized lookup and returns nil, nil when no row matches.
	FindByUsername(ctx context.Context, username string) (*domain.UserSummary, error)
}

// RateLimitRepository stores per-key request hits for the rate limiter.
type RateLimitRepository interface {
	Init(ctx context.Context) error
	// Hit records a hit for key at now and returns the number of hits since now-window, including this one.
	Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int, error)
	Prune(ctx context.Context, before time.Time) error
}
