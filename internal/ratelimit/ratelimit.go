// Package ratelimit enforces "N hits per window per key" quotas.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store records hits and reports how many fall inside the window ending at now.
type Store interface {
	Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int, error)
}

// Pruner is implemented by stores that need old hits removed.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) error
}

// Limiter allows at most limit hits per key in any window-long interval.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

func New(store Store, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *Limiter) Limit() int { return l.limit }

func (l *Limiter) Window() time.Duration { return l.window }

// Allow counts a hit for scope/key and reports whether it is within quota.
// Blocked hits are counted too.
func (l *Limiter) Allow(ctx context.Context, scope, key string) (bool, error) {
	count, err := l.store.Hit(ctx, scope+":"+key, l.now(), l.window)
	if err != nil {
		return false, fmt.Errorf("record rate limit hit: %w", err)
	}
	return count <= l.limit, nil
}

// MemoryStore keeps hit logs in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hits: make(map[string][]time.Time)}
}

func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	kept := s.hits[key][:0]
	for _, at := range s.hits[key] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	kept = append(kept, now)
	s.hits[key] = kept
	return len(kept), nil
}

func (s *MemoryStore) Prune(_ context.Context, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, hits := range s.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(before) {
			delete(s.hits, key)
		}
	}
	return nil
}
