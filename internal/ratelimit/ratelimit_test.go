package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(store Store) (*Limiter, *clock) {
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(store, 5, time.Minute)
	l.now = c.Now
	return l, c
}

func TestLimiter_SixthHitWithinWindowIsBlocked(t *testing.T) {
	ctx := context.Background()
	l, c := newTestLimiter(NewMemoryStore())

	for i := 0; i < 5; i++ {
		ok, err := l.Allow(ctx, "login", "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "hit %d should pass", i+1)
		c.Advance(10 * time.Second)
	}

	// 50s after the first hit
	ok, err := l.Allow(ctx, "login", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLimiter_KeysAndScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(NewMemoryStore())

	for i := 0; i < 5; i++ {
		_, err := l.Allow(ctx, "login", "10.0.0.1")
		require.NoError(t, err)
	}

	ok, err := l.Allow(ctx, "login", "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Allow(ctx, "register", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Allow(ctx, "login", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLimiter_WindowSlides(t *testing.T) {
	ctx := context.Background()
	l, c := newTestLimiter(NewMemoryStore())

	for i := 0; i < 5; i++ {
		_, err := l.Allow(ctx, "login", "10.0.0.1")
		require.NoError(t, err)
	}

	c.Advance(61 * time.Second)
	ok, err := l.Allow(ctx, "login", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Time, time.Duration) (int, error) {
	return 0, errors.New("store down")
}

func TestLimiter_StoreErrorPropagates(t *testing.T) {
	l, _ := newTestLimiter(failingStore{})

	ok, err := l.Allow(context.Background(), "login", "10.0.0.1")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_Prune(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	_, _ = s.Hit(ctx, "old", now.Add(-2*time.Minute), time.Minute)
	_, _ = s.Hit(ctx, "fresh", now, time.Minute)

	require.NoError(t, s.Prune(ctx, now.Add(-time.Minute)))
	assert.NotContains(t, s.hits, "old")
	assert.Contains(t, s.hits, "fresh")
}
