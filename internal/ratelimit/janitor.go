package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type JanitorConfig struct {
	// Interval between prune runs; defaults to Retention.
	Interval time.Duration
	// Retention is how long hits are kept, normally the limiter window.
	Retention time.Duration
	Logger    logrus.FieldLogger
}

// Janitor periodically removes hits that can no longer affect a quota.
type Janitor struct {
	cfg    JanitorConfig
	pruner Pruner
	now    func() time.Time

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewJanitor(pruner Pruner, cfg JanitorConfig) *Janitor {
	if cfg.Retention <= 0 {
		cfg.Retention = time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = cfg.Retention
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Janitor{
		cfg:    cfg,
		pruner: pruner,
		now:    time.Now,
	}
}

// Start runs the prune loop until ctx is done or Shutdown is called.
func (j *Janitor) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(j.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := j.PruneOnce(ctx); err != nil && ctx.Err() == nil {
					j.cfg.Logger.WithError(err).Warn("prune rate limit hits")
				}
			}
		}
	}()
	j.cfg.Logger.Infof("rate limit janitor started, interval: %s", j.cfg.Interval)
}

func (j *Janitor) Shutdown() {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
}

func (j *Janitor) PruneOnce(ctx context.Context) error {
	return j.pruner.Prune(ctx, j.now().Add(-j.cfg.Retention))
}
