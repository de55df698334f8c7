package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/satyarajmoily/market-predictor/internal/system"
	"github.com/satyarajmoily/market-predictor/pkg/logger"
)

var _ system.Service = (*Sweeper)(nil)

// Sweeper periodically removes expired entries so memory stays bounded even
// when keys stop being accessed. Lazy expiry keeps the cache correct without
// it; the sweeper only caps peak memory.
type Sweeper struct {
	cache    *Cache
	schedule string
	log      *logger.Logger

	mu      sync.Mutex
	runner  *cron.Cron
	running bool
}

// NewSweeper creates a sweeper driven by a cron schedule such as
// "@every 1m".
func NewSweeper(cache *Cache, schedule string, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.NewDefault("cache-sweeper")
	}
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &Sweeper{cache: cache, schedule: schedule, log: log}
}

func (s *Sweeper) Name() string { return "cache-sweeper" }

func (s *Sweeper) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	runner := cron.New()
	if _, err := runner.AddFunc(s.schedule, s.sweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	runner.Start()

	s.runner = runner
	s.running = true
	s.log.WithField("schedule", s.schedule).Info("cache sweeper started")
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	runner := s.runner
	s.runner = nil
	s.running = false
	s.mu.Unlock()

	stopped := runner.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("cache sweeper stopped")
	return nil
}

func (s *Sweeper) sweep() {
	removed := s.cache.RemoveExpired()
	if removed > 0 {
		s.log.WithField("removed", removed).Debug("cache sweep completed")
	}
}
