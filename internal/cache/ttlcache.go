// Package cache implements the prediction result cache: a TTL store with
// single-flight computation per key. Expiry is lazy (checked on access); a
// separate sweeper bounds peak memory between accesses.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/satyarajmoily/market-predictor/pkg/logger"
)

// Clock supplies the cache's notion of time. The default uses time.Now,
// whose readings carry a monotonic component, so entries survive wall-clock
// adjustments. Tests inject a fake.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Outcome classifies how a lookup was served.
type Outcome string

const (
	// OutcomeHit means a live entry was returned without computing.
	OutcomeHit Outcome = "hit"
	// OutcomeMiss means this caller executed the computation.
	OutcomeMiss Outcome = "miss"
	// OutcomeCoalesced means the caller joined a computation already in
	// flight and shared its result.
	OutcomeCoalesced Outcome = "coalesced"
	// OutcomeError means the lookup surfaced an error.
	OutcomeError Outcome = "error"
)

// ComputeFunc produces the value for a key on a miss.
type ComputeFunc func(ctx context.Context) (interface{}, error)

// Options configures a Cache.
type Options struct {
	// MaxEntries bounds the stored entry count. Zero means 1024.
	MaxEntries int
	// ComputeTimeout bounds each ComputeFunc invocation. Zero disables it.
	ComputeTimeout time.Duration
	Clock          Clock
	Log            *logger.Logger
}

type entry struct {
	value     interface{}
	expiresAt time.Time
	seq       uint64 // last-access order; lowest evicts first
}

type flight struct {
	done  chan struct{}
	value interface{}
	err   error
}

// Cache is a concurrency-safe TTL store. For any key at most one
// computation is ever in flight; concurrent callers for that key block until
// it publishes and share its result or error. Errors are never stored.
type Cache struct {
	mu             sync.Mutex
	clock          Clock
	maxEntries     int
	computeTimeout time.Duration
	log            *logger.Logger

	seq     uint64
	entries map[string]*entry
	flights map[string]*flight
}

// New creates an empty cache.
func New(opts Options) *Cache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 1024
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Log == nil {
		opts.Log = logger.NewDefault("cache")
	}
	return &Cache{
		clock:          opts.Clock,
		maxEntries:     opts.MaxEntries,
		computeTimeout: opts.ComputeTimeout,
		log:            opts.Log,
		entries:        make(map[string]*entry),
		flights:        make(map[string]*flight),
	}
}

// GetOrCompute returns the live value for key, or computes it. The caller
// that finds neither a live entry nor an in-flight computation becomes the
// sole executor; everyone else blocks on the shared flight. A caller whose
// context is cancelled while waiting returns early, but the computation
// keeps running for the remaining waiters and the cache.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, fn ComputeFunc) (interface{}, Outcome, error) {
	c.mu.Lock()
	now := c.clock.Now()
	if e, ok := c.entries[key]; ok && now.Before(e.expiresAt) {
		c.seq++
		e.seq = c.seq
		value := e.value
		c.mu.Unlock()
		return value, OutcomeHit, nil
	}

	if f, ok := c.flights[key]; ok {
		c.mu.Unlock()
		select {
		case <-f.done:
			if f.err != nil {
				return nil, OutcomeError, f.err
			}
			return f.value, OutcomeCoalesced, nil
		case <-ctx.Done():
			return nil, OutcomeError, ctx.Err()
		}
	}

	f := &flight{done: make(chan struct{})}
	c.flights[key] = f
	c.mu.Unlock()

	go c.execute(key, ttl, fn, f)

	select {
	case <-f.done:
		if f.err != nil {
			return nil, OutcomeError, f.err
		}
		return f.value, OutcomeMiss, nil
	case <-ctx.Done():
		return nil, OutcomeError, ctx.Err()
	}
}

// execute runs the computation detached from any caller context so a client
// disconnect cannot abandon waiters still blocked on the flight.
func (c *Cache) execute(key string, ttl time.Duration, fn ComputeFunc, f *flight) {
	ctx := context.Background()
	cancel := func() {}
	if c.computeTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.computeTimeout)
	}
	defer cancel()

	value, err := fn(ctx)

	c.mu.Lock()
	delete(c.flights, key)
	if err == nil {
		now := c.clock.Now()
		c.seq++
		c.entries[key] = &entry{value: value, expiresAt: now.Add(ttl), seq: c.seq}
		c.evictLocked(now)
	}
	c.mu.Unlock()

	f.value = value
	f.err = err
	close(f.done)
}

// evictLocked enforces the capacity bound: least-recently-used expired
// entries go first, then least-recently-used live entries. Access sequence
// numbers make the ordering deterministic.
func (c *Cache) evictLocked(now time.Time) {
	for len(c.entries) > c.maxEntries {
		victim := ""
		victimSeq := uint64(0)
		expiredOnly := false
		for k, e := range c.entries {
			expired := !now.Before(e.expiresAt)
			switch {
			case expired && !expiredOnly:
				victim, victimSeq, expiredOnly = k, e.seq, true
			case expired == expiredOnly && (victim == "" || e.seq < victimSeq):
				victim, victimSeq = k, e.seq
			}
		}
		if victim == "" {
			return
		}
		delete(c.entries, victim)
		c.log.WithField("key", victim).Debug("evicted cache entry")
	}
}

// RemoveExpired drops every expired entry and reports how many were removed.
// Called by the periodic sweeper.
func (c *Cache) RemoveExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len reports the stored entry count, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
