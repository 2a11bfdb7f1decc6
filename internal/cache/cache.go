// Package cache provides an in-process keyed cache with per-entry expiry and coalesced loads.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/singleflight"
)

// Loader produces the value for a key on a miss. Its result, success or failure, becomes the key's new state.
type Loader[V any] func(ctx context.Context) (V, error)

// Options configures a Cache.
type Options struct {
	// Name labels the cache in metrics (e.g. "daily_challenge").
	Name string
	// TTL is how long a successful load is served, measured from when it was stored.
	TTL time.Duration
	// ErrorTTL is how long a failed load is served. Zero means failures are shared only with
	// callers already waiting on the same load and are not stored.
	ErrorTTL time.Duration
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
	// Meter records hit/miss counters; defaults to the global MeterProvider.
	Meter metric.Meter
}

type entry[V any] struct {
	value     V
	err       error
	expiresAt time.Time
}

// Cache memoizes Loader results per key. At most one load per key runs at a time;
// concurrent callers for the same key wait for and share its result.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	gens    map[string]uint64

	group    singleflight.Group
	ttl      time.Duration
	errorTTL time.Duration
	nowF     func() time.Time

	name     string
	requests metric.Int64Counter
}

// New returns an empty cache.
func New[V any](opts Options) *Cache[V] {
	c := &Cache[V]{
		entries:  make(map[string]entry[V]),
		gens:     make(map[string]uint64),
		ttl:      opts.TTL,
		errorTTL: opts.ErrorTTL,
		nowF:     opts.Now,
		name:     opts.Name,
	}
	if c.nowF == nil {
		c.nowF = time.Now
	}
	meter := opts.Meter
	if meter == nil {
		meter = otel.Meter("daily-trivia/cache")
	}
	counter, err := meter.Int64Counter("cache.requests",
		metric.WithDescription("Cache lookups by result (hit, miss, coalesced)."))
	if err != nil {
		counter, _ = noop.NewMeterProvider().Meter("").Int64Counter("cache.requests")
	}
	c.requests = counter
	return c
}

// Get returns the cached state for key, calling load when the key is missing or expired.
// The load runs detached from ctx cancellation so other waiters are not failed by one caller leaving;
// ctx only bounds how long this caller waits.
func (c *Cache[V]) Get(ctx context.Context, key string, load Loader[V]) (V, error) {
	if e, ok := c.lookup(key); ok {
		c.record(ctx, "hit")
		return e.value, e.err
	}

	c.mu.RLock()
	gen := c.gens[key]
	c.mu.RUnlock()

	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		if e, ok := c.lookup(key); ok {
			return e.value, e.err
		}
		v, err := load(flightCtx)
		c.store(key, gen, v, err)
		return v, err
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.record(ctx, "coalesced")
		} else {
			c.record(ctx, "miss")
		}
		v, _ := res.Val.(V)
		return v, res.Err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Invalidate drops key. A load already in flight for key will not write its result back.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.gens[key]++
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[V]) lookup(key string) (entry[V], bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.nowF().Before(e.expiresAt) {
		return entry[V]{}, false
	}
	return e, true
}

func (c *Cache[V]) store(key string, gen uint64, v V, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return
	}
	if err != nil && c.errorTTL <= 0 {
		delete(c.entries, key)
		return
	}
	ttl := c.ttl
	if err != nil {
		ttl = c.errorTTL
	}
	c.entries[key] = entry[V]{value: v, err: err, expiresAt: c.nowF().Add(ttl)}
}

func (c *Cache[V]) record(ctx context.Context, result string) {
	c.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", c.name),
		attribute.String("result", result),
	))
}
