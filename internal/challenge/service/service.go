package service

import (
	"context"
	"errors"
	"time"

	"daily-trivia/internal/cache"
	"daily-trivia/internal/challenge/domain"
)

// CacheKey is the single cache slot for "today's challenge". It does not include the date;
// entries expire well inside a calendar day.
const CacheKey = "daily-challenge"

// DefaultCacheTTL is how long a fetched challenge is reused when none is configured.
const DefaultCacheTTL = 300 * time.Second

// ErrNotFound is returned when the store holds no challenge for today. It is not a failure.
var ErrNotFound = errors.New("no challenge found for today")

// Service serves today's challenge through a process-wide cache in front of the Accessor.
type Service struct {
	accessor *Accessor
	cache    *cache.Cache[*domain.Challenge]
}

// Options configures the challenge cache.
type Options struct {
	// CacheTTL is how long a successful lookup (including "not found") is reused. Defaults to 300s.
	CacheTTL time.Duration
	// CacheErrorTTL is how long a failed lookup is reused. Zero keeps failures out of the cache.
	CacheErrorTTL time.Duration
	// Now overrides the cache clock.
	Now func() time.Time
}

// New returns a Service that caches accessor results.
func New(accessor *Accessor, opts Options) *Service {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{
		accessor: accessor,
		cache: cache.New[*domain.Challenge](cache.Options{
			Name:     "daily_challenge",
			TTL:      ttl,
			ErrorTTL: opts.CacheErrorTTL,
			Now:      opts.Now,
		}),
	}
}

// Today returns today's challenge, or nil if none exists. Within the cache window the store is not queried.
func (s *Service) Today(ctx context.Context) (*domain.Challenge, error) {
	return s.cache.Get(ctx, CacheKey, s.accessor.FetchToday)
}

// TodayPublic returns today's challenge shaped for clients in lang. Returns ErrNotFound when none exists.
func (s *Service) TodayPublic(ctx context.Context, lang string) (*domain.PublicChallenge, error) {
	c, err := s.Today(ctx)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	p := c.Public(lang)
	return &p, nil
}

// Refresh drops the cached challenge so the next request queries the store.
func (s *Service) Refresh() {
	s.cache.Invalidate(CacheKey)
}
