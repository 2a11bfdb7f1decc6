// Package service fetches today's challenge from the store under a time ceiling and caches it.
package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"daily-trivia/internal/challenge/domain"
	"daily-trivia/internal/challenge/repository"
)

// DateLayout is the calendar-date key format used by the store.
const DateLayout = "2006-01-02"

// DefaultStoreTimeout is the lookup ceiling when none is configured.
const DefaultStoreTimeout = 10 * time.Second

// ErrStoreTimeout is returned when the store does not answer within the ceiling.
var ErrStoreTimeout = errors.New("DATABASE_TIMEOUT")

var tracer = otel.Tracer("daily-trivia/challenge")

type lookupResult struct {
	challenge *domain.Challenge
	err       error
}

// Accessor performs a single time-boxed lookup of the challenge for the current calendar day.
type Accessor struct {
	repo     repository.Repository
	timeout  time.Duration
	location *time.Location
	nowF     func() time.Time
	logger   *zap.Logger
	timeouts metric.Int64Counter
}

// AccessorOption customizes an Accessor.
type AccessorOption func(*Accessor)

// WithTimeout sets the lookup ceiling. Non-positive values keep the default.
func WithTimeout(d time.Duration) AccessorOption {
	return func(a *Accessor) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLocation sets the time zone whose calendar day is "today". nil keeps UTC.
func WithLocation(loc *time.Location) AccessorOption {
	return func(a *Accessor) {
		if loc != nil {
			a.location = loc
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) AccessorOption {
	return func(a *Accessor) {
		if now != nil {
			a.nowF = now
		}
	}
}

// WithLogger sets the logger used for timeouts and store failures.
func WithLogger(l *zap.Logger) AccessorOption {
	return func(a *Accessor) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAccessor returns an Accessor reading from repo.
func NewAccessor(repo repository.Repository, opts ...AccessorOption) *Accessor {
	a := &Accessor{
		repo:     repo,
		timeout:  DefaultStoreTimeout,
		location: time.UTC,
		nowF:     time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	counter, err := otel.Meter("daily-trivia/challenge").Int64Counter("challenge.store.timeouts",
		metric.WithDescription("Challenge lookups abandoned after the store timeout."))
	if err != nil {
		counter, _ = noop.NewMeterProvider().Meter("").Int64Counter("challenge.store.timeouts")
	}
	a.timeouts = counter
	return a
}

// Today returns the date key for the current calendar day in the accessor's time zone.
func (a *Accessor) Today() string {
	return a.nowF().In(a.location).Format(DateLayout)
}

// FetchToday returns today's challenge, or nil if the store has none.
// The store lookup races a timer; if the timer fires first ErrStoreTimeout is returned and the
// lookup's eventual result is dropped. The lookup's own context is detached from ctx and bounded
// by the same ceiling, so the driver gives up on its own shortly after.
func (a *Accessor) FetchToday(ctx context.Context) (*domain.Challenge, error) {
	date := a.Today()
	ctx, span := tracer.Start(ctx, "challenge.FetchToday")
	defer span.End()
	span.SetAttributes(attribute.String("challenge.date", date))

	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	results := make(chan lookupResult, 1)
	go func() {
		defer cancel()
		c, err := a.repo.GetByDate(lookupCtx, date)
		results <- lookupResult{challenge: c, err: err}
	}()

	timer := time.NewTimer(a.timeout)
	defer timer.Stop()

	select {
	case res := <-results:
		if res.err != nil {
			span.RecordError(res.err)
			span.SetStatus(codes.Error, "store lookup failed")
			a.logger.Error("challenge lookup failed", zap.String("date", date), zap.Error(res.err))
			return nil, res.err
		}
		span.SetAttributes(attribute.Bool("challenge.found", res.challenge != nil))
		return res.challenge, nil
	case <-timer.C:
		a.timeouts.Add(ctx, 1)
		span.SetStatus(codes.Error, ErrStoreTimeout.Error())
		a.logger.Error("challenge lookup timed out", zap.String("date", date), zap.Duration("timeout", a.timeout))
		return nil, ErrStoreTimeout
	case <-ctx.Done():
		span.SetStatus(codes.Error, "caller cancelled")
		return nil, ctx.Err()
	}
}
