package guardrails

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	perr "rangeslicer/internal/platform/errors"
	"rangeslicer/internal/platform/logger"
	"rangeslicer/internal/services/slicer/domain"
)

// Breaker wraps a counter in a circuit breaker that opens after failures
// consecutive store errors and stays open for cooldown. While open, queries fail
// fast with a retryable Unavailable error so the caller's backoff applies.
// A cancelled caller never counts as a failure; a query timeout does.
// failures <= 0 disables the breaker
func Breaker(c domain.Counter, name string, failures int, cooldown time.Duration) domain.Counter {
	if failures <= 0 {
		return c
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	threshold := uint32(failures)
	log := logger.Named("breaker")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("oracle", name).Str("from", from.String()).Str("to", to.String()).
				Msg("slicer: count oracle breaker changed state")
		},
	})
	return &broken{inner: c, cb: cb}
}

type broken struct {
	inner domain.Counter
	cb    *gobreaker.CircuitBreaker
}

func (b *broken) CountRange(ctx context.Context, start, end time.Time) (int64, error) {
	return b.run(func() (int64, error) { return b.inner.CountRange(ctx, start, end) })
}

func (b *broken) CountKeys(ctx context.Context, start, end time.Time, keys []string) (int64, error) {
	return b.run(func() (int64, error) { return b.inner.CountKeys(ctx, start, end, keys) })
}

func (b *broken) run(fn func() (int64, error)) (int64, error) {
	v, err := b.cb.Execute(func() (interface{}, error) { return fn() })
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return 0, perr.Wrapf(err, perr.ErrorCodeUnavailable, "count oracle %s", b.cb.Name())
	}
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}
