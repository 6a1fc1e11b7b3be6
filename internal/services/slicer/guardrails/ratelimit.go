package guardrails

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"rangeslicer/internal/services/slicer/domain"
)

// Guard wraps a counter so every query waits for the limiter and runs under the
// Query timeout. qps <= 0 disables the limiter
func Guard(c domain.Counter, t Timeouts, qps float64, burst int) domain.Counter {
	g := &guarded{inner: c, t: t}
	if qps > 0 {
		g.lim = rate.NewLimiter(rate.Limit(qps), max(burst, 1))
	}
	return g
}

type guarded struct {
	inner domain.Counter
	t     Timeouts
	lim   *rate.Limiter
}

func (g *guarded) CountRange(ctx context.Context, start, end time.Time) (int64, error) {
	if err := g.wait(ctx); err != nil {
		return 0, err
	}
	qctx, cancel := ForQuery(ctx, g.t)
	defer cancel()
	return g.inner.CountRange(qctx, start, end)
}

func (g *guarded) CountKeys(ctx context.Context, start, end time.Time, keys []string) (int64, error) {
	if err := g.wait(ctx); err != nil {
		return 0, err
	}
	qctx, cancel := ForQuery(ctx, g.t)
	defer cancel()
	return g.inner.CountKeys(qctx, start, end, keys)
}

func (g *guarded) wait(ctx context.Context) error {
	if g.lim == nil {
		return nil
	}
	return g.lim.Wait(ctx)
}
