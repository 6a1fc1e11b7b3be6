package service

import (
	"context"
	"time"

	"rangeslicer/internal/core/interval"
	perr "rangeslicer/internal/platform/errors"
	"rangeslicer/internal/services/slicer/domain"
)

// ResolveInterval estimates the slice width that holds about ceiling records,
// assuming records are spread evenly over [start, limit). An empty range yields
// the whole span. The result is at least one millisecond
func ResolveInterval(ctx context.Context, c domain.Counter, start, limit time.Time, ceiling int64) (interval.Interval, error) {
	span := limit.Sub(start)
	if span <= 0 {
		return interval.FromDuration(time.Millisecond), nil
	}
	n, err := c.CountRange(ctx, start, limit)
	if err != nil {
		return interval.Interval{}, perr.Query(err, fingerprint(start))
	}
	if n <= 0 {
		return interval.FromDuration(span), nil
	}
	d := time.Duration(float64(span) * float64(ceiling) / float64(n))
	return interval.FromDuration(d), nil
}
