package service

import (
	"context"
	"time"

	"rangeslicer/internal/platform/metrics"
	"rangeslicer/internal/services/slicer/domain"
)

// Instrument records the outcome and latency of every count query
func Instrument(c domain.Counter) domain.Counter { return instrumented{inner: c} }

type instrumented struct{ inner domain.Counter }

func (i instrumented) CountRange(ctx context.Context, start, end time.Time) (int64, error) {
	t0 := time.Now()
	n, err := i.inner.CountRange(ctx, start, end)
	observe("range", t0, err)
	return n, err
}

func (i instrumented) CountKeys(ctx context.Context, start, end time.Time, keys []string) (int64, error) {
	t0 := time.Now()
	n, err := i.inner.CountKeys(ctx, start, end, keys)
	observe("keys", t0, err)
	return n, err
}

func observe(kind string, t0 time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.OracleQueries.WithLabelValues(kind, result).Inc()
	metrics.OracleDuration.WithLabelValues(kind).Observe(time.Since(t0).Seconds())
}
