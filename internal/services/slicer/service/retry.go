package service

import (
	"context"
	"math/rand"
	"time"
)

// retryTracker counts consecutive failures of one fingerprint. A failure of a
// different fingerprint starts over at one
type retryTracker struct {
	fingerprint string
	attempts    int
}

func (r *retryTracker) fail(fp string) int {
	if fp != r.fingerprint {
		r.fingerprint, r.attempts = fp, 0
	}
	r.attempts++
	return r.attempts
}

func (r *retryTracker) clear() { r.fingerprint, r.attempts = "", 0 }

// backoff is exponential in attempt with jitter in [d/2, d), capped
func backoff(base, ceiling time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}
	shift := min(max(attempt-1, 0), 20)
	d := min(base<<shift, ceiling)
	if d < 2 {
		return d
	}
	return d/2 + time.Duration(rand.Int63n(int64(d/2)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
