// Package guardrails holds the safety wrappers around a slicing worker: per-step
// timeouts, count query rate limiting and worker leases
package guardrails

import (
	"context"
	"time"
)

// Timeouts is the time budget of the steps of one slice.
// Zero values mean no extra timeout at that level
type Timeouts struct {
	// Query caps a single count query
	Query time.Duration

	// Dispatch caps handing a slice to the dispatcher
	Dispatch time.Duration

	// Save caps persisting a recovery record
	Save time.Duration
}

// ForQuery returns a sub context for one count query bounded by Query and any remaining parent budget
func ForQuery(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Query)
}

// ForDispatch returns a sub context for a dispatch bounded by Dispatch and any remaining parent budget
func ForDispatch(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Dispatch)
}

// ForSave returns a sub context for a recovery write bounded by Save and any remaining parent budget
func ForSave(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Save)
}

// Remaining returns the time until the deadline on ctx or zero when none is set or already expired
func Remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return 0
}

// withChildTimeout takes the tighter of d and the parent's remaining budget and
// never extends the parent deadline. A zero d yields a plain cancelable child
func withChildTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	if rem := Remaining(parent); rem > 0 && rem < d {
		return context.WithTimeout(parent, rem)
	}
	return context.WithTimeout(parent, d)
}
