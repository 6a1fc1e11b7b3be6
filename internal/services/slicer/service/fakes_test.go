package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"rangeslicer/internal/core/keyspace"
)

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return t0.Add(d) }

type event struct {
	at time.Time
	id string
}

// store is an in-memory record set answering count queries exactly
type store struct {
	events []event
	calls  atomic.Int64
}

// spread places n events evenly over [start, start+span) with hex ids
func spread(start time.Time, span time.Duration, n int) *store {
	s := &store{}
	step := span / time.Duration(n)
	for i := range n {
		s.events = append(s.events, event{at: start.Add(step * time.Duration(i)), id: fmt.Sprintf("%08x", uint32(i)*2654435761)})
	}
	return s
}

func (s *store) CountRange(_ context.Context, start, end time.Time) (int64, error) {
	s.calls.Add(1)
	var n int64
	for _, e := range s.events {
		if !e.at.Before(start) && e.at.Before(end) {
			n++
		}
	}
	return n, nil
}

func (s *store) CountKeys(_ context.Context, start, end time.Time, keys []string) (int64, error) {
	s.calls.Add(1)
	var n int64
	for _, e := range s.events {
		if e.at.Before(start) || !e.at.Before(end) {
			continue
		}
		for _, k := range keys {
			if strings.HasPrefix(e.id, k) {
				n++
				break
			}
		}
	}
	return n, nil
}

// constant answers every query with n
type constant struct {
	n     int64
	calls atomic.Int64
}

func (c *constant) CountRange(context.Context, time.Time, time.Time) (int64, error) {
	c.calls.Add(1)
	return c.n, nil
}

func (c *constant) CountKeys(context.Context, time.Time, time.Time, []string) (int64, error) {
	c.calls.Add(1)
	return c.n, nil
}

var errFlaky = errors.New("store unavailable")

// flaky fails the calls whose 1-based index is in fail
type flaky struct {
	inner interface {
		CountRange(context.Context, time.Time, time.Time) (int64, error)
		CountKeys(context.Context, time.Time, time.Time, []string) (int64, error)
	}
	mu   sync.Mutex
	n    int
	fail map[int]bool
	all  bool
}

func (f *flaky) hit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	if f.all || f.fail[f.n] {
		return errFlaky
	}
	return nil
}

func (f *flaky) CountRange(ctx context.Context, start, end time.Time) (int64, error) {
	if err := f.hit(); err != nil {
		return 0, err
	}
	return f.inner.CountRange(ctx, start, end)
}

func (f *flaky) CountKeys(ctx context.Context, start, end time.Time, keys []string) (int64, error) {
	if err := f.hit(); err != nil {
		return 0, err
	}
	return f.inner.CountKeys(ctx, start, end, keys)
}

func noSleep(context.Context, time.Duration) error { return nil }

func hexAlphabet() keyspace.Alphabet { return keyspace.MustLookup(keyspace.Hex) }
