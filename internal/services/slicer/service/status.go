package service

import (
	"slices"
	"sync"
	"time"

	"rangeslicer/internal/core/daterange"
	"rangeslicer/internal/services/slicer/domain"
)

// board keeps the latest snapshot of every worker for the status server
type board struct {
	mu    sync.RWMutex
	snaps map[int]domain.WorkerSnapshot
	now   func() time.Time
}

func newBoard(now func() time.Time) *board {
	if now == nil {
		now = time.Now
	}
	return &board{snaps: map[int]domain.WorkerSnapshot{}, now: now}
}

func (b *board) set(id int, state domain.WorkerState, c daterange.Cursor, w daterange.Segment) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.snaps[id]
	s.Worker, s.State = id, state
	s.Start, s.End, s.Limit, s.Holes, s.Window = c.Start, c.End, c.Limit, len(c.Holes), w
	s.UpdatedAt = b.now().UTC()
	b.snaps[id] = s
}

func (b *board) sliced(id int, count int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.snaps[id]
	s.Slices++
	s.Records += count
	b.snaps[id] = s
}

func (b *board) fail(id int, state domain.WorkerState, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.snaps[id]
	s.Worker, s.State = id, state
	if err != nil {
		s.LastError = err.Error()
	}
	s.UpdatedAt = b.now().UTC()
	b.snaps[id] = s
}

func (b *board) list() []domain.WorkerSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.WorkerSnapshot, 0, len(b.snaps))
	for _, s := range b.snaps {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b domain.WorkerSnapshot) int { return a.Worker - b.Worker })
	return out
}
