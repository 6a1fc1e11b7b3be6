package repo

import (
	"context"
	"slices"
	"sync"
	"time"

	perr "rangeslicer/internal/platform/errors"
	"rangeslicer/internal/services/slicer/domain"
)

// Memory is a process-local domain.RecoveryLog for runs without Postgres.
// Nothing survives a restart
type Memory struct {
	mu    sync.Mutex
	execs map[string]domain.Execution
	recs  map[string]map[int]domain.RecoveryRecord
	now   func() time.Time
}

var _ domain.RecoveryLog = (*Memory)(nil)

// NewMemory returns an empty in-memory log
func NewMemory() *Memory {
	return &Memory{
		execs: map[string]domain.Execution{},
		recs:  map[string]map[int]domain.RecoveryRecord{},
		now:   time.Now,
	}
}

// LoadExecution implements domain.RecoveryLog
func (m *Memory) LoadExecution(_ context.Context, id string) (domain.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.execs[id]
	if !ok {
		return domain.Execution{}, perr.ErrNotFound
	}
	return e, nil
}

// Load implements domain.RecoveryLog
func (m *Memory) Load(_ context.Context, id string) (domain.RecoveryState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.execs[id]
	if !ok {
		return domain.RecoveryState{}, nil
	}
	state := domain.RecoveryState{Workers: e.Workers, Records: make([]*domain.RecoveryRecord, e.Workers)}
	for w, r := range m.recs[id] {
		if w >= e.Workers {
			return domain.RecoveryState{}, perr.Configf("execution %s: record for worker %d of %d", id, w, e.Workers)
		}
		r.Holes = slices.Clone(r.Holes)
		state.Records[w] = &r
	}
	return state, nil
}

// SaveExecution implements domain.RecoveryLog
func (m *Memory) SaveExecution(_ context.Context, exec domain.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveExecution(exec)
	return nil
}

func (m *Memory) saveExecution(exec domain.Execution) {
	if prev, ok := m.execs[exec.ID]; ok {
		prev.Workers, prev.Interval = exec.Workers, exec.Interval
		m.execs[exec.ID] = prev
		return
	}
	exec.CreatedAt = m.now().UTC()
	m.execs[exec.ID] = exec
}

// Save implements domain.RecoveryLog
func (m *Memory) Save(_ context.Context, id string, worker int, rec domain.RecoveryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.execs[id]; !ok {
		return perr.Newf(perr.ErrorCodeNotFound, "execution %s not saved", id)
	}
	if m.recs[id] == nil {
		m.recs[id] = map[int]domain.RecoveryRecord{}
	}
	rec.Holes = slices.Clone(rec.Holes)
	m.recs[id][worker] = rec
	return nil
}

// Rebase implements domain.RecoveryLog
func (m *Memory) Rebase(_ context.Context, exec domain.Execution, recs []domain.RecoveryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveExecution(exec)
	fresh := make(map[int]domain.RecoveryRecord, len(recs))
	for i, r := range recs {
		r.Holes = slices.Clone(r.Holes)
		fresh[i] = r
	}
	m.recs[exec.ID] = fresh
	return nil
}
