// Package window implements the barrier streaming workers use to move their
// date windows forward together
package window

import (
	"fmt"
	"sync"
)

// State tracks which workers reached the limit of the current window
//
// A worker checks in once per window. When the last pending worker checks in
// every flag goes back to pending and the next cycle starts
type State struct {
	mu      sync.Mutex
	reached []bool
	pending int
}

// New returns a barrier for workers 0..n-1
func New(n int) *State {
	if n < 1 {
		panic(fmt.Sprintf("window: %d workers", n))
	}
	return &State{reached: make([]bool, n), pending: n}
}

// Size is the number of participating workers
func (s *State) Size() int { return len(s.reached) }

// CheckIn marks id as reached for the current cycle. It returns true the first
// time id checks in and false for repeated calls in the same cycle
func (s *State) CheckIn(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id < 0 || id >= len(s.reached) {
		panic(fmt.Sprintf("window: worker %d out of range [0,%d)", id, len(s.reached)))
	}
	if s.reached[id] {
		return false
	}
	s.reached[id] = true
	s.pending--
	if s.pending == 0 {
		clear(s.reached)
		s.pending = len(s.reached)
	}
	return true
}

// Pending returns how many workers have not checked in this cycle
func (s *State) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}
