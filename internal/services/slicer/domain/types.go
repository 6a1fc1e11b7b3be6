// Package domain holds the slice descriptors, execution bookkeeping and ports of the slicer
package domain

import (
	"encoding/json"
	"time"

	"rangeslicer/internal/core/daterange"
	"rangeslicer/internal/core/recovery"
)

type (
	// Segment is a half-open [Start, Limit) span
	Segment = daterange.Segment

	// Hole is a span a worker skips
	Hole = daterange.Hole

	// RecoveryRecord is the last slice a worker handed out
	RecoveryRecord = recovery.Record

	// RecoveryState is what a previous run of an execution left behind
	RecoveryState = recovery.State
)

// TimeLayout is RFC 3339 with millisecond precision, used for every timestamp on the wire
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// KeySlice is a group of id prefixes whose records fit under the size ceiling
type KeySlice struct {
	Keys  []string `json:"keys"`
	Count int64    `json:"count"`
}

// Slice is one unit of work: the records in [Start, End) minus Holes, optionally
// split further by id prefix in Keys
type Slice struct {
	Start time.Time
	End   time.Time
	Limit time.Time
	Holes []Hole
	Count int64
	Keys  []KeySlice
}

type wireHole struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type wireSlice struct {
	Start string     `json:"start"`
	End   string     `json:"end"`
	Limit string     `json:"limit"`
	Holes []wireHole `json:"holes,omitempty"`
	Count int64      `json:"count"`
	Keys  []KeySlice `json:"keys,omitempty"`
}

// MarshalJSON writes timestamps as UTC RFC 3339 with milliseconds
func (s Slice) MarshalJSON() ([]byte, error) {
	w := wireSlice{
		Start: stamp(s.Start),
		End:   stamp(s.End),
		Limit: stamp(s.Limit),
		Count: s.Count,
		Keys:  s.Keys,
	}
	for _, h := range s.Holes {
		w.Holes = append(w.Holes, wireHole{Start: stamp(h.Start), End: stamp(h.End)})
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads what MarshalJSON writes
func (s *Slice) UnmarshalJSON(b []byte) error {
	var w wireSlice
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	var out Slice
	var err error
	if out.Start, err = time.Parse(TimeLayout, w.Start); err != nil {
		return err
	}
	if out.End, err = time.Parse(TimeLayout, w.End); err != nil {
		return err
	}
	if out.Limit, err = time.Parse(TimeLayout, w.Limit); err != nil {
		return err
	}
	for _, h := range w.Holes {
		hs, err := time.Parse(TimeLayout, h.Start)
		if err != nil {
			return err
		}
		he, err := time.Parse(TimeLayout, h.End)
		if err != nil {
			return err
		}
		out.Holes = append(out.Holes, Hole{Start: hs, End: he})
	}
	out.Count, out.Keys = w.Count, w.Keys
	*s = out
	return nil
}

// LastKey returns the last key handed out with the slice, or ""
func (s Slice) LastKey() string {
	if len(s.Keys) == 0 {
		return ""
	}
	ks := s.Keys[len(s.Keys)-1].Keys
	if len(ks) == 0 {
		return ""
	}
	return ks[len(ks)-1]
}

func stamp(t time.Time) string { return t.UTC().Format(TimeLayout) }

// Status tells a worker what Next produced
type Status uint8

const (
	// StatusSlice carries a slice to dispatch
	StatusSlice Status = iota
	// StatusEmpty means nothing is ready yet, try again later
	StatusEmpty
	// StatusDone means the worker has nothing left, ever
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusSlice:
		return "slice"
	case StatusEmpty:
		return "empty"
	case StatusDone:
		return "done"
	}
	return "unknown"
}

// Result is the outcome of one Next call
type Result struct {
	Status Status
	Slice  Slice
}

// Execution identifies one run over a range and the settings recovery depends on
type Execution struct {
	ID         string
	Start      time.Time
	Limit      time.Time // zero when persistent
	Workers    int
	Persistent bool
	Interval   string
	CreatedAt  time.Time
}

// WorkerState is a coarse label for status reporting
type WorkerState string

// Worker states
const (
	WorkerStarting WorkerState = "starting"
	WorkerRunning  WorkerState = "running"
	WorkerWaiting  WorkerState = "waiting"
	WorkerDone     WorkerState = "done"
	WorkerFailed   WorkerState = "failed"
	WorkerSkipped  WorkerState = "skipped"
)

// WorkerSnapshot is the externally visible progress of one worker
type WorkerSnapshot struct {
	Worker    int         `json:"worker"`
	State     WorkerState `json:"state"`
	Start     time.Time   `json:"start"`
	End       time.Time   `json:"end"`
	Limit     time.Time   `json:"limit"`
	Holes     int         `json:"holes"`
	Window    Segment     `json:"window"`
	Slices    int64       `json:"slices"`
	Records   int64       `json:"records"`
	LastError string      `json:"last_error,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}
