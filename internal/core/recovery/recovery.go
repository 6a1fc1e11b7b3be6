// Package recovery turns the last slice each worker of a previous run emitted into
// a starting cursor for a worker of the current run, which may have a different
// worker count
package recovery

import (
	"fmt"
	"slices"
	"time"

	"rangeslicer/internal/core/daterange"
	perr "rangeslicer/internal/platform/errors"
)

// Record is the last slice a worker handed out
type Record struct {
	Start   time.Time         `json:"start"`
	End     time.Time         `json:"end"`
	Limit   time.Time         `json:"limit"`
	Holes   []daterange.Hole  `json:"holes,omitempty"`
	Count   int64             `json:"count"`
	LastKey string            `json:"last_key,omitempty"`
	Window  daterange.Segment `json:"window"`
}

// State is what a previous run left behind: its worker count and the records
// indexed by worker id. Missing workers have nil records
type State struct {
	Workers int
	Records []*Record
}

// Empty reports whether there is nothing to recover from
func (s State) Empty() bool { return s.Workers == 0 }

// Validate checks the state is usable by Reconcile
func (s State) Validate() error {
	if s.Workers < 0 {
		return perr.Configf("recovery: negative worker count %d", s.Workers)
	}
	if len(s.Records) > s.Workers {
		return perr.Configf("recovery: %d records for %d workers", len(s.Records), s.Workers)
	}
	for i, r := range s.Records {
		if r == nil {
			continue
		}
		if r.End.Before(r.Start) || r.Limit.Before(r.End) {
			return perr.Configf("recovery: worker %d record out of order (start %s end %s limit %s)",
				i, r.Start.Format(time.RFC3339Nano), r.End.Format(time.RFC3339Nano), r.Limit.Format(time.RFC3339Nano))
		}
	}
	return nil
}

// Fill returns one record per previous worker. A worker that never reported gets a
// zero-progress record over its share of full
func Fill(s State, full daterange.Segment) []Record {
	n := s.Workers
	if n < 1 {
		return nil
	}
	segs := daterange.Divide(full.Start, full.Limit, n)
	out := make([]Record, n)
	for i := range n {
		if i < len(s.Records) && s.Records[i] != nil {
			r := *s.Records[i]
			r.Holes = slices.Clone(r.Holes)
			if r.Window.Limit.IsZero() {
				r.Window = full
			}
			out[i] = r
			continue
		}
		out[i] = Record{Start: segs[i].Start, End: segs[i].Start, Limit: segs[i].Limit, Window: full}
	}
	return out
}

// SharedWindow returns the window every record sits in, or false when they differ
func SharedWindow(recs []Record) (daterange.Segment, bool) {
	if len(recs) == 0 {
		return daterange.Segment{}, false
	}
	w := recs[0].Window
	for _, r := range recs[1:] {
		if !r.Window.Start.Equal(w.Start) || !r.Window.Limit.Equal(w.Limit) {
			return daterange.Segment{}, false
		}
	}
	return w, true
}

// Reconcile builds the cursor worker id of m starts from
//
// With an empty state the worker gets its share of full. With the same worker
// count it continues after its own record. With fewer workers each one takes over
// a contiguous run of records and the ranges already processed between them
// become holes. With more workers each record's remaining range is split
func Reconcile(prev State, full daterange.Segment, m, id int) daterange.Cursor {
	if m < 1 || id < 0 || id >= m {
		panic(fmt.Sprintf("recovery: worker %d of %d", id, m))
	}
	if prev.Empty() {
		prev = State{Workers: m}
	}
	recs := Fill(prev, full)
	n := len(recs)

	var c daterange.Cursor
	switch {
	case m == n:
		r := recs[id]
		c = daterange.Cursor{Start: r.End, Limit: r.Limit, Holes: r.Holes}
	case m < n:
		c = compact(recs, m, id)
	default:
		c = expand(recs, m, id)
	}

	c.End = c.Start
	c.Normalize()
	return c
}

// bucket returns the first index and size of part i when n items are split into m
// contiguous parts, the first n%m parts taking one extra
func bucket(n, m, i int) (first, size int) {
	base, rem := n/m, n%m
	first = i*base + min(i, rem)
	size = base
	if i < rem {
		size++
	}
	return first, size
}

func compact(recs []Record, m, id int) daterange.Cursor {
	first, size := bucket(len(recs), m, id)
	group := recs[first : first+size]

	var holes []daterange.Hole
	for i, r := range group {
		holes = append(holes, r.Holes...)
		if i+1 < len(group) {
			next := group[i+1]
			// the next record's processed prefix is skipped along with anything
			// between the two ranges
			holes = append(holes, daterange.Hole{Start: r.Limit, End: next.End})
		}
	}
	return daterange.Cursor{
		Start: group[0].End,
		Limit: group[len(group)-1].Limit,
		Holes: daterange.MergeHoles(holes),
	}
}

func expand(recs []Record, m, id int) daterange.Cursor {
	n := len(recs)
	base, rem := m/n, m%n
	idx := id
	for i, r := range recs {
		pieces := base
		if i < rem {
			pieces++
		}
		if idx >= pieces {
			idx -= pieces
			continue
		}
		seg := daterange.Divide(r.End, r.Limit, pieces)[idx]
		holeLimit := seg.Limit
		if idx == pieces-1 {
			// the last piece keeps holes reaching past the record's limit
			for _, h := range r.Holes {
				if h.End.After(holeLimit) {
					holeLimit = h.End
				}
			}
		}
		return daterange.Cursor{
			Start: seg.Start,
			Limit: seg.Limit,
			Holes: daterange.ClipHoles(r.Holes, seg.Start, holeLimit),
		}
	}
	panic(fmt.Sprintf("recovery: worker %d not placed among %d records", id, n))
}
