// Package daterange holds the date cursor a slicing worker advances through, the
// equal-width divider used to hand ranges to workers, and the hole rules that keep
// a cursor away from sub-ranges owned elsewhere
package daterange

import (
	"fmt"
	"slices"
	"time"

	"rangeslicer/internal/core/interval"
)

// Segment is a half-open [Start, Limit) span
type Segment struct {
	Start time.Time `json:"start"`
	Limit time.Time `json:"limit"`
}

// Hole is a [Start, End) span a cursor must skip
type Hole struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Cursor is the mutable position of one worker inside its assigned window
//
// Start is the left edge still to be processed, End the right edge of the next
// slice to size and Limit the right edge of the window. Holes are ordered,
// disjoint and never behind Start
type Cursor struct {
	Start time.Time
	End   time.Time
	Limit time.Time
	Holes []Hole
}

// Divide splits [start, limit) into n contiguous segments of equal width.
// Boundaries are truncated to the millisecond and the last segment always ends at limit
func Divide(start, limit time.Time, n int) []Segment {
	if n < 1 {
		panic(fmt.Sprintf("daterange: divide into %d segments", n))
	}
	width := limit.Sub(start) / time.Duration(n)
	if width >= time.Millisecond {
		width = width.Truncate(time.Millisecond)
	}
	out := make([]Segment, n)
	for i := range n {
		out[i] = Segment{
			Start: start.Add(width * time.Duration(i)),
			Limit: start.Add(width * time.Duration(i+1)),
		}
	}
	out[n-1].Limit = limit
	return out
}

// Clone returns a deep copy so the caller may mutate holes freely
func (c Cursor) Clone() Cursor {
	c.Holes = slices.Clone(c.Holes)
	return c
}

// Exhausted reports whether nothing is left before Limit
func (c Cursor) Exhausted() bool { return !c.Start.Before(c.Limit) }

// Bound is the furthest End may reach: Limit or the start of the next hole, whichever is nearer
func (c Cursor) Bound() time.Time {
	for _, h := range c.Holes {
		if h.Start.After(c.Start) {
			if h.Start.Before(c.Limit) {
				return h.Start
			}
			break
		}
	}
	return c.Limit
}

// Step places End one interval past Start, clamped to Bound
func (c *Cursor) Step(iv interval.Interval) {
	end := iv.AddTo(c.Start)
	if b := c.Bound(); end.After(b) {
		end = b
	}
	c.End = end
}

// Advance moves Start to end, jumps any hole it lands on and steps End by iv
func (c *Cursor) Advance(end time.Time, iv interval.Interval) {
	c.Start = end
	c.Normalize()
	c.Step(iv)
}

// Normalize applies the hole rules:
//   - holes behind Start are dropped; a Start inside or on the start of the first
//     hole jumps to that hole's end and the hole is dropped
//   - a trailing hole crossing Limit pulls Limit back to its start; it is dropped when
//     it ends exactly at Limit and kept when it reaches past Limit
//   - End is trimmed to Bound and Start/End never pass Limit
func (c *Cursor) Normalize() {
	c.mustBeOrdered()

	for len(c.Holes) > 0 {
		h := c.Holes[0]
		if !h.End.After(c.Start) {
			c.Holes = c.Holes[1:]
			continue
		}
		if c.Start.Before(h.Start) {
			break
		}
		if h.End.After(c.Limit) {
			// kept for the next window
			c.Start = c.Limit
			break
		}
		c.Start = h.End
		c.Holes = c.Holes[1:]
	}

	for i := len(c.Holes) - 1; i >= 0; i-- {
		h := c.Holes[i]
		if !h.Start.Before(c.Limit) {
			continue
		}
		if h.End.Before(c.Limit) {
			break
		}
		encapsulated := h.End.Equal(c.Limit)
		c.Limit = h.Start
		if encapsulated {
			c.Holes = slices.Delete(c.Holes, i, i+1)
		}
	}

	if c.Start.After(c.Limit) {
		c.Start = c.Limit
	}
	if b := c.Bound(); c.End.After(b) {
		c.End = b
	}
	if c.End.Before(c.Start) {
		c.End = c.Start
	}
}

func (c *Cursor) mustBeOrdered() {
	for i, h := range c.Holes {
		if !h.Start.Before(h.End) {
			panic(fmt.Sprintf("daterange: empty or inverted hole %v", h))
		}
		if i > 0 && h.Start.Before(c.Holes[i-1].End) {
			panic(fmt.Sprintf("daterange: holes out of order or overlapping: %v then %v", c.Holes[i-1], h))
		}
	}
}

// MergeHoles sorts holes and merges the ones that overlap or touch. Empty holes are dropped
func MergeHoles(hs []Hole) []Hole {
	out := make([]Hole, 0, len(hs))
	for _, h := range hs {
		if h.Start.Before(h.End) {
			out = append(out, h)
		}
	}
	slices.SortFunc(out, func(a, b Hole) int { return a.Start.Compare(b.Start) })
	merged := out[:0]
	for _, h := range out {
		if n := len(merged); n > 0 && !h.Start.After(merged[n-1].End) {
			if h.End.After(merged[n-1].End) {
				merged[n-1].End = h.End
			}
			continue
		}
		merged = append(merged, h)
	}
	return merged
}

// ClipHoles returns the parts of hs that fall inside [start, limit)
func ClipHoles(hs []Hole, start, limit time.Time) []Hole {
	var out []Hole
	for _, h := range hs {
		s, e := h.Start, h.End
		if s.Before(start) {
			s = start
		}
		if e.After(limit) {
			e = limit
		}
		if s.Before(e) {
			out = append(out, Hole{Start: s, End: e})
		}
	}
	return out
}
