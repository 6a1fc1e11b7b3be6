package daterange

import (
	"testing"
	"time"

	"rangeslicer/internal/core/interval"
	kit "rangeslicer/internal/platform/testkit"
)

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return t0.Add(d) }

func TestDivide(t *testing.T) {
	segs := Divide(t0, at(10*time.Minute), 3)
	if len(segs) != 3 {
		t.Fatalf("len = %d, want 3", len(segs))
	}
	if !segs[0].Start.Equal(t0) || !segs[2].Limit.Equal(at(10*time.Minute)) {
		t.Fatalf("segments do not cover the range: %+v", segs)
	}
	for i := 1; i < len(segs); i++ {
		if !segs[i].Start.Equal(segs[i-1].Limit) {
			t.Fatalf("segment %d not contiguous: %+v", i, segs)
		}
	}
	// 600s/3 = 200s exactly
	if !segs[1].Start.Equal(at(200 * time.Second)) {
		t.Fatalf("boundary = %v, want +200s", segs[1].Start)
	}
}

func TestDivideTruncatesToMillisecond(t *testing.T) {
	segs := Divide(t0, at(1000*time.Millisecond+1), 3)
	if got := segs[1].Start.Sub(t0); got != 333*time.Millisecond {
		t.Fatalf("width = %v, want 333ms", got)
	}
	if !segs[2].Limit.Equal(at(1000*time.Millisecond + 1)) {
		t.Fatalf("last limit must be the original limit")
	}
	if got := Divide(t0, at(time.Hour), 1); len(got) != 1 || !got[0].Limit.Equal(at(time.Hour)) {
		t.Fatalf("n=1 should return the whole range: %+v", got)
	}
	kit.MustPanic(t, func() { Divide(t0, at(time.Hour), 0) })
}

func TestNormalizeEndStopsAtHoleStart(t *testing.T) {
	c := Cursor{
		Start: at(time.Minute),
		Limit: at(10 * time.Minute),
		Holes: []Hole{{Start: at(2 * time.Minute), End: at(3 * time.Minute)}},
	}
	c.Step(interval.New(1, interval.Minute))
	c.Normalize()
	if !c.End.Equal(at(2*time.Minute)) || len(c.Holes) != 1 {
		t.Fatalf("first slice should end on the hole start with the hole kept: %+v", c)
	}

	c.Advance(c.End, interval.New(1, interval.Minute))
	if !c.Start.Equal(at(3*time.Minute)) || len(c.Holes) != 0 {
		t.Fatalf("start should jump the hole and drop it: %+v", c)
	}
	if !c.End.Equal(at(4 * time.Minute)) {
		t.Fatalf("end = %v, want +4m", c.End)
	}
}

func TestNormalizeStartInsideHole(t *testing.T) {
	c := Cursor{
		Start: at(150 * time.Second),
		End:   at(4 * time.Minute),
		Limit: at(10 * time.Minute),
		Holes: []Hole{
			{Start: at(2 * time.Minute), End: at(3 * time.Minute)},
			{Start: at(3 * time.Minute), End: at(5 * time.Minute)},
		},
	}
	c.Normalize()
	if !c.Start.Equal(at(5*time.Minute)) || len(c.Holes) != 0 {
		t.Fatalf("adjacent holes should be jumped in one pass: %+v", c)
	}
	if !c.End.Equal(c.Start) {
		t.Fatalf("end behind start must be pulled up: %+v", c)
	}
}

func TestNormalizeEncapsulatedHole(t *testing.T) {
	c := Cursor{
		Start: t0,
		End:   at(time.Minute),
		Limit: at(10 * time.Minute),
		Holes: []Hole{{Start: at(8 * time.Minute), End: at(10 * time.Minute)}},
	}
	c.Normalize()
	if !c.Limit.Equal(at(8*time.Minute)) || len(c.Holes) != 0 {
		t.Fatalf("hole ending on limit should be dropped and limit pulled back: %+v", c)
	}
}

func TestNormalizeHoleCrossingLimitIsKept(t *testing.T) {
	c := Cursor{
		Start: t0,
		End:   at(time.Minute),
		Limit: at(10 * time.Minute),
		Holes: []Hole{{Start: at(8 * time.Minute), End: at(12 * time.Minute)}},
	}
	c.Normalize()
	if !c.Limit.Equal(at(8*time.Minute)) || len(c.Holes) != 1 {
		t.Fatalf("hole past limit should be kept with limit pulled back: %+v", c)
	}

	// a hole wholly beyond the limit does not touch the cursor
	d := Cursor{
		Start: t0,
		End:   at(time.Minute),
		Limit: at(10 * time.Minute),
		Holes: []Hole{{Start: at(11 * time.Minute), End: at(12 * time.Minute)}},
	}
	d.Normalize()
	if !d.Limit.Equal(at(10*time.Minute)) || len(d.Holes) != 1 {
		t.Fatalf("future hole changed the cursor: %+v", d)
	}
	if b := d.Bound(); !b.Equal(d.Limit) {
		t.Fatalf("Bound = %v, want limit", b)
	}
}

func TestNormalizeDropsHolesBehindStart(t *testing.T) {
	c := Cursor{
		Start: at(5 * time.Minute),
		End:   at(6 * time.Minute),
		Limit: at(10 * time.Minute),
		Holes: []Hole{
			{Start: at(time.Minute), End: at(2 * time.Minute)},
			{Start: at(7 * time.Minute), End: at(8 * time.Minute)},
		},
	}
	c.Normalize()
	if len(c.Holes) != 1 || !c.Holes[0].Start.Equal(at(7*time.Minute)) {
		t.Fatalf("stale hole not dropped: %+v", c.Holes)
	}
	if !c.Start.Equal(at(5 * time.Minute)) {
		t.Fatalf("start moved: %v", c.Start)
	}
}

func TestNormalizePanicsOnOverlap(t *testing.T) {
	c := Cursor{
		Start: t0,
		Limit: at(10 * time.Minute),
		Holes: []Hole{
			{Start: at(2 * time.Minute), End: at(4 * time.Minute)},
			{Start: at(3 * time.Minute), End: at(5 * time.Minute)},
		},
	}
	kit.MustPanic(t, func() { c.Normalize() })
}

func TestMergeAndClipHoles(t *testing.T) {
	merged := MergeHoles([]Hole{
		{Start: at(5 * time.Minute), End: at(6 * time.Minute)},
		{Start: at(time.Minute), End: at(2 * time.Minute)},
		{Start: at(2 * time.Minute), End: at(3 * time.Minute)},
		{Start: at(4 * time.Minute), End: at(4 * time.Minute)},
	})
	if len(merged) != 2 {
		t.Fatalf("merged = %+v, want 2 holes", merged)
	}
	if !merged[0].Start.Equal(at(time.Minute)) || !merged[0].End.Equal(at(3*time.Minute)) {
		t.Fatalf("touching holes not merged: %+v", merged[0])
	}

	clipped := ClipHoles(merged, at(2*time.Minute), at(330*time.Second))
	if len(clipped) != 2 {
		t.Fatalf("clipped = %+v", clipped)
	}
	if !clipped[0].Start.Equal(at(2*time.Minute)) || !clipped[1].End.Equal(at(330*time.Second)) {
		t.Fatalf("clip bounds wrong: %+v", clipped)
	}

	c := Cursor{Holes: merged}
	cl := c.Clone()
	cl.Holes[0].Start = t0
	if c.Holes[0].Start.Equal(t0) {
		t.Fatalf("Clone shares hole storage")
	}
}
