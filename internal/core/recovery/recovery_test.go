package recovery

import (
	"testing"
	"time"

	"rangeslicer/internal/core/daterange"
	perr "rangeslicer/internal/platform/errors"
	kit "rangeslicer/internal/platform/testkit"
)

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return t0.Add(d) }

func full10m() daterange.Segment {
	return daterange.Segment{Start: t0, Limit: at(10 * time.Minute)}
}

// pending reports whether t still has to be processed according to recs
func pending(recs []Record, t time.Time) bool {
	for _, r := range recs {
		if t.Before(r.End) || !t.Before(r.Limit) {
			continue
		}
		inHole := false
		for _, h := range r.Holes {
			if !t.Before(h.Start) && t.Before(h.End) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

func owners(cs []daterange.Cursor, t time.Time) int {
	n := 0
	for _, c := range cs {
		if t.Before(c.Start) || !t.Before(c.Limit) {
			continue
		}
		inHole := false
		for _, h := range c.Holes {
			if !t.Before(h.Start) && t.Before(h.End) {
				inHole = true
				break
			}
		}
		if !inHole {
			n++
		}
	}
	return n
}

func assertCoverage(t *testing.T, prev State, full daterange.Segment, m int) []daterange.Cursor {
	t.Helper()
	recs := Fill(prev, full)
	if prev.Empty() {
		// a fresh run owes the whole range
		recs = Fill(State{Workers: m}, full)
	}
	cs := make([]daterange.Cursor, m)
	for id := range m {
		cs[id] = Reconcile(prev, full, m, id)
	}
	for ts := full.Start; ts.Before(full.Limit); ts = ts.Add(time.Second) {
		want := 0
		if pending(recs, ts) {
			want = 1
		}
		if got := owners(cs, ts); got != want {
			t.Fatalf("%d->%d workers: %s owned by %d cursors, want %d\ncursors: %+v",
				prev.Workers, m, ts.Format(time.RFC3339), got, want, cs)
		}
	}
	return cs
}

func TestReconcileFresh(t *testing.T) {
	cs := assertCoverage(t, State{}, full10m(), 4)
	if !cs[0].Start.Equal(t0) || !cs[3].Limit.Equal(at(10*time.Minute)) {
		t.Fatalf("fresh cursors: %+v", cs)
	}
	for _, c := range cs {
		if !c.End.Equal(c.Start) {
			t.Fatalf("fresh cursor end should sit on start: %+v", c)
		}
	}
}

func TestReconcileSameCountIsIdempotent(t *testing.T) {
	prev := State{Workers: 2, Records: []*Record{
		{Start: at(time.Minute), End: at(2 * time.Minute), Limit: at(5 * time.Minute)},
		{Start: at(5 * time.Minute), End: at(7 * time.Minute), Limit: at(10 * time.Minute),
			Holes: []daterange.Hole{{Start: at(8 * time.Minute), End: at(9 * time.Minute)}}},
	}}
	cs := assertCoverage(t, prev, full10m(), 2)
	if !cs[0].Start.Equal(at(2*time.Minute)) || !cs[1].Start.Equal(at(7*time.Minute)) {
		t.Fatalf("cursors do not resume at record ends: %+v", cs)
	}
	if len(cs[1].Holes) != 1 {
		t.Fatalf("holes lost: %+v", cs[1])
	}
}

func TestReconcileExpandOneToTwo(t *testing.T) {
	prev := State{Workers: 1, Records: []*Record{
		{Start: at(4 * time.Minute), End: at(5 * time.Minute), Limit: at(10 * time.Minute)},
	}}
	cs := assertCoverage(t, prev, full10m(), 2)

	want := []daterange.Segment{
		{Start: at(5 * time.Minute), Limit: at(450 * time.Second)},
		{Start: at(450 * time.Second), Limit: at(10 * time.Minute)},
	}
	for i, w := range want {
		if !cs[i].Start.Equal(w.Start) || !cs[i].Limit.Equal(w.Limit) {
			t.Fatalf("worker %d = [%s, %s), want [%s, %s)", i,
				cs[i].Start.Format(time.RFC3339), cs[i].Limit.Format(time.RFC3339),
				w.Start.Format(time.RFC3339), w.Limit.Format(time.RFC3339))
		}
	}
}

func TestReconcileExpandWithHoles(t *testing.T) {
	prev := State{Workers: 2, Records: []*Record{
		{Start: t0, End: at(time.Minute), Limit: at(5 * time.Minute),
			Holes: []daterange.Hole{{Start: at(2 * time.Minute), End: at(4 * time.Minute)}}},
		nil,
	}}
	assertCoverage(t, prev, full10m(), 5)
	assertCoverage(t, prev, full10m(), 3)
}

func TestReconcileCompact(t *testing.T) {
	prev := State{Workers: 5, Records: []*Record{
		{Start: t0, End: at(time.Minute), Limit: at(2 * time.Minute)},
		{Start: at(2 * time.Minute), End: at(3 * time.Minute), Limit: at(4 * time.Minute)},
		nil,
		{Start: at(6 * time.Minute), End: at(8 * time.Minute), Limit: at(8 * time.Minute)},
		{Start: at(8 * time.Minute), End: at(9 * time.Minute), Limit: at(10 * time.Minute),
			Holes: []daterange.Hole{{Start: at(570 * time.Second), End: at(580 * time.Second)}}},
	}}
	cs := assertCoverage(t, prev, full10m(), 2)

	// 5 records into 2 buckets of 3 and 2
	if !cs[0].Start.Equal(at(time.Minute)) || !cs[0].Limit.Equal(at(6*time.Minute)) {
		t.Fatalf("worker 0 = %+v", cs[0])
	}
	if len(cs[0].Holes) != 1 || !cs[0].Holes[0].Start.Equal(at(2*time.Minute)) || !cs[0].Holes[0].End.Equal(at(3*time.Minute)) {
		t.Fatalf("gap between records should become a hole: %+v", cs[0].Holes)
	}
	assertCoverage(t, prev, full10m(), 1)
	assertCoverage(t, prev, full10m(), 4)
}

func TestReconcileFinishedRecords(t *testing.T) {
	prev := State{Workers: 2, Records: []*Record{
		{Start: at(4 * time.Minute), End: at(5 * time.Minute), Limit: at(5 * time.Minute)},
		{Start: at(9 * time.Minute), End: at(10 * time.Minute), Limit: at(10 * time.Minute)},
	}}
	for _, m := range []int{1, 2, 3} {
		for id, c := range assertCoverage(t, prev, full10m(), m) {
			if !c.Exhausted() {
				t.Fatalf("%d workers: worker %d should have nothing left: %+v", m, id, c)
			}
		}
	}
}

func TestBucket(t *testing.T) {
	tests := []struct{ n, m, i, first, size int }{
		{5, 2, 0, 0, 3},
		{5, 2, 1, 3, 2},
		{6, 3, 2, 4, 2},
		{7, 3, 0, 0, 3},
		{7, 3, 1, 3, 2},
		{7, 3, 2, 5, 2},
	}
	for _, tc := range tests {
		first, size := bucket(tc.n, tc.m, tc.i)
		if first != tc.first || size != tc.size {
			t.Fatalf("bucket(%d,%d,%d) = (%d,%d), want (%d,%d)", tc.n, tc.m, tc.i, first, size, tc.first, tc.size)
		}
	}
}

func TestValidateAndWindow(t *testing.T) {
	bad := State{Workers: 1, Records: []*Record{{Start: at(time.Minute), End: t0, Limit: at(2 * time.Minute)}}}
	if err := bad.Validate(); !perr.IsCode(err, perr.ErrorCodeConfig) {
		t.Fatalf("Validate = %v, want config error", err)
	}
	over := State{Workers: 1, Records: []*Record{nil, nil}}
	if err := over.Validate(); err == nil {
		t.Fatalf("too many records should not validate")
	}

	recs := Fill(State{Workers: 2, Records: []*Record{nil, {End: at(time.Minute), Limit: at(2 * time.Minute),
		Window: daterange.Segment{Start: t0, Limit: at(20 * time.Minute)}}}}, full10m())
	if _, ok := SharedWindow(recs); ok {
		t.Fatalf("records from different windows reported as shared")
	}
	recs = Fill(State{Workers: 2}, full10m())
	if w, ok := SharedWindow(recs); !ok || !w.Limit.Equal(at(10*time.Minute)) {
		t.Fatalf("SharedWindow = %+v %v", w, ok)
	}

	kit.MustPanic(t, func() { Reconcile(State{}, full10m(), 2, 2) })
}
