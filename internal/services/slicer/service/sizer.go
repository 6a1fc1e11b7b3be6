package service

import (
	"context"
	"time"

	"rangeslicer/internal/core/daterange"
	"rangeslicer/internal/core/interval"
	perr "rangeslicer/internal/platform/errors"
	"rangeslicer/internal/services/slicer/domain"
)

// Sized is a date slice whose count has been checked against the ceiling
type Sized struct {
	Start time.Time
	End   time.Time
	Count int64
}

// Sizer bisects or widens a cursor's next slice until its count fits
type Sizer struct {
	Counter domain.Counter
	Ceiling int64
}

// Size counts [c.Start, c.End) and adjusts End:
//   - over the ceiling, End moves to the millisecond midpoint; a slice that cannot
//     shrink any more is returned over the ceiling
//   - empty and grow set, End widens by grow up to the next hole or the limit,
//     unless the slice was already shrunk
//
// Start never moves
func (z Sizer) Size(ctx context.Context, c daterange.Cursor, grow *interval.Interval) (Sized, error) {
	start, end := c.Start, c.End
	bound := c.Bound()
	shrunk := false

	for {
		n, err := z.Counter.CountRange(ctx, start, end)
		if err != nil {
			return Sized{}, perr.Query(err, fingerprint(start))
		}

		if n > z.Ceiling {
			mid := start.Add((end.Sub(start) / 2).Truncate(time.Millisecond))
			if mid.After(c.Limit) {
				mid = c.Limit
			}
			if !mid.After(start) {
				return Sized{Start: start, End: end, Count: n}, nil
			}
			end, shrunk = mid, true
			continue
		}

		if n == 0 && grow != nil && !shrunk && end.Before(bound) {
			end = grow.AddTo(end)
			if end.After(bound) {
				end = bound
			}
			continue
		}

		return Sized{Start: start, End: end, Count: n}, nil
	}
}

func fingerprint(start time.Time) string { return start.UTC().Format(domain.TimeLayout) }
