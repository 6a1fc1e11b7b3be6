// Package interval models the nominal slice width and window step of the slicer:
// an amount of a calendar or clock unit, e.g. "5m", "1M", "250ms"
package interval

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	perr "rangeslicer/internal/platform/errors"
)

// Unit is a calendar or clock unit
type Unit uint8

const (
	Millisecond Unit = iota
	Second
	Minute
	Hour
	Day
	Week
	Month
	Year
)

// Auto is the textual value that asks the slicer to derive an interval from data density
const Auto = "auto"

var unitSymbols = [...]string{
	Millisecond: "ms",
	Second:      "s",
	Minute:      "m",
	Hour:        "h",
	Day:         "d",
	Week:        "w",
	Month:       "M",
	Year:        "y",
}

// case-sensitive short forms ("m" is minute, "M" is month)
var shortUnits = map[string]Unit{
	"ms": Millisecond,
	"s":  Second,
	"m":  Minute,
	"h":  Hour,
	"d":  Day,
	"w":  Week,
	"M":  Month,
	"y":  Year,
	"Y":  Year,
}

// case-insensitive long forms
var longUnits = map[string]Unit{
	"millisecond": Millisecond, "milliseconds": Millisecond, "msec": Millisecond,
	"second": Second, "seconds": Second, "sec": Second, "secs": Second,
	"minute": Minute, "minutes": Minute, "min": Minute, "mins": Minute,
	"hour": Hour, "hours": Hour, "hr": Hour, "hrs": Hour,
	"day": Day, "days": Day,
	"week": Week, "weeks": Week, "wk": Week,
	"month": Month, "months": Month, "mo": Month, "mon": Month,
	"year": Year, "years": Year, "yr": Year,
}

// String returns the short symbol of the unit
func (u Unit) String() string {
	if int(u) < len(unitSymbols) {
		return unitSymbols[u]
	}
	return "?"
}

// Interval is an immutable (amount, unit) pair
type Interval struct {
	Amount int
	Unit   Unit
}

// New returns an interval, panicking on a non-positive amount
func New(amount int, unit Unit) Interval {
	if amount <= 0 {
		panic(fmt.Sprintf("interval: non-positive amount %d", amount))
	}
	return Interval{Amount: amount, Unit: unit}
}

// Parse reads forms like "5m", "1M", "100ms", "2 hours" or "1week".
// "auto" is not an interval and is rejected here; see IsAuto
func Parse(s string) (Interval, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return Interval{}, perr.Configf("interval: empty value")
	}
	i := 0
	for i < len(in) && in[i] >= '0' && in[i] <= '9' {
		i++
	}
	if i == 0 {
		return Interval{}, perr.Configf("interval: %q must start with an amount", s)
	}
	amount, err := strconv.Atoi(in[:i])
	if err != nil || amount <= 0 {
		return Interval{}, perr.Configf("interval: %q needs a positive amount", s)
	}
	sym := strings.TrimLeftFunc(in[i:], unicode.IsSpace)
	if sym == "" {
		return Interval{}, perr.Configf("interval: %q is missing a unit", s)
	}
	if u, ok := shortUnits[sym]; ok {
		return Interval{Amount: amount, Unit: u}, nil
	}
	if u, ok := longUnits[strings.ToLower(sym)]; ok {
		return Interval{Amount: amount, Unit: u}, nil
	}
	return Interval{}, perr.Configf("interval: unknown unit %q in %q", sym, s)
}

// IsAuto reports whether s requests an automatically derived interval
func IsAuto(s string) bool { return strings.EqualFold(strings.TrimSpace(s), Auto) }

// IsZero reports whether the interval is unset
func (i Interval) IsZero() bool { return i.Amount == 0 }

// String renders the interval in its short form
func (i Interval) String() string { return strconv.Itoa(i.Amount) + i.Unit.String() }

// AddTo moves t forward by the interval. Calendar units follow time.AddDate
func (i Interval) AddTo(t time.Time) time.Time { return i.shift(t, i.Amount) }

// SubFrom moves t backward by the interval
func (i Interval) SubFrom(t time.Time) time.Time { return i.shift(t, -i.Amount) }

func (i Interval) shift(t time.Time, n int) time.Time {
	switch i.Unit {
	case Year:
		return t.AddDate(n, 0, 0)
	case Month:
		return t.AddDate(0, n, 0)
	case Week:
		return t.AddDate(0, 0, 7*n)
	case Day:
		return t.AddDate(0, 0, n)
	case Hour:
		return t.Add(time.Duration(n) * time.Hour)
	case Minute:
		return t.Add(time.Duration(n) * time.Minute)
	case Second:
		return t.Add(time.Duration(n) * time.Second)
	default:
		return t.Add(time.Duration(n) * time.Millisecond)
	}
}

// Approx returns the nominal duration (30-day months, 365-day years)
func (i Interval) Approx() time.Duration {
	var unit time.Duration
	switch i.Unit {
	case Year:
		unit = 365 * 24 * time.Hour
	case Month:
		unit = 30 * 24 * time.Hour
	case Week:
		unit = 7 * 24 * time.Hour
	case Day:
		unit = 24 * time.Hour
	case Hour:
		unit = time.Hour
	case Minute:
		unit = time.Minute
	case Second:
		unit = time.Second
	default:
		unit = time.Millisecond
	}
	return time.Duration(i.Amount) * unit
}

// FromDuration expresses d in the largest clock unit that divides it exactly.
// Sub-millisecond remainders are dropped and the result is at least 1ms
func FromDuration(d time.Duration) Interval {
	d = d.Truncate(time.Millisecond)
	if d < time.Millisecond {
		return Interval{Amount: 1, Unit: Millisecond}
	}
	for _, c := range []struct {
		unit Unit
		size time.Duration
	}{
		{Day, 24 * time.Hour},
		{Hour, time.Hour},
		{Minute, time.Minute},
		{Second, time.Second},
	} {
		if d%c.size == 0 {
			return Interval{Amount: int(d / c.size), Unit: c.unit}
		}
	}
	return Interval{Amount: int(d / time.Millisecond), Unit: Millisecond}
}
