package interval

import (
	"testing"
	"time"

	perr "rangeslicer/internal/platform/errors"
	kit "rangeslicer/internal/platform/testkit"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Interval
	}{
		{"5m", Interval{5, Minute}},
		{"1M", Interval{1, Month}},
		{"100ms", Interval{100, Millisecond}},
		{"30s", Interval{30, Second}},
		{"2 hours", Interval{2, Hour}},
		{"1week", Interval{1, Week}},
		{" 3d ", Interval{3, Day}},
		{"1y", Interval{1, Year}},
		{"4 Minutes", Interval{4, Minute}},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("Parse(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "m", "0m", "5", "5x", "auto", "-1h", "1.5h"} {
		_, err := Parse(in)
		if err == nil {
			t.Fatalf("Parse(%q) should fail", in)
		}
		if !perr.IsCode(err, perr.ErrorCodeConfig) {
			t.Fatalf("Parse(%q) code = %v, want config", in, perr.CodeOf(err))
		}
	}
	if !IsAuto(" AUTO ") || IsAuto("5m") {
		t.Fatalf("IsAuto mismatch")
	}
}

func TestAddToCalendarUnits(t *testing.T) {
	t0 := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
	if got := New(1, Month).AddTo(t0); !got.Equal(t0.AddDate(0, 1, 0)) {
		t.Fatalf("month AddTo = %v", got)
	}
	if got := New(2, Week).AddTo(t0); !got.Equal(t0.AddDate(0, 0, 14)) {
		t.Fatalf("week AddTo = %v", got)
	}
	if got := New(90, Second).AddTo(t0); !got.Equal(t0.Add(90 * time.Second)) {
		t.Fatalf("second AddTo = %v", got)
	}
	if got := New(1, Minute).SubFrom(t0); !got.Equal(t0.Add(-time.Minute)) {
		t.Fatalf("SubFrom = %v", got)
	}
	kit.MustPanic(t, func() { New(0, Hour) })
}

func TestStringAndApprox(t *testing.T) {
	if got := New(5, Minute).String(); got != "5m" {
		t.Fatalf("String = %q", got)
	}
	if got := New(1, Month).String(); got != "1M" {
		t.Fatalf("String = %q", got)
	}
	if got := New(3, Day).Approx(); got != 72*time.Hour {
		t.Fatalf("Approx = %v", got)
	}
}

func TestFromDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want Interval
	}{
		{48 * time.Hour, Interval{2, Day}},
		{90 * time.Minute, Interval{90, Minute}},
		{1500 * time.Millisecond, Interval{1500, Millisecond}},
		{10 * time.Second, Interval{10, Second}},
		{time.Microsecond, Interval{1, Millisecond}},
	}
	for _, c := range cases {
		if got := FromDuration(c.in); got != c.want {
			t.Fatalf("FromDuration(%v) = %+v, want %+v", c.in, got, c.want)
		}
	}
}
