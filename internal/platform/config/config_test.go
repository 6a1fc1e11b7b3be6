package config

import (
	"testing"
	"time"

	kit "rangeslicer/internal/platform/testkit"
)

func TestPrefixAndKey(t *testing.T) {
	core := New().Prefix("CORE_")
	if got := core.key("WORKERS"); got != "CORE_WORKERS" {
		t.Fatalf("key() = %q, want %q", got, "CORE_WORKERS")
	}
	slicer := core.Prefix("SLICER_")
	if got := slicer.Key("SIZE"); got != "CORE_SLICER_SIZE" {
		t.Fatalf("nested Key() = %q, want %q", got, "CORE_SLICER_SIZE")
	}
}

func TestMayString(t *testing.T) {
	c := New().Prefix("APP_")
	t.Setenv("APP_NAME", "  rangeslicer ")
	if got := c.MayString("NAME", "x"); got != "rangeslicer" {
		t.Fatalf("MayString = %q", got)
	}
	t.Setenv("APP_BLANK", "   ")
	if got := c.MayString("BLANK", "fallback"); got != "fallback" {
		t.Fatalf("blank MayString = %q", got)
	}
}

func TestMayNumbers(t *testing.T) {
	c := New().Prefix("N_")
	if got := c.MayInt("MISSING", 9); got != 9 {
		t.Fatalf("MayInt default = %d", got)
	}
	t.Setenv("N_OK", " 7 ")
	if got := c.MayInt("OK", 0); got != 7 {
		t.Fatalf("MayInt ok = %d", got)
	}
	t.Setenv("N_BAD", "x")
	if got := c.MayInt("BAD", 3); got != 3 {
		t.Fatalf("MayInt bad -> default = %d", got)
	}
	t.Setenv("N_BIG", "10000000000")
	if got := c.MayInt64("BIG", 1); got != 10_000_000_000 {
		t.Fatalf("MayInt64 = %d", got)
	}
	if got := c.MayInt64("BAD", 4); got != 4 {
		t.Fatalf("MayInt64 bad -> default = %d", got)
	}
	t.Setenv("N_F", "0.5")
	if got := c.MayFloat64("F", 1); got != 0.5 {
		t.Fatalf("MayFloat64 = %v", got)
	}
}

func TestMayBoolAndDuration(t *testing.T) {
	c := New().Prefix("B_")
	if !c.MayBool("MISSING", true) {
		t.Fatalf("MayBool default true expected")
	}
	t.Setenv("B_BAD", "nope")
	if c.MayBool("BAD", false) {
		t.Fatalf("MayBool bad -> default false expected")
	}
	t.Setenv("B_DUR", "150ms")
	if got := c.MayDuration("DUR", time.Second); got != 150*time.Millisecond {
		t.Fatalf("MayDuration = %v", got)
	}
	if got := c.MayDuration("BAD", time.Minute); got != time.Minute {
		t.Fatalf("MayDuration bad -> default expected")
	}
}

func TestMayTime(t *testing.T) {
	c := New().Prefix("T_")
	if got := c.MayTime("MISSING", time.Time{}); !got.IsZero() {
		t.Fatalf("MayTime default should be zero")
	}
	t.Setenv("T_START", "2024-03-01T10:00:00+02:00")
	want := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	if got := c.MayTime("START", time.Time{}); !got.Equal(want) || got.Location() != time.UTC {
		t.Fatalf("MayTime = %v, want %v in UTC", got, want)
	}
	t.Setenv("T_BAD", "yesterday")
	kit.MustPanic(t, func() { _ = c.MayTime("BAD", time.Time{}) })
}

func TestMayEnum(t *testing.T) {
	c := New().Prefix("E_")
	if got := c.MayEnum("MISS", "pg", "pg", "ch"); got != "pg" {
		t.Fatalf("MayEnum default = %q", got)
	}
	t.Setenv("E_BACKEND", "CH")
	if got := c.MayEnum("BACKEND", "pg", "pg", "ch"); got != "ch" {
		t.Fatalf("MayEnum canonical value = %q, want ch", got)
	}
	t.Setenv("E_BAD", "mysql")
	kit.MustPanic(t, func() { _ = c.MayEnum("BAD", "pg", "pg", "ch") })
}
