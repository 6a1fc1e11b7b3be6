package errors

import (
	stderrs "errors"
	"fmt"
	"testing"
)

func TestErrorTypeAndMethods(t *testing.T) {
	var e *Error
	if e.Error() != "<nil>" {
		t.Fatalf("nil *Error render = %q, want <nil>", e.Error())
	}

	e1 := New(ErrorCodeConfig, "bad interval")
	if CodeOf(e1) != ErrorCodeConfig {
		t.Fatalf("CodeOf(New) = %v", CodeOf(e1))
	}
	e2 := Newf(ErrorCodeInvalidArgument, "bad worker %d", 12)
	if got := e2.Error(); got != "bad worker 12" {
		t.Fatalf("Newf().Error = %q", got)
	}

	src := stderrs.New("root")
	e3 := Wrap(src, ErrorCodeDB, "db failed")
	if u := stderrs.Unwrap(e3); u == nil || u.Error() != "root" {
		t.Fatalf("Wrap did not keep orig")
	}
	if got := e3.Error(); got != "db failed: root" {
		t.Fatalf("Wrap().Error = %q", got)
	}
	if Root(fmt.Errorf("outer: %w", e3)) != src {
		t.Fatalf("Root did not reach the deepest cause")
	}

	e4 := WithKey(e1, "CORE_SLICER_INTERVAL")
	pe, ok := As(e4)
	if !ok || pe.Key() != "CORE_SLICER_INTERVAL" || pe.Code() != ErrorCodeConfig {
		t.Fatalf("WithKey lost metadata: %+v", pe)
	}
	if pe1, _ := As(e1); pe1.Key() != "" {
		t.Fatalf("WithKey mutated the original error")
	}
	if WithKey(src, "k") != src {
		t.Fatalf("WithKey on foreign error should be a no-op")
	}
}

func TestSliceErrors(t *testing.T) {
	cause := stderrs.New("connection refused")
	q := Query(cause, "2024-01-01T00:00:00.000Z")
	if !IsCode(q, ErrorCodeQuery) || !Retryable(q) {
		t.Fatalf("Query error should be retryable, got %v", q)
	}
	if pe, _ := As(q); pe.Key() != "2024-01-01T00:00:00.000Z" {
		t.Fatalf("Query fingerprint = %q", pe.Key())
	}

	// a classified terminal cause keeps its code so it is not retried
	missing := Query(Configf("relation %q does not exist", "events"), "k0")
	if !IsCode(missing, ErrorCodeConfig) || Retryable(missing) {
		t.Fatalf("Query over a config error = %v, want terminal config", missing)
	}
	if pe, _ := As(missing); pe.Key() != "k0" {
		t.Fatalf("Query over a config error lost its fingerprint: %q", pe.Key())
	}
	if busy := Query(Unavailablef("breaker open"), "k0"); !IsCode(busy, ErrorCodeQuery) || !Retryable(busy) {
		t.Fatalf("Query over a transient error = %v, want retryable query", busy)
	}

	x := RetryExhausted(q, "k1", 4)
	if !IsCode(x, ErrorCodeRetryExhausted) || Retryable(x) {
		t.Fatalf("RetryExhausted must be terminal, got %v", x)
	}
	if !stderrs.Is(x, cause) {
		t.Fatalf("RetryExhausted should keep the chain")
	}

	c := ConfigKeyf("CORE_SLICER_ALPHABET", "unknown alphabet %q", "base32")
	if !IsCode(c, ErrorCodeConfig) || Retryable(c) {
		t.Fatalf("config errors are never retried")
	}
	if !Retryable(Unavailablef("down")) {
		t.Fatalf("unavailable should be retryable")
	}
	if Retryable(nil) {
		t.Fatalf("nil is not retryable")
	}
}

func TestCodeString(t *testing.T) {
	cases := map[ErrorCode]string{
		ErrorCodeUnknown:        "unknown",
		ErrorCodeQuery:          "query",
		ErrorCodeRetryExhausted: "retry_exhausted",
		ErrorCode(999):          "unknown",
	}
	for c, want := range cases {
		if got := c.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", c, got, want)
		}
	}
}
