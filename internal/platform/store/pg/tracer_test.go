package pg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"rangeslicer/internal/platform/logger"
)

func TestCompact(t *testing.T) {
	cases := map[string]string{
		"select\n\t1":           "select 1",
		"  a   b  ":             "a b",
		"":                      "",
		"insert into x\r\nvals": "insert into x vals",
	}
	for in, want := range cases {
		if got := compact(in); got != want {
			t.Fatalf("compact(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTracerLevels(t *testing.T) {
	var buf bytes.Buffer
	root := zerolog.New(&buf).Level(zerolog.ErrorLevel)
	tr := Tracer(root)

	ctx := logger.WithWorker(context.Background(), "exec-1", 2)
	tr.OnQuery(ctx, QueryEvent{SQL: "select\n 1", ElapsedUS: 1500})
	tr.OnQuery(ctx, QueryEvent{SQL: "select 2", Err: errors.New("boom")})

	dec := json.NewDecoder(&buf)
	var first, second map[string]any
	if err := dec.Decode(&first); err != nil {
		t.Fatalf("first line: %v", err)
	}
	if err := dec.Decode(&second); err != nil {
		t.Fatalf("second line: %v", err)
	}
	if first["level"] != "debug" || first["sql"] != "select 1" || first["elapsed_ms"] != 1.5 {
		t.Fatalf("first = %v", first)
	}
	if first["worker_id"] != float64(2) {
		t.Fatalf("worker id missing: %v", first)
	}
	if second["level"] != "warn" || second["error"] != "boom" {
		t.Fatalf("second = %v", second)
	}
}
