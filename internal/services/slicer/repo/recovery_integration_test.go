//go:build integration_pg

package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"rangeslicer/internal/modkit/repokit"
	perr "rangeslicer/internal/platform/errors"
	"rangeslicer/internal/platform/store"
	"rangeslicer/internal/platform/testkit"
	"rangeslicer/internal/services/slicer/domain"
	"rangeslicer/internal/services/slicer/guardrails"
)

func openPG(t *testing.T) repokit.TxRunner {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, err := store.Open(ctx, store.Config{PG: store.PGConfig{Enabled: true, URL: testkit.StartPostgres(t), MaxConns: 4}})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	if err := EnsureSchema(ctx, st.PG); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	// twice, the schema is idempotent
	if err := EnsureSchema(ctx, st.PG); err != nil {
		t.Fatalf("EnsureSchema again: %v", err)
	}
	return st.PG
}

func TestPostgresIntegration(t *testing.T) {
	db := openPG(t)
	ctx := context.Background()

	t.Run("recovery log", func(t *testing.T) {
		l := NewLog(repokit.WithBeginHooks(db, repokit.StatementTimeout(5*time.Second)))

		if _, err := l.LoadExecution(ctx, "it"); !errors.Is(err, perr.ErrNotFound) {
			t.Fatalf("LoadExecution unknown = %v", err)
		}
		exec := domain.Execution{ID: "it", Start: t0, Limit: t1, Workers: 2, Interval: "10m"}
		if err := l.SaveExecution(ctx, exec); err != nil {
			t.Fatalf("SaveExecution: %v", err)
		}
		rec := domain.RecoveryRecord{
			Start: t0, End: t0.Add(10 * time.Minute), Limit: t0.Add(30 * time.Minute), Count: 12, LastKey: "a3",
			Holes:  []domain.Hole{{Start: t0.Add(time.Minute), End: t0.Add(2 * time.Minute)}},
			Window: domain.Segment{Start: t0, Limit: t1},
		}
		if err := l.Save(ctx, "it", 1, rec); err != nil {
			t.Fatalf("Save: %v", err)
		}

		got, err := l.LoadExecution(ctx, "it")
		if err != nil || !got.Limit.Equal(t1) || got.Workers != 2 || got.Interval != "10m" {
			t.Fatalf("LoadExecution = %+v, %v", got, err)
		}
		st, err := l.Load(ctx, "it")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		r := st.Records[1]
		if st.Records[0] != nil || r == nil || r.LastKey != "a3" || r.Count != 12 || len(r.Holes) != 1 || !r.Window.Limit.Equal(t1) {
			t.Fatalf("state = %+v / %+v", st, r)
		}

		exec.Workers = 1
		if err := l.Rebase(ctx, exec, []domain.RecoveryRecord{{Start: t0, End: t0, Limit: t1}}); err != nil {
			t.Fatalf("Rebase: %v", err)
		}
		st, err = l.Load(ctx, "it")
		if err != nil || st.Workers != 1 || st.Records[0] == nil || !st.Records[0].Window.Limit.IsZero() {
			t.Fatalf("rebased = %+v, %v", st, err)
		}
	})

	t.Run("count oracle", func(t *testing.T) {
		if _, err := db.Exec(ctx, `create table events (id text primary key, created_at timestamptz not null)`); err != nil {
			t.Fatalf("create events: %v", err)
		}
		for i, id := range []string{"a1", "a2", "b1", "c1"} {
			if _, err := db.Exec(ctx, `insert into events values ($1, $2)`, id, t0.Add(time.Duration(i)*time.Minute)); err != nil {
				t.Fatalf("insert: %v", err)
			}
		}
		o, err := NewPGOracle(db, Table{Name: "events", TimeColumn: "created_at", KeyColumn: "id"})
		if err != nil {
			t.Fatalf("NewPGOracle: %v", err)
		}
		if n, err := o.CountRange(ctx, t0, t0.Add(3*time.Minute)); err != nil || n != 3 {
			t.Fatalf("CountRange = %d, %v", n, err)
		}
		if n, err := o.CountKeys(ctx, t0, t1, []string{"a", "c"}); err != nil || n != 3 {
			t.Fatalf("CountKeys = %d, %v", n, err)
		}
	})

	t.Run("worker lease", func(t *testing.T) {
		first := guardrails.MakeWorkerLease(db, "holder-a", time.Minute)
		second := guardrails.MakeWorkerLease(db, "holder-b", time.Minute)

		err := first(ctx, "it", 0, func(ctx context.Context) error {
			inner := second(ctx, "it", 0, func(context.Context) error {
				t.Fatalf("second holder must not run")
				return nil
			})
			if !errors.Is(inner, guardrails.ErrLeaseHeld) {
				t.Fatalf("second claim = %v", inner)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("first claim: %v", err)
		}

		ran := false
		if err := second(ctx, "it", 0, func(context.Context) error { ran = true; return nil }); err != nil || !ran {
			t.Fatalf("claim after release = %v, ran %t", err, ran)
		}
	})
}
