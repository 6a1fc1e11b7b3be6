package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"rangeslicer/internal/modkit/repokit"
	perr "rangeslicer/internal/platform/errors"
	"rangeslicer/internal/services/slicer/domain"
)

// txFake runs fn with itself as the queryer
type txFake struct {
	scripted
	txs int
}

func (f *txFake) Tx(_ context.Context, fn func(q repokit.Queryer) error) error {
	f.txs++
	return fn(f)
}

// fakeQueries records calls in order
type fakeQueries struct {
	exec  *domain.Execution
	recs  []WorkerRecord
	err   error
	calls []string
}

func (f *fakeQueries) GetExecution(context.Context, string) (domain.Execution, error) {
	f.calls = append(f.calls, "get")
	if f.err != nil {
		return domain.Execution{}, f.err
	}
	if f.exec == nil {
		return domain.Execution{}, perr.ErrNotFound
	}
	return *f.exec, nil
}

func (f *fakeQueries) UpsertExecution(_ context.Context, e domain.Execution) error {
	f.calls = append(f.calls, fmt.Sprintf("upsert-exec:%d", e.Workers))
	return f.err
}

func (f *fakeQueries) ListRecords(context.Context, string) ([]WorkerRecord, error) {
	f.calls = append(f.calls, "list")
	return f.recs, f.err
}

func (f *fakeQueries) UpsertRecord(_ context.Context, _ string, worker int, _ domain.RecoveryRecord) error {
	f.calls = append(f.calls, fmt.Sprintf("upsert-rec:%d", worker))
	return f.err
}

func (f *fakeQueries) DeleteRecords(context.Context, string) error {
	f.calls = append(f.calls, "delete")
	return f.err
}

type fakeBinder struct{ q *fakeQueries }

func (b fakeBinder) Bind(repokit.Queryer) Queries { return b.q }

func newFakeLog(q *fakeQueries) (*Log, *txFake) {
	db := &txFake{}
	l := NewLog(db)
	l.Binder = fakeBinder{q: q}
	return l, db
}

func TestLogLoad(t *testing.T) {
	ctx := context.Background()

	l, _ := newFakeLog(&fakeQueries{})
	st, err := l.Load(ctx, "none")
	if err != nil || !st.Empty() {
		t.Fatalf("unknown execution = %+v, %v", st, err)
	}
	if _, err := l.LoadExecution(ctx, "none"); !errors.Is(err, perr.ErrNotFound) {
		t.Fatalf("LoadExecution = %v", err)
	}

	q := &fakeQueries{
		exec: &domain.Execution{ID: "e", Workers: 3},
		recs: []WorkerRecord{{Worker: 2, Record: domain.RecoveryRecord{Start: t0, End: t1, Limit: t1, Count: 3}}},
	}
	l, _ = newFakeLog(q)
	st, err = l.Load(ctx, "e")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Workers != 3 || st.Records[0] != nil || st.Records[2] == nil || st.Records[2].Count != 3 {
		t.Fatalf("state = %+v", st)
	}

	q.recs = append(q.recs, WorkerRecord{Worker: 3})
	if _, err := l.Load(ctx, "e"); !perr.IsCode(err, perr.ErrorCodeConfig) {
		t.Fatalf("out of range worker = %v", err)
	}
}

func TestLogWrapsDatabaseErrors(t *testing.T) {
	l, _ := newFakeLog(&fakeQueries{err: errors.New("conn closed")})
	err := l.Save(context.Background(), "e", 0, domain.RecoveryRecord{})
	if !perr.IsCode(err, perr.ErrorCodeDB) {
		t.Fatalf("Save = %v", err)
	}
	if _, err := l.Load(context.Background(), "e"); !perr.IsCode(err, perr.ErrorCodeDB) {
		t.Fatalf("Load = %v", err)
	}
}

func TestLogRebaseInOneTx(t *testing.T) {
	q := &fakeQueries{}
	l, db := newFakeLog(q)
	recs := []domain.RecoveryRecord{{Start: t0}, {Start: t0}}
	if err := l.Rebase(context.Background(), domain.Execution{ID: "e", Workers: 2}, recs); err != nil {
		t.Fatalf("Rebase: %v", err)
	}
	want := []string{"upsert-exec:2", "delete", "upsert-rec:0", "upsert-rec:1"}
	if fmt.Sprint(q.calls) != fmt.Sprint(want) || db.txs != 1 {
		t.Fatalf("calls = %v in %d txs", q.calls, db.txs)
	}
}

func TestEnsureSchemaRuns(t *testing.T) {
	var got string
	q := &execSpy{fn: func(sql string) { got = sql }}
	if err := EnsureSchema(context.Background(), q); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	for _, table := range []string{"slicer_executions", "slicer_recovery", "slicer_worker_leases"} {
		if !strings.Contains(got, table) {
			t.Fatalf("schema is missing %s", table)
		}
	}
}

type execSpy struct {
	scripted
	fn func(string)
}

func (e execSpy) Exec(_ context.Context, sql string, _ ...any) (repokit.CommandTag, error) {
	e.fn(sql)
	return nil, nil
}
