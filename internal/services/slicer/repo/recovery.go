// Package repo provides the Postgres recovery log, an in-memory log for runs
// without a database, and the count oracles over Postgres and ClickHouse tables
package repo

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"time"

	"rangeslicer/internal/modkit/repokit"
	perr "rangeslicer/internal/platform/errors"
	"rangeslicer/internal/platform/store"
	ptime "rangeslicer/internal/platform/time"
	"rangeslicer/internal/services/slicer/domain"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the slicer tables when missing
func EnsureSchema(ctx context.Context, q repokit.Queryer) error {
	_, err := q.Exec(ctx, schemaSQL)
	return perr.FromPostgres(err, "create slicer schema")
}

// Queries is the statement level surface of the recovery tables
type Queries interface {
	GetExecution(ctx context.Context, id string) (domain.Execution, error)
	UpsertExecution(ctx context.Context, exec domain.Execution) error
	ListRecords(ctx context.Context, id string) ([]WorkerRecord, error)
	UpsertRecord(ctx context.Context, id string, worker int, rec domain.RecoveryRecord) error
	DeleteRecords(ctx context.Context, id string) error
}

type (
	// PG is a Postgres binder for Queries
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for Queries
func NewPG() repokit.Binder[Queries] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) Queries { return &queries{q: repokit.RequireQueryer(q)} }

// WorkerRecord is one row of slicer_recovery
type WorkerRecord struct {
	Worker int
	Record domain.RecoveryRecord
}

func (r *queries) GetExecution(ctx context.Context, id string) (domain.Execution, error) {
	return store.One(ctx, r.q, func(row store.Row) (domain.Execution, error) {
		var e domain.Execution
		var limit *time.Time
		if err := row.Scan(&e.ID, &e.Start, &limit, &e.Workers, &e.Persistent, &e.Interval, &e.CreatedAt); err != nil {
			return e, err
		}
		e.Limit = ptime.Value(limit)
		e.Start, e.CreatedAt = e.Start.UTC(), e.CreatedAt.UTC()
		return e, nil
	}, `
		SELECT id, start_at, limit_at, workers, persistent, slice_interval, created_at
		FROM slicer_executions
		WHERE id = $1
	`, id)
}

func (r *queries) UpsertExecution(ctx context.Context, exec domain.Execution) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO slicer_executions (id, start_at, limit_at, workers, persistent, slice_interval)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET workers = excluded.workers, slice_interval = excluded.slice_interval, updated_at = now()
	`, exec.ID, exec.Start.UTC(), ptime.Ptr(exec.Limit), exec.Workers, exec.Persistent, exec.Interval)
	return err
}

func (r *queries) ListRecords(ctx context.Context, id string) ([]WorkerRecord, error) {
	return store.Many(ctx, r.q, func(row store.Row) (WorkerRecord, error) {
		var wr WorkerRecord
		var holes []byte
		var ws, wl *time.Time
		if err := row.Scan(&wr.Worker, &wr.Record.Start, &wr.Record.End, &wr.Record.Limit, &holes,
			&wr.Record.Count, &wr.Record.LastKey, &ws, &wl); err != nil {
			return wr, err
		}
		if err := json.Unmarshal(holes, &wr.Record.Holes); err != nil {
			return wr, perr.Wrapf(err, perr.ErrorCodeDB, "decode holes of worker %d", wr.Worker)
		}
		wr.Record.Start, wr.Record.End, wr.Record.Limit = wr.Record.Start.UTC(), wr.Record.End.UTC(), wr.Record.Limit.UTC()
		if wl != nil {
			wr.Record.Window = domain.Segment{Start: ptime.Value(ws), Limit: ptime.Value(wl)}
		}
		return wr, nil
	}, `
		SELECT worker_id, start_at, end_at, limit_at, holes, count, last_key, window_start, window_limit
		FROM slicer_recovery
		WHERE execution_id = $1
		ORDER BY worker_id
	`, id)
}

func (r *queries) UpsertRecord(ctx context.Context, id string, worker int, rec domain.RecoveryRecord) error {
	holes := rec.Holes
	if holes == nil {
		holes = []domain.Hole{}
	}
	raw, err := json.Marshal(holes)
	if err != nil {
		return err
	}
	var ws, wl *time.Time
	if !rec.Window.Limit.IsZero() {
		ws, wl = ptime.Ptr(rec.Window.Start), ptime.Ptr(rec.Window.Limit)
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO slicer_recovery (
			execution_id, worker_id, start_at, end_at, limit_at, holes, count, last_key, window_start, window_limit
		)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10)
		ON CONFLICT (execution_id, worker_id) DO UPDATE SET
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			limit_at = excluded.limit_at,
			holes = excluded.holes,
			count = excluded.count,
			last_key = excluded.last_key,
			window_start = excluded.window_start,
			window_limit = excluded.window_limit,
			updated_at = now()
	`, id, worker, rec.Start.UTC(), rec.End.UTC(), rec.Limit.UTC(), string(raw), rec.Count, rec.LastKey, ws, wl)
	return err
}

func (r *queries) DeleteRecords(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM slicer_recovery WHERE execution_id = $1`, id)
	return err
}

// Log is the Postgres domain.RecoveryLog
type Log struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[Queries]
}

var _ domain.RecoveryLog = (*Log)(nil)

// NewLog returns a recovery log over db
func NewLog(db repokit.TxRunner) *Log {
	if db == nil {
		panic("slicer repo: nil TxRunner")
	}
	return &Log{DB: db, Binder: NewPG()}
}

// LoadExecution implements domain.RecoveryLog
func (l *Log) LoadExecution(ctx context.Context, id string) (domain.Execution, error) {
	var exec domain.Execution
	err := l.DB.Tx(ctx, func(q repokit.Queryer) error {
		e, err := l.Binder.Bind(q).GetExecution(ctx, id)
		exec = e
		return err
	})
	if errors.Is(err, perr.ErrNotFound) {
		return domain.Execution{}, perr.ErrNotFound
	}
	return exec, perr.FromPostgresf(err, "load execution %s", id)
}

// Load implements domain.RecoveryLog
func (l *Log) Load(ctx context.Context, id string) (domain.RecoveryState, error) {
	var state domain.RecoveryState
	err := l.DB.Tx(ctx, func(q repokit.Queryer) error {
		b := l.Binder.Bind(q)
		exec, err := b.GetExecution(ctx, id)
		if errors.Is(err, perr.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		rows, err := b.ListRecords(ctx, id)
		if err != nil {
			return err
		}
		state.Workers = exec.Workers
		state.Records = make([]*domain.RecoveryRecord, exec.Workers)
		for _, wr := range rows {
			if wr.Worker >= exec.Workers {
				return perr.Configf("execution %s: record for worker %d of %d", id, wr.Worker, exec.Workers)
			}
			rec := wr.Record
			state.Records[wr.Worker] = &rec
		}
		return nil
	})
	if perr.IsCode(err, perr.ErrorCodeConfig) {
		return domain.RecoveryState{}, err
	}
	return state, perr.FromPostgresf(err, "load recovery of %s", id)
}

// SaveExecution implements domain.RecoveryLog
func (l *Log) SaveExecution(ctx context.Context, exec domain.Execution) error {
	err := l.DB.Tx(ctx, func(q repokit.Queryer) error {
		return l.Binder.Bind(q).UpsertExecution(ctx, exec)
	})
	return perr.FromPostgresf(err, "save execution %s", exec.ID)
}

// Save implements domain.RecoveryLog
func (l *Log) Save(ctx context.Context, id string, worker int, rec domain.RecoveryRecord) error {
	err := l.DB.Tx(ctx, func(q repokit.Queryer) error {
		return l.Binder.Bind(q).UpsertRecord(ctx, id, worker, rec)
	})
	return perr.FromPostgresf(err, "save recovery of %s worker %d", id, worker)
}

// Rebase implements domain.RecoveryLog
func (l *Log) Rebase(ctx context.Context, exec domain.Execution, recs []domain.RecoveryRecord) error {
	err := l.DB.Tx(ctx, func(q repokit.Queryer) error {
		b := l.Binder.Bind(q)
		if err := b.UpsertExecution(ctx, exec); err != nil {
			return err
		}
		if err := b.DeleteRecords(ctx, exec.ID); err != nil {
			return err
		}
		for i, rec := range recs {
			if err := b.UpsertRecord(ctx, exec.ID, i, rec); err != nil {
				return err
			}
		}
		return nil
	})
	return perr.FromPostgresf(err, "rebase execution %s onto %d workers", exec.ID, len(recs))
}
