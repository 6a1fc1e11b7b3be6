// Package store provides the storage backends the slicer talks to: Postgres for
// the recovery log and leases, and either Postgres or ClickHouse as count oracle
package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"golang.org/x/sync/errgroup"

	"rangeslicer/internal/platform/logger"
)

// Store is the facade for optional backends
// zero value is safe but does nothing
type Store struct {
	// Log is the logger used by subclients
	Log logger.Logger

	// PG is the postgres sql seam, nil when disabled
	PG TxRunner

	// CH is the clickhouse seam, nil when disabled
	CH Clickhouse
}

// Row exposes the minimal scan contract a single row needs
type Row interface {
	Scan(dest ...any) error
}

// Rows exposes the minimal iteration and scan for a result set
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
	Columns() []string
}

// CommandTag is a tiny interface to inspect command results
type CommandTag interface {
	String() string
	RowsAffected() int64
}

// RowQuerier is the read and write surface repos use for sql
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner wraps transaction execution around a function
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Clickhouse is the read seam the count oracle needs from clickhouse
type Clickhouse interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Ping(ctx context.Context) error
	Close() error
}

// Pinger is any seam that can report readiness
type Pinger interface{ Ping(context.Context) error }

// Open constructs a Store with the requested backends. Enabled backends connect
// concurrently; if any fails the others are closed again. Backends not enabled in
// cfg remain nil on the Store
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}
	s.Log = s.Log.With().Str("component", "store").Logger()

	var (
		pgr TxRunner
		chr Clickhouse
	)
	g, gctx := errgroup.WithContext(ctx)
	if cfg.PG.Enabled {
		g.Go(func() (err error) {
			pgr, err = openPG(gctx, cfg, s)
			return err
		})
	}
	if cfg.CH.Enabled {
		g.Go(func() (err error) {
			chr, err = openCH(gctx, cfg, s)
			return err
		})
	}
	err := g.Wait()
	s.PG, s.CH = pgr, chr
	if err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	return s, nil
}

// Pingers returns the configured backends by name ("pg", "ch")
func (s *Store) Pingers() map[string]Pinger {
	out := map[string]Pinger{}
	if p, ok := s.PG.(Pinger); ok && s.PG != nil {
		out["pg"] = p
	}
	if s.CH != nil {
		out["ch"] = s.CH
	}
	return out
}

// Guard pings every configured backend at once and joins the failures in name order
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	ps := s.Pingers()
	names := slices.Sorted(maps.Keys(ps))
	errs := make([]error, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			if err := ps[name].Ping(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Close closes all initialized backends
// nil backends are ignored
func (s *Store) Close(_ context.Context) error {
	var errs []error
	if s.CH != nil {
		errs = append(errs, s.CH.Close())
	}
	if c, ok := s.PG.(interface{ Close() error }); ok && s.PG != nil {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
