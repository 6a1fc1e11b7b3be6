// Package pg opens the pgx pool used by the recovery log, worker leases and the
// Postgres count oracle
package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"rangeslicer/internal/core/version"
)

// Config configures pgxpool for pg
type Config struct {
	URL      string
	MaxConns int32
	// MinConns keeps connections warm for the lease renewals and recovery saves
	MinConns    int32
	MaxConnIdle time.Duration
	SlowMs      int
}

// PG is a postgres client with pool and optional tracer
type PG struct {
	Pool   *pgxpool.Pool
	Tracer QueryTracer
	SlowMs int
}

var newPool = pgxpool.NewWithConfig

// AppName is the application_name reported unless the URL sets one
func AppName() string { return "rangeslicer/" + version.Info().Version }

// Open creates a PG client from cfg. Explicit settings in the URL win over the
// defaults applied here
func Open(ctx context.Context, cfg Config, tracer QueryTracer) (*PG, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = min(cfg.MinConns, pcfg.MaxConns)
	}
	if cfg.MaxConnIdle > 0 {
		pcfg.MaxConnIdleTime = cfg.MaxConnIdle
	}
	if pcfg.ConnConfig.RuntimeParams["application_name"] == "" {
		pcfg.ConnConfig.RuntimeParams["application_name"] = AppName()
	}
	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	return &PG{Pool: pool, Tracer: tracer, SlowMs: cfg.SlowMs}, nil
}

// Close closes the pool
func (p *PG) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}
