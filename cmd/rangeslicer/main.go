package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"rangeslicer/internal/core/version"
	"rangeslicer/internal/modkit"
	"rangeslicer/internal/modkit/repokit"
	"rangeslicer/internal/platform/config"
	"rangeslicer/internal/platform/logger"
	phttp "rangeslicer/internal/platform/net/http"
	"rangeslicer/internal/platform/net/middleware"
	"rangeslicer/internal/platform/store"
	str "rangeslicer/internal/platform/strings"

	"rangeslicer/internal/services/slicer/domain"
	slicermod "rangeslicer/internal/services/slicer/module"
	"rangeslicer/internal/services/slicer/repo"
)

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")
	httpCfg := root.Prefix("HTTP_STATUS_")
	runCfg := root.Prefix("RANGESLICER_")

	l := logger.Get()

	var (
		fStart      = flag.String("start", "", "range start, RFC 3339 (default RANGESLICER_START)")
		fEnd        = flag.String("end", "", "range end (exclusive), RFC 3339; ignored with -persistent (default RANGESLICER_END)")
		fPersistent = flag.Bool("persistent", false, "keep slicing as time passes instead of stopping at -end")
		fExecution  = flag.String("execution", "", "execution id; generated when empty")
		fRecover    = flag.Bool("recover", false, "resume the execution from its recovery log")
		fBackend    = flag.String("backend", "", "count oracle backend: pg | ch (default CORE_SLICER_BACKEND)")
		fTable      = flag.String("table", "", "table to count")
		fTimeCol    = flag.String("time-column", "", "timestamp column the range applies to")
		fKeyCol     = flag.String("key-column", "", "id column key prefixes apply to")
		fWorkers    = flag.Int("workers", 0, "worker count (default CORE_SLICER_WORKERS)")
		fPerKey     = flag.Bool("per-key", false, "print one line per key group of subsliced slices")
		fVersion    = flag.Bool("version", false, "print the build version and exit")
	)
	flag.Parse()

	if *fVersion {
		bi := version.Info()
		fmt.Printf("rangeslicer %s (%s, %s)\n", bi.Version, bi.Commit, bi.Date)
		return
	}

	if *fRecover && *fExecution == "" {
		l.Panic().Msg("-recover needs -execution")
	}
	exec := domain.Execution{
		ID:         *fExecution,
		Persistent: *fPersistent,
		Start:      runCfg.MayTime("START", time.Time{}),
	}
	if exec.ID == "" {
		exec.ID = uuid.NewString()
	}
	if !exec.Persistent {
		exec.Limit = runCfg.MayTime("END", time.Time{})
	}
	if *fStart != "" {
		t, err := time.Parse(time.RFC3339, *fStart)
		if err != nil {
			l.Panic().Err(err).Msg("bad -start")
		}
		exec.Start = t.UTC()
	}
	if *fEnd != "" && !*fPersistent {
		t, err := time.Parse(time.RFC3339, *fEnd)
		if err != nil {
			l.Panic().Err(err).Msg("bad -end")
		}
		exec.Limit = t.UTC()
	}
	if !*fRecover && exec.Start.IsZero() {
		l.Panic().Msg("must provide -start (and -end unless -persistent)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pgURL, chURL := pgCfg.MayString("DBURL", ""), chCfg.MayString("DBURL", "")
	st, err := store.Open(ctx, store.Config{
		PG: store.PGConfig{
			Enabled:     pgURL != "",
			URL:         pgURL,
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			MinConns:    int32(pgCfg.MayInt("MIN_CONNS", 1)),
			MaxConnIdle: pgCfg.MayDuration("MAX_CONN_IDLE", 5*time.Minute),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled:     chURL != "",
			URL:         chURL,
			DialTimeout: chCfg.MayDuration("DIAL_TIMEOUT", 5*time.Second),
			ClientTag:   "cli",
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()
	if err := repokit.Guard(ctx, st, 10*time.Second); err != nil {
		l.Panic().Err(err).Msg("backends not reachable")
	}
	if st.PG != nil {
		if err := repo.EnsureSchema(ctx, st.PG); err != nil {
			l.Panic().Err(err).Msg("slicer schema")
		}
	}

	var sink domain.Dispatcher = newNDJSON(os.Stdout)
	if *fPerKey {
		sink = perKey{sink.(*ndjson)}
	}

	deps := modkit.Deps{Cfg: root, PG: st.PG, CH: st.CH, Log: *l}
	mod, err := slicermod.New(deps, slicermod.Options{
		Workers:    *fWorkers,
		Persistent: *fPersistent,
		Recover:    *fRecover,
		Backend:    *fBackend,
		Table:      *fTable,
		TimeColumn: *fTimeCol,
		KeyColumn:  *fKeyCol,
	},
		modkit.WithPorts(sink),
		modkit.WithName("slicer"),
		modkit.WithPrefix(httpCfg.MayString("PREFIX", "")),
		modkit.WithMiddlewares(middleware.CORS(str.List(httpCfg.MayString("CORS_ORIGINS", "")))),
	)
	if err != nil {
		l.Panic().Err(err).Msg("slicer module")
	}

	if httpCfg.MayBool("ENABLED", true) {
		srv := phttp.NewServer(root, func(m *chi.Mux) {
			m.Use(middleware.Defaults(httpCfg.MayDuration("SLOW", time.Second))...)
		})
		mod.MountRoutes(srv.Router())
		go func() {
			if err := srv.Run(ctx); err != nil {
				l.Error().Err(err).Msg("status server stopped")
			}
		}()
	}

	ports := mod.Ports().(slicermod.Ports)
	l.Info().Str("execution_id", exec.ID).Bool("persistent", exec.Persistent).Bool("recover", *fRecover).Msg("slicer: run")
	if err := ports.Runner.Run(ctx, exec); err != nil && !errors.Is(err, context.Canceled) {
		l.Fatal().Err(err).Str("execution_id", exec.ID).Msg("slicer failed")
	}
	l.Info().Str("execution_id", exec.ID).Msg("slicer: stopped")
}
