// Package logger provides a zerolog wrapper with opinionated defaults and
// worker-scoped logging support
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"rangeslicer/internal/core/version"
	"rangeslicer/internal/platform/config/raw"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Options configures the logger
type Options struct {
	Level        string
	Format       string
	Service      string
	Component    string
	Writer       io.Writer
	WithCaller   bool
	SampleEvery  int
	StaticFields map[string]string
}

// FromEnv builds Options using the logging-free raw config view (no cycles)
func FromEnv() Options {
	rc := raw.New().Prefix("LOG_")
	return Options{
		Level:       strings.ToLower(rc.Get("LEVEL", "info")),
		Format:      strings.ToLower(rc.Get("FORMAT", "console")),
		Service:     rc.Get("SERVICE", "rangeslicer"),
		Component:   rc.Get("COMPONENT", ""),
		WithCaller:  rc.GetBool("CALLER", false),
		SampleEvery: rc.GetInt("SAMPLE_EVERY", 0),
	}
}

var (
	once   sync.Once
	root   atomic.Pointer[zerolog.Logger]
	inited atomic.Bool
)

// Logger is the project-wide logging type
type Logger = zerolog.Logger

// Get returns the process-wide root logger as a pointer
func Get() *Logger {
	if !inited.Load() {
		Init(FromEnv())
	}
	return root.Load()
}

// Init configures zerolog and builds the root logger, safe to call once
func Init(opt Options) {
	once.Do(func() {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
		zerolog.TimeFieldFormat = time.RFC3339Nano

		var w io.Writer = os.Stderr
		if opt.Writer != nil {
			w = opt.Writer
		}
		if opt.Format == "console" {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		}

		bi := version.Info()
		fields := map[string]any{"version": bi.Version, "commit": version.ShortCommit()}
		if opt.Service != "" {
			fields["service"] = opt.Service
		}
		if opt.Component != "" {
			fields["component"] = opt.Component
		}
		for k, v := range opt.StaticFields {
			fields[k] = v
		}

		zc := zerolog.New(w).Level(parseLevel(opt.Level)).With().Timestamp().Fields(fields)
		if opt.WithCaller {
			zc = zc.Caller()
		}
		log := zc.Logger()
		if opt.SampleEvery > 1 {
			log = log.Sample(&zerolog.BasicSampler{N: uint32(opt.SampleEvery)})
		}

		root.Store(&log)
		inited.Store(true)
	})
}

// parseLevel maps a level name to zerolog, accepting "warning". Blank or unknown
// names are info
func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// scope is what a slicing loop stores in its context
type scope struct {
	execution string
	worker    int
}

type scopeKey struct{}

// WithWorker annotates ctx with the execution and worker a slicing loop runs for.
// A negative worker only records the execution
func WithWorker(ctx context.Context, execution string, worker int) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope{execution: execution, worker: worker})
}

// WorkerID returns the worker id stored by WithWorker, or -1
func WorkerID(ctx context.Context) int {
	if sc, ok := ctx.Value(scopeKey{}).(scope); ok && sc.worker >= 0 {
		return sc.worker
	}
	return -1
}

// C returns a child logger enriched from ctx (execution_id, worker_id)
func C(ctx context.Context) *Logger {
	sc, ok := ctx.Value(scopeKey{}).(scope)
	if !ok {
		return Get()
	}
	b := Get().With()
	if sc.execution != "" {
		b = b.Str("execution_id", sc.execution)
	}
	if sc.worker >= 0 {
		b = b.Int("worker_id", sc.worker)
	}
	ll := b.Logger()
	return &ll
}

// Named returns a child logger with a component field
func Named(component string) *Logger {
	if component == "" {
		return Get()
	}
	ll := Get().With().Str("component", component).Logger()
	return &ll
}
