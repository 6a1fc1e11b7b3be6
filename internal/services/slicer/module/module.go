// Package module wires the slicer service and exposes its ports
package module

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"rangeslicer/internal/modkit"
	"rangeslicer/internal/modkit/repokit"
	perr "rangeslicer/internal/platform/errors"
	"rangeslicer/internal/platform/metrics"
	phttp "rangeslicer/internal/platform/net/http"
	str "rangeslicer/internal/platform/strings"
	"rangeslicer/internal/services/slicer/domain"
	"rangeslicer/internal/services/slicer/guardrails"
	slicerhttp "rangeslicer/internal/services/slicer/http"
	"rangeslicer/internal/services/slicer/repo"
	"rangeslicer/internal/services/slicer/service"
)

// Ports defines the slicer module ports
type Ports struct {
	Runner domain.RunnerPort
	Status domain.StatusPort
}

// Module implements modkit.Module for the slicer
type Module struct {
	deps   modkit.Deps
	opts   Options
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler
	ports  Ports

	startedAt time.Time
}

var _ modkit.Module = (*Module)(nil)

// New constructs the slicer module. Options come from CORE_SLICER_* with
// overrides (usually CLI flags) merged on top. The dispatcher slices go to is
// injected with modkit.WithPorts
func New(deps modkit.Deps, overrides Options, opts ...modkit.Option) (*Module, error) {
	b := modkit.Build("slicer", opts...)

	o := FromConfig(deps.Cfg).Merge(overrides)
	if err := o.Validate(); err != nil {
		return nil, err
	}
	run, err := o.RunConfig()
	if err != nil {
		return nil, err
	}

	dispatch, ok := modkit.PortsAs[domain.Dispatcher](b)
	if !ok || dispatch == nil {
		return nil, perr.Configf("slicer: a Dispatcher port is required")
	}

	oracle, err := newOracle(deps, o)
	if err != nil {
		return nil, err
	}
	counter := guardrails.Guard(
		guardrails.Breaker(service.Instrument(oracle), o.Backend+"."+o.Table, o.BreakerFailures, o.BreakerCooldown),
		run.Timeouts, o.QPS, o.Burst,
	)

	var (
		log   domain.RecoveryLog
		lease domain.Lease
	)
	if deps.PG != nil {
		log = repo.NewLog(repokit.WithBeginHooks(deps.PG, repokit.StatementTimeout(o.StatementTimeout)))
		if o.Leases {
			lease = guardrails.MakeWorkerLease(deps.PG, uuid.NewString(), o.LeaseTTL)
		}
	} else {
		if o.Recover {
			deps.Log.Warn().Msg("slicer: no postgres configured, recovery state lives in memory only")
		}
		log = repo.NewMemory()
	}

	svc := service.New(counter, log, dispatch, run, lease)

	return &Module{
		deps:      deps,
		opts:      o,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		ports:     Ports{Runner: svc, Status: svc},
		startedAt: time.Now(),
	}, nil
}

func newOracle(deps modkit.Deps, o Options) (domain.Counter, error) {
	switch o.Backend {
	case "ch":
		if deps.CH == nil {
			return nil, perr.ConfigKeyf("BACKEND", "backend ch needs SERVICE_CLICKHOUSE_ENABLED")
		}
		return repo.NewCHOracle(deps.CH, o.OracleTable())
	default:
		if deps.PG == nil {
			return nil, perr.ConfigKeyf("BACKEND", "backend pg needs SERVICE_PGSQL_ENABLED")
		}
		return repo.NewPGOracle(deps.PG, o.OracleTable())
	}
}

// MountRoutes mounts the status endpoints
func (m *Module) MountRoutes(r phttp.Router) {
	prefix := str.Prefix(m.prefix)

	backends := map[string]slicerhttp.Pinger{"pg": nil, "ch": nil}
	if p, ok := m.deps.PG.(slicerhttp.Pinger); ok {
		backends["pg"] = p
	}
	if m.deps.CH != nil {
		backends["ch"] = m.deps.CH
	}

	r.Route(prefix, func(rr phttp.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		slicerhttp.Register(rr, slicerhttp.Deps{
			ServiceName: m.Name(),
			StartedAt:   m.startedAt,
			Status:      m.ports.Status,
			Metrics:     metrics.Handler(),
			Backends:    backends,
		})
	})
}

// Options returns the resolved options
func (m *Module) Options() Options { return m.opts }

// Name returns the module name
func (m *Module) Name() string { return str.Or(m.name, "slicer") }

// Ports returns the module ports (Runner, Status)
func (m *Module) Ports() any { return m.ports }
