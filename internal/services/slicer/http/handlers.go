// Package http provides the slicer status endpoints
package http

import (
	"context"
	stdhttp "net/http"
	"sort"
	"time"

	"rangeslicer/internal/core/version"
	phttp "rangeslicer/internal/platform/net/http"
	"rangeslicer/internal/services/slicer/domain"
)

// Pinger is satisfied by backends that expose Ping
type Pinger interface {
	Ping(context.Context) error
}

// Deps are the handler dependencies
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	Status      domain.StatusPort
	Metrics     stdhttp.Handler

	// Checked by /ready; nil entries are reported as skipped
	Backends map[string]Pinger
}

type handlers struct {
	deps Deps
	now  func() time.Time
}

// Register mounts the status routes
func Register(r phttp.Router, d Deps) {
	h := &handlers{deps: d, now: time.Now}

	r.Get("/health", wrap(h.health))
	r.Get("/ready", wrap(h.ready))
	r.Get("/v1/workers", wrap(h.workers))
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	OK      bool              `json:"ok"`
	Service string            `json:"service"`
	Started string            `json:"started"`
	Uptime  int64             `json:"uptime"`
	Build   version.BuildInfo `json:"build"`
}

// ReadyCheck is one backend probe
type ReadyCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // ok fail skipped
	Error  string `json:"error,omitempty"`
}

// ReadyResponse summarizes readiness
type ReadyResponse struct {
	Status string       `json:"status"` // ok fail
	Checks []ReadyCheck `json:"checks"`
}

// WorkersResponse lists per-worker progress
type WorkersResponse struct {
	Workers []domain.WorkerSnapshot `json:"workers"`
	Records int64                   `json:"records"`
	Done    int                     `json:"done"`
}

func (h *handlers) health(_ *stdhttp.Request) (int, any, error) {
	return stdhttp.StatusOK, HealthResponse{
		OK:      true,
		Service: h.deps.ServiceName,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Uptime:  int64(h.now().Sub(h.deps.StartedAt).Seconds()),
		Build:   version.Info(),
	}, nil
}

func (h *handlers) ready(r *stdhttp.Request) (int, any, error) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.deps.Backends))
	for name := range h.deps.Backends {
		names = append(names, name)
	}
	sort.Strings(names)

	out := ReadyResponse{Status: "ok", Checks: make([]ReadyCheck, 0, len(names))}
	for _, name := range names {
		p := h.deps.Backends[name]
		if p == nil {
			out.Checks = append(out.Checks, ReadyCheck{Name: name, Status: "skipped"})
			continue
		}
		if err := p.Ping(ctx); err != nil {
			out.Status = "fail"
			out.Checks = append(out.Checks, ReadyCheck{Name: name, Status: "fail", Error: err.Error()})
			continue
		}
		out.Checks = append(out.Checks, ReadyCheck{Name: name, Status: "ok"})
	}
	if out.Status != "ok" {
		return stdhttp.StatusServiceUnavailable, out, nil
	}
	return stdhttp.StatusOK, out, nil
}

func (h *handlers) workers(_ *stdhttp.Request) (int, any, error) {
	out := WorkersResponse{Workers: []domain.WorkerSnapshot{}}
	if h.deps.Status == nil {
		return stdhttp.StatusOK, out, nil
	}
	out.Workers = h.deps.Status.Workers()
	for _, w := range out.Workers {
		out.Records += w.Records
		if w.State == domain.WorkerDone {
			out.Done++
		}
	}
	return stdhttp.StatusOK, out, nil
}

func wrap(fn func(*stdhttp.Request) (int, any, error)) phttp.Handler {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		status, v, err := fn(r)
		if err != nil {
			phttp.RespondError(w, r, err)
			return
		}
		if status == stdhttp.StatusOK {
			phttp.RespondOK(w, r, v)
			return
		}
		phttp.JSON(w, status, phttp.Envelope{
			StatusCode: status,
			Status:     stdhttp.StatusText(status),
			Data:       v,
		})
	}
}
