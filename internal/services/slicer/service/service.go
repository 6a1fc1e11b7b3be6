// Package service implements the slicing engine: sizing date slices against the
// count oracle, splitting oversized ones by id prefix and driving one cursor per
// worker until the range is covered
package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"rangeslicer/internal/core/daterange"
	"rangeslicer/internal/core/interval"
	"rangeslicer/internal/core/recovery"
	"rangeslicer/internal/core/window"
	perr "rangeslicer/internal/platform/errors"
	"rangeslicer/internal/platform/logger"
	"rangeslicer/internal/platform/metrics"
	"rangeslicer/internal/services/slicer/domain"
	"rangeslicer/internal/services/slicer/guardrails"
)

// RunConfig holds the runner-only settings on top of the orchestrator Config
type RunConfig struct {
	Config

	// Recover loads the previous run of the execution before starting
	Recover bool

	// Poll is how often a waiting streaming worker asks again; <=0 -> 1s
	Poll time.Duration

	// Timeouts applied via guardrails to dispatch and recovery writes
	Timeouts guardrails.Timeouts
}

// Service runs executions
type Service struct {
	Counter  domain.Counter
	Log      domain.RecoveryLog
	Dispatch domain.Dispatcher
	Cfg      RunConfig

	// Lease(ctx, execution, worker, do) runs do while owning the worker; optional
	Lease domain.Lease

	board *board
}

var (
	_ domain.RunnerPort = (*Service)(nil)
	_ domain.StatusPort = (*Service)(nil)
)

// New constructs the slicing service
func New(counter domain.Counter, log domain.RecoveryLog, dispatch domain.Dispatcher, cfg RunConfig, lease domain.Lease) *Service {
	if counter == nil {
		panic("slicer.Service requires a non nil Counter")
	}
	if log == nil {
		panic("slicer.Service requires a non nil RecoveryLog")
	}
	if dispatch == nil {
		panic("slicer.Service requires a non nil Dispatcher")
	}
	return &Service{
		Counter:  counter,
		Log:      log,
		Dispatch: dispatch,
		Cfg:      cfg,
		Lease:    lease,
		board:    newBoard(cfg.Now),
	}
}

// Workers implements domain.StatusPort
func (s *Service) Workers() []domain.WorkerSnapshot { return s.board.list() }

// Run implements domain.RunnerPort. In once mode it returns when every worker is
// done; in streaming mode it runs until ctx ends. A cancelled ctx is a clean stop
func (s *Service) Run(ctx context.Context, exec domain.Execution) error {
	cfg := s.Cfg.Config
	if cfg.Workers < 1 {
		return perr.ConfigKeyf("workers", "workers must be at least 1, got %d", cfg.Workers)
	}
	if cfg.SubsliceByKey {
		if err := cfg.Alphabet.CheckWorkers(cfg.Workers); err != nil {
			return err
		}
	}

	exec, state, err := s.prepare(ctx, exec)
	if err != nil {
		return err
	}
	cfg.Persistent = exec.Persistent

	if exec.Interval != "" && !interval.IsAuto(exec.Interval) {
		iv, err := interval.Parse(exec.Interval)
		if err != nil {
			return err
		}
		cfg.Interval = iv
	}
	if cfg.Interval.IsZero() {
		limit := exec.Limit
		if exec.Persistent {
			limit = s.horizon(cfg)
		}
		iv, err := ResolveInterval(ctx, s.Counter, exec.Start, limit, cfg.Ceiling)
		if err != nil {
			return err
		}
		cfg.Interval = iv
		logger.C(ctx).Info().Str("interval", iv.String()).Msg("slicer: resolved auto interval")
	}
	// persistent windows depend on the interval, keep it stable across restarts
	exec.Interval = cfg.Interval.String()

	full := daterange.Segment{Start: exec.Start, Limit: exec.Limit}
	if exec.Persistent {
		full.Limit = cfg.Interval.AddTo(exec.Start)
	}

	places, rebased, err := s.place(exec, state, full, cfg)
	if err != nil {
		return err
	}

	exec.Workers = cfg.Workers
	if err := s.persistStart(ctx, exec, rebased); err != nil {
		return err
	}

	var barrier *window.State
	if exec.Persistent {
		barrier = window.New(cfg.Workers)
	}

	logger.C(ctx).Info().Str("execution_id", exec.ID).Int("workers", cfg.Workers).
		Bool("persistent", exec.Persistent).Int("recovered_workers", state.Workers).
		Str("interval", cfg.Interval.String()).Msg("slicer: starting")

	var g *errgroup.Group
	gctx := ctx
	if exec.Persistent {
		// one stuck worker would hold every window, stop them all
		g, gctx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}
	for id := range cfg.Workers {
		g.Go(func() error {
			return s.runWorker(gctx, exec, id, cfg, barrier, places[id])
		})
	}
	err = g.Wait()
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// prepare fills exec from a previous run when recovering and loads its records
func (s *Service) prepare(ctx context.Context, exec domain.Execution) (domain.Execution, domain.RecoveryState, error) {
	var state domain.RecoveryState
	if !s.Cfg.Recover {
		return exec, state, s.validateRange(exec)
	}

	stored, err := s.Log.LoadExecution(ctx, exec.ID)
	switch {
	case errors.Is(err, perr.ErrNotFound):
		logger.C(ctx).Info().Str("execution_id", exec.ID).Msg("slicer: nothing to recover, starting fresh")
		return exec, state, s.validateRange(exec)
	case err != nil:
		return exec, state, err
	}

	if stored.Persistent != exec.Persistent {
		return exec, state, perr.Configf("execution %s was started with persistent=%t", exec.ID, stored.Persistent)
	}
	exec.Start, exec.Limit, exec.CreatedAt = stored.Start, stored.Limit, stored.CreatedAt
	if exec.Persistent {
		exec.Interval = stored.Interval
	}

	state, err = s.Log.Load(ctx, exec.ID)
	if err != nil {
		return exec, state, err
	}
	if err := state.Validate(); err != nil {
		return exec, state, err
	}
	return exec, state, s.validateRange(exec)
}

func (s *Service) validateRange(exec domain.Execution) error {
	if exec.ID == "" {
		return perr.ConfigKeyf("execution", "execution id is required")
	}
	if exec.Start.IsZero() {
		return perr.ConfigKeyf("start", "start is required")
	}
	if !exec.Persistent && !exec.Limit.After(exec.Start) {
		return perr.ConfigKeyf("end", "end %s must be after start %s",
			exec.Limit.Format(time.RFC3339), exec.Start.Format(time.RFC3339))
	}
	return nil
}

// place computes every worker's starting point. When the worker count changed
// it also returns the zero-progress records that describe the new placement
func (s *Service) place(exec domain.Execution, state domain.RecoveryState, full daterange.Segment, cfg Config) ([]Placement, []domain.RecoveryRecord, error) {
	m := cfg.Workers
	places := make([]Placement, m)

	if state.Empty() {
		for id := range m {
			places[id] = Placement{Cursor: recovery.Reconcile(state, full, m, id), Window: full}
		}
		return places, nil, nil
	}

	recs := recovery.Fill(state, full)
	if len(recs) == m {
		for id := range m {
			r := recs[id]
			p := Placement{Cursor: recovery.Reconcile(state, full, m, id), Window: r.Window}
			if r.LastKey != "" && r.End.After(r.Start) {
				p.Cursor = daterange.Cursor{Start: r.Start, End: r.End, Limit: r.Limit, Holes: r.Holes}
				p.ResumeKey = r.LastKey
			}
			places[id] = p
		}
		return places, nil, nil
	}

	w := full
	if exec.Persistent {
		shared, ok := recovery.SharedWindow(recs)
		if !ok {
			return nil, nil, perr.Configf("execution %s: workers stopped in different windows, restart with %d workers", exec.ID, len(recs))
		}
		w = shared
	}

	// a slice interrupted between key groups is redone as a whole
	adjusted := domain.RecoveryState{Workers: len(recs), Records: make([]*domain.RecoveryRecord, len(recs))}
	for i := range recs {
		r := recs[i]
		if r.LastKey != "" {
			r.End, r.LastKey = r.Start, ""
		}
		adjusted.Records[i] = &r
	}

	rebased := make([]domain.RecoveryRecord, m)
	for id := range m {
		c := recovery.Reconcile(adjusted, w, m, id)
		places[id] = Placement{Cursor: c, Window: w}
		rebased[id] = domain.RecoveryRecord{Start: c.Start, End: c.Start, Limit: c.Limit, Holes: c.Holes, Window: w}
	}
	return places, rebased, nil
}

func (s *Service) persistStart(ctx context.Context, exec domain.Execution, rebased []domain.RecoveryRecord) error {
	sctx, cancel := guardrails.ForSave(ctx, s.Cfg.Timeouts)
	defer cancel()
	if rebased != nil {
		return s.Log.Rebase(sctx, exec, rebased)
	}
	return s.Log.SaveExecution(sctx, exec)
}

func (s *Service) horizon(cfg Config) time.Time {
	now := cfg.now()
	if cfg.Delay.IsZero() {
		return now
	}
	return cfg.Delay.SubFrom(now)
}

func (s *Service) runWorker(ctx context.Context, exec domain.Execution, id int, cfg Config, barrier *window.State, at Placement) error {
	ctx = logger.WithWorker(ctx, exec.ID, id)
	s.board.set(id, domain.WorkerStarting, at.Cursor, at.Window)

	run := func(ctx context.Context) error { return s.loop(ctx, exec, id, cfg, barrier, at) }
	if s.Lease == nil {
		return s.finish(ctx, id, run(ctx))
	}
	err := s.Lease(ctx, exec.ID, id, run)
	if errors.Is(err, guardrails.ErrLeaseHeld) {
		if cfg.Persistent {
			// the window barrier waits on every worker of this process
			return s.finish(ctx, id, perr.Wrapf(err, perr.ErrorCodeConflict,
				"streaming worker %d of %s is owned by another process", id, exec.ID))
		}
		logger.C(ctx).Warn().Msg("slicer: worker owned by another process, skipping")
		s.board.fail(id, domain.WorkerSkipped, nil)
		return nil
	}
	return s.finish(ctx, id, err)
}

func (s *Service) finish(ctx context.Context, id int, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		s.board.fail(id, domain.WorkerDone, nil)
		return err
	default:
		logger.C(ctx).Error().Err(err).Msg("slicer: worker failed")
		s.board.fail(id, domain.WorkerFailed, err)
		return err
	}
}

func (s *Service) loop(ctx context.Context, exec domain.Execution, id int, cfg Config, barrier *window.State, at Placement) error {
	metrics.WorkersActive.Inc()
	defer metrics.WorkersActive.Dec()

	o := NewOrchestrator(id, cfg, s.Counter, barrier, at)
	poll := s.Cfg.Poll
	if poll <= 0 {
		poll = time.Second
	}
	var ticker *time.Ticker

	for {
		res, err := o.Next(ctx)
		if err != nil {
			return err
		}

		switch res.Status {
		case domain.StatusDone:
			s.board.set(id, domain.WorkerDone, o.Cursor(), o.Window())
			logger.C(ctx).Info().Msg("slicer: worker done")
			return nil

		case domain.StatusEmpty:
			s.board.set(id, domain.WorkerWaiting, o.Cursor(), o.Window())
			if ticker == nil {
				ticker = time.NewTicker(poll)
				defer ticker.Stop()
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}

		case domain.StatusSlice:
			if err := s.deliver(ctx, exec, id, res.Slice, o.Window()); err != nil {
				return err
			}
			s.board.sliced(id, res.Slice.Count)
			s.board.set(id, domain.WorkerRunning, o.Cursor(), o.Window())
		}
	}
}

// deliver dispatches sl and records it as the worker's last slice. Dispatchers
// that take key groups one at a time get a record after every group
func (s *Service) deliver(ctx context.Context, exec domain.Execution, id int, sl domain.Slice, w daterange.Segment) error {
	rec := domain.RecoveryRecord{
		Start:  sl.Start,
		End:    sl.End,
		Limit:  sl.Limit,
		Holes:  sl.Holes,
		Count:  sl.Count,
		Window: w,
	}

	kd, perKey := s.Dispatch.(domain.KeyDispatcher)
	if !perKey || len(sl.Keys) == 0 {
		if err := s.dispatch(ctx, func(c context.Context) error { return s.Dispatch.Dispatch(c, id, sl) }); err != nil {
			return err
		}
		return s.save(ctx, exec.ID, id, rec)
	}

	for i, ks := range sl.Keys {
		if err := s.dispatch(ctx, func(c context.Context) error { return kd.DispatchKeys(c, id, sl, ks) }); err != nil {
			return err
		}
		part := rec
		if i < len(sl.Keys)-1 {
			part.LastKey = ks.Keys[len(ks.Keys)-1]
		}
		if err := s.save(ctx, exec.ID, id, part); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, fn func(context.Context) error) error {
	dctx, cancel := guardrails.ForDispatch(ctx, s.Cfg.Timeouts)
	defer cancel()
	if err := fn(dctx); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "dispatch slice")
	}
	return nil
}

// save writes the record with the same backoff the count queries get
func (s *Service) save(ctx context.Context, execution string, id int, rec domain.RecoveryRecord) error {
	attempts := max(s.Cfg.Retries, 1)
	var last error
	for i := range attempts {
		sctx, cancel := guardrails.ForSave(ctx, s.Cfg.Timeouts)
		err := s.Log.Save(sctx, execution, id, rec)
		cancel()
		if err == nil {
			return nil
		}
		last = err
		if !perr.Retryable(err) || i == attempts-1 {
			break
		}
		if se := sleepCtx(ctx, backoff(s.Cfg.RetryBase, s.Cfg.RetryCap, i+1)); se != nil {
			return se
		}
	}
	return last
}
