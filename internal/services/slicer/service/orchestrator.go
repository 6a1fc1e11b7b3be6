package service

import (
	"context"
	"slices"
	"strconv"
	"time"

	"rangeslicer/internal/core/daterange"
	"rangeslicer/internal/core/interval"
	"rangeslicer/internal/core/keyspace"
	"rangeslicer/internal/core/window"
	perr "rangeslicer/internal/platform/errors"
	"rangeslicer/internal/platform/logger"
	"rangeslicer/internal/platform/metrics"
	"rangeslicer/internal/services/slicer/domain"
)

// Config holds what every worker of an execution shares
type Config struct {
	// Slicing
	Interval interval.Interval
	Ceiling  int64

	// Streaming; Delay zero means windows may reach the present
	Persistent bool
	Delay      interval.Interval

	// Keyspace subslicing
	SubsliceByKey     bool
	SubsliceThreshold int64 // <=0 -> Ceiling
	Alphabet          keyspace.Alphabet
	StartingKeyDepth  int
	MaxKeyDepth       int
	CoalesceKeys      bool

	Workers int

	// Retry of failed count queries
	Retries   int
	RetryBase time.Duration
	RetryCap  time.Duration

	// Now is the clock used for the delay barrier; nil -> time.Now
	Now func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c Config) threshold() int64 {
	if c.SubsliceThreshold > 0 {
		return c.SubsliceThreshold
	}
	return c.Ceiling
}

// Placement is where a worker starts: its cursor, the window the cursor lies in
// and, when resuming inside a subsliced slice, the last key already handed out
type Placement struct {
	Cursor    daterange.Cursor
	Window    daterange.Segment
	ResumeKey string
}

// Orchestrator drives one worker's cursor. It is not safe for concurrent use
type Orchestrator struct {
	id      int
	label   string
	cfg     Config
	counter domain.Counter
	sizer   Sizer
	barrier *window.State

	cursor    daterange.Cursor
	window    daterange.Segment
	checkedIn bool
	resumeKey string

	retry retryTracker
	sleep func(context.Context, time.Duration) error

	// subslicing in progress
	keys      *KeySlicer
	sized     Sized
	collected []domain.KeySlice
}

// NewOrchestrator places worker id. barrier may be nil outside streaming mode
func NewOrchestrator(id int, cfg Config, counter domain.Counter, barrier *window.State, at Placement) *Orchestrator {
	if cfg.Persistent && barrier == nil {
		panic("slicer: streaming orchestrator needs a window barrier")
	}
	o := &Orchestrator{
		id:        id,
		label:     strconv.Itoa(id),
		cfg:       cfg,
		counter:   counter,
		sizer:     Sizer{Counter: counter, Ceiling: cfg.Ceiling},
		barrier:   barrier,
		cursor:    at.Cursor.Clone(),
		window:    at.Window,
		resumeKey: at.ResumeKey,
		sleep:     sleepCtx,
	}
	if o.resumeKey == "" {
		o.cursor.Normalize()
		o.cursor.Step(cfg.Interval)
	} else {
		// re-size exactly the slice the keys belong to
		o.cursor.Normalize()
	}
	return o
}

// Cursor returns a copy of the current cursor
func (o *Orchestrator) Cursor() daterange.Cursor { return o.cursor.Clone() }

// Window returns the window the cursor lies in
func (o *Orchestrator) Window() daterange.Segment { return o.window }

// Next produces the next slice, Empty when a streaming worker must wait, or Done.
// Failed count queries are retried with backoff until the same slice has failed
// more than Retries times
func (o *Orchestrator) Next(ctx context.Context) (domain.Result, error) {
	for {
		res, err := o.step(ctx)
		if err == nil {
			o.retry.clear()
			return res, nil
		}
		if ctx.Err() != nil {
			return domain.Result{}, ctx.Err()
		}
		if !perr.Retryable(err) {
			return domain.Result{}, err
		}

		fp := fingerprint(o.cursor.Start)
		if e, ok := perr.As(err); ok && e.Key() != "" {
			fp = e.Key()
		}
		attempts := o.retry.fail(fp)
		if attempts > o.cfg.Retries {
			return domain.Result{}, perr.RetryExhausted(err, fp, attempts)
		}
		metrics.Retries.WithLabelValues(o.label).Inc()

		wait := backoff(o.cfg.RetryBase, o.cfg.RetryCap, attempts)
		logger.C(ctx).Warn().Err(err).Str("fingerprint", fp).Int("attempt", attempts).
			Dur("backoff", wait).Msg("slicer: count failed, retrying")
		if se := o.sleep(ctx, wait); se != nil {
			return domain.Result{}, se
		}
	}
}

func (o *Orchestrator) step(ctx context.Context) (domain.Result, error) {
	for {
		if o.keys != nil {
			res, more, err := o.drainKeys(ctx)
			if err != nil || !more {
				return res, err
			}
			continue
		}

		if o.cursor.Exhausted() {
			if !o.cfg.Persistent {
				return domain.Result{Status: domain.StatusDone}, nil
			}
			if !o.enterNextWindow(ctx) {
				return domain.Result{Status: domain.StatusEmpty}, nil
			}
			continue
		}

		if o.cfg.Persistent && o.window.Limit.After(o.horizon()) {
			return domain.Result{Status: domain.StatusEmpty}, nil
		}

		if o.resumeKey != "" {
			o.startKeys(Sized{Start: o.cursor.Start, End: o.cursor.End})
			continue
		}

		sized, err := o.sizer.Size(ctx, o.cursor, &o.cfg.Interval)
		if err != nil {
			return domain.Result{}, err
		}

		if o.cfg.SubsliceByKey && sized.Count > o.cfg.threshold() {
			o.startKeys(sized)
			continue
		}
		return o.emit(sized, nil), nil
	}
}

// enterNextWindow checks in at the barrier and moves to the next window once it
// lies behind the delay. It reports whether the cursor moved
func (o *Orchestrator) enterNextWindow(ctx context.Context) bool {
	if !o.checkedIn {
		if !o.barrier.CheckIn(o.id) {
			return false
		}
		o.checkedIn = true
	}

	next := daterange.Segment{Start: o.window.Limit, Limit: o.cfg.Interval.AddTo(o.window.Limit)}
	if next.Limit.After(o.horizon()) {
		return false
	}

	seg := daterange.Divide(next.Start, next.Limit, o.cfg.Workers)[o.id]
	o.window = next
	o.checkedIn = false
	o.cursor = daterange.Cursor{Start: seg.Start, End: seg.Start, Limit: seg.Limit, Holes: o.cursor.Holes}
	o.cursor.Normalize()
	o.cursor.Step(o.cfg.Interval)

	metrics.WindowAdvances.WithLabelValues(o.label).Inc()
	logger.C(ctx).Debug().Time("window_start", next.Start).Time("window_limit", next.Limit).
		Time("start", o.cursor.Start).Time("limit", o.cursor.Limit).Msg("slicer: next window")
	return true
}

// horizon is the latest instant a streaming window may reach
func (o *Orchestrator) horizon() time.Time {
	h := o.cfg.now()
	if !o.cfg.Delay.IsZero() {
		h = o.cfg.Delay.SubFrom(h)
	}
	return h
}

func (o *Orchestrator) startKeys(sized Sized) {
	roots := o.cfg.Alphabet.StartKeys(o.cfg.Workers, o.id, o.cfg.StartingKeyDepth)
	o.keys = NewKeySlicer(KeyOptions{
		Alphabet: o.cfg.Alphabet,
		Ceiling:  o.cfg.Ceiling,
		MaxDepth: o.cfg.MaxKeyDepth,
		Coalesce: o.cfg.CoalesceKeys,
	}, o.counter, sized.Start, sized.End, roots, o.resumeKey)
	o.sized = sized
	o.collected = nil
	o.resumeKey = ""
}

// drainKeys runs the key walk to the end. more reports that the walk produced
// nothing and the caller should continue with the next date slice
func (o *Orchestrator) drainKeys(ctx context.Context) (res domain.Result, more bool, err error) {
	for {
		ks, ok, err := o.keys.Next(ctx)
		if err != nil {
			return domain.Result{}, false, err
		}
		if !ok {
			break
		}
		o.collected = append(o.collected, ks)
	}

	keys, sized := o.collected, o.sized
	o.keys, o.collected = nil, nil
	if len(keys) == 0 {
		o.cursor.Advance(sized.End, o.cfg.Interval)
		return domain.Result{}, true, nil
	}

	var total int64
	for _, ks := range keys {
		total += ks.Count
	}
	sized.Count = total
	metrics.KeySlicesEmitted.WithLabelValues(o.label).Add(float64(len(keys)))
	return o.emit(sized, keys), false, nil
}

func (o *Orchestrator) emit(sized Sized, keys []domain.KeySlice) domain.Result {
	s := domain.Slice{
		Start: sized.Start,
		End:   sized.End,
		Limit: o.cursor.Limit,
		Holes: slices.Clone(o.cursor.Holes),
		Count: sized.Count,
		Keys:  keys,
	}
	o.cursor.Advance(sized.End, o.cfg.Interval)

	metrics.SlicesEmitted.WithLabelValues(o.label, strconv.FormatBool(len(keys) > 0)).Inc()
	metrics.RecordsPlanned.WithLabelValues(o.label).Add(float64(sized.Count))
	return domain.Result{Status: domain.StatusSlice, Slice: s}
}
