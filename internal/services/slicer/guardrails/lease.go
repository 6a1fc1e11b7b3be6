package guardrails

import (
	"context"
	"errors"
	"sync"
	"time"

	"rangeslicer/internal/modkit/repokit"
	perr "rangeslicer/internal/platform/errors"
	"rangeslicer/internal/platform/logger"
	"rangeslicer/internal/platform/store"
	"rangeslicer/internal/services/slicer/domain"
)

var (
	// ErrLeaseHeld signals another process runs the worker already
	ErrLeaseHeld = errors.New("slicer: worker lease already held")

	// ErrLeaseLost signals the lease expired or was taken while the worker ran
	ErrLeaseLost = errors.New("slicer: worker lease lost")
)

// MakeWorkerLease returns a domain.Lease backed by the slicer_worker_leases table.
// A lease row is claimed when absent, expired or already ours; it is renewed every
// ttl/3 while do runs and deleted afterwards. If a renewal finds the row gone or
// owned by someone else the context passed to do is cancelled with ErrLeaseLost
func MakeWorkerLease(db repokit.TxRunner, holder string, ttl time.Duration) domain.Lease {
	if ttl <= 0 {
		ttl = time.Minute
	}
	secs := ttl.Seconds()

	return func(ctx context.Context, execution string, worker int, do func(context.Context) error) error {
		claimed, err := store.Exists(ctx, db, `
			insert into slicer_worker_leases (execution_id, worker_id, holder, expires_at)
			values ($1, $2, $3, now() + make_interval(secs => $4))
			on conflict (execution_id, worker_id) do update
			set holder = excluded.holder, expires_at = excluded.expires_at
			where slicer_worker_leases.expires_at < now()
			   or slicer_worker_leases.holder = excluded.holder
			returning true
		`, execution, worker, holder, secs)
		if err != nil {
			return perr.FromPostgres(err, "claim worker lease")
		}
		if !claimed {
			return ErrLeaseHeld
		}

		wctx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			t := time.NewTicker(ttl / 3)
			defer t.Stop()
			for {
				select {
				case <-wctx.Done():
					return
				case <-t.C:
				}
				err := store.ExecOne(wctx, db, `
					update slicer_worker_leases
					set expires_at = now() + make_interval(secs => $4)
					where execution_id = $1 and worker_id = $2 and holder = $3
				`, execution, worker, holder, secs)
				switch {
				case errors.Is(err, perr.ErrNotFound):
					cancel(ErrLeaseLost)
					return
				case err != nil && wctx.Err() == nil:
					logger.C(wctx).Warn().Err(err).Msg("slicer: lease renewal failed")
				}
			}
		}()

		err = do(wctx)
		lost := errors.Is(context.Cause(wctx), ErrLeaseLost)
		cancel(nil)
		wg.Wait()

		relCtx, relCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer relCancel()
		if _, rerr := db.Exec(relCtx, `
			delete from slicer_worker_leases
			where execution_id = $1 and worker_id = $2 and holder = $3
		`, execution, worker, holder); rerr != nil {
			logger.C(ctx).Warn().Err(rerr).Msg("slicer: lease release failed")
		}

		if lost {
			return ErrLeaseLost
		}
		return err
	}
}
