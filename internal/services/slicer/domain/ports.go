package domain

import (
	"context"
	"time"
)

// RunnerPort is the public port of the slicer module
type RunnerPort interface {
	// Run slices exec until every worker is done or ctx ends
	Run(ctx context.Context, exec Execution) error
}

// StatusPort exposes worker progress to the status server
type StatusPort interface {
	Workers() []WorkerSnapshot
}

// Counter is the count oracle over the external store
type Counter interface {
	// CountRange counts records with a timestamp in [start, end)
	CountRange(ctx context.Context, start, end time.Time) (int64, error)

	// CountKeys counts records in [start, end) whose id starts with any of keys
	CountKeys(ctx context.Context, start, end time.Time, keys []string) (int64, error)
}

// Dispatcher hands finished slice descriptors to whatever fetches the records
type Dispatcher interface {
	Dispatch(ctx context.Context, worker int, s Slice) error
}

// DispatchFunc adapts a function to Dispatcher
type DispatchFunc func(ctx context.Context, worker int, s Slice) error

// Dispatch calls f
func (f DispatchFunc) Dispatch(ctx context.Context, worker int, s Slice) error { return f(ctx, worker, s) }

// KeyDispatcher is implemented by dispatchers that take a subsliced slice one key
// group at a time. Progress is then saved after every group so a restart resumes
// inside the slice
type KeyDispatcher interface {
	DispatchKeys(ctx context.Context, worker int, s Slice, ks KeySlice) error
}

// RecoveryLog persists executions and the last slice of each worker
type RecoveryLog interface {
	// LoadExecution returns the stored execution or perr.ErrNotFound
	LoadExecution(ctx context.Context, id string) (Execution, error)

	// Load returns the worker count and records of a previous run of id.
	// An unknown execution yields an empty state
	Load(ctx context.Context, id string) (RecoveryState, error)

	// SaveExecution creates or updates the execution row
	SaveExecution(ctx context.Context, exec Execution) error

	// Save upserts the record of one worker
	Save(ctx context.Context, id string, worker int, rec RecoveryRecord) error

	// Rebase replaces every record of exec with recs, one per worker, and stores
	// the new worker count. Used when a run starts with a different worker count
	Rebase(ctx context.Context, exec Execution, recs []RecoveryRecord) error
}

// Lease runs do while holding the (execution, worker) lease. It returns
// guardrails.ErrLeaseHeld without calling do when another process owns it
type Lease func(ctx context.Context, execution string, worker int, do func(context.Context) error) error
