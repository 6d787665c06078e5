// Package queue is the Job Queue + worker pool (spec 4.D): enqueue,
// lease, retry, and status for the durable background work that backs
// indexing and auditing. It generalizes the teacher's pkg/queue
// (WorkerPool/Worker/orphan detection over an ent AlertSession) to the
// plain-pgx Job model in pkg/store, since persistence here is hand-written
// SQL rather than generated ent code.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/complyance/auditor/pkg/model"
)

// Sentinel errors mirroring the teacher's ErrNoSessionsAvailable/
// ErrAtCapacity poll-and-continue pattern.
var (
	// ErrNoJobAvailable indicates nothing is currently claimable.
	ErrNoJobAvailable = errors.New("queue: no job available")
)

// ErrFatal wraps an Executor error to force terminal failure even if
// retries remain (spec §7's Input-invalid/Fatal classes: "never
// retried"). Transient errors should be returned unwrapped so the worker
// applies the normal retry-then-fail policy.
type ErrFatal struct{ Err error }

func (e *ErrFatal) Error() string { return e.Err.Error() }
func (e *ErrFatal) Unwrap() error { return e.Err }

// Fatal wraps err so the worker fails the job immediately instead of
// requeuing it.
func Fatal(err error) error { return &ErrFatal{Err: err} }

// Executor runs one job to completion. It owns the entire job body;
// the worker only handles claiming, leasing, retry bookkeeping, and
// terminal status transitions — the same division of labor as the
// teacher's SessionExecutor/Worker split.
type Executor interface {
	Execute(ctx context.Context, job *model.Job) (result map[string]any, err error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, job *model.Job) (map[string]any, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, job *model.Job) (map[string]any, error) {
	return f(ctx, job)
}

// WorkerHealth reports one worker's current state for the pool health
// snapshot, mirroring the teacher's WorkerHealth.
type WorkerHealth struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"` // "idle" or "working"
	CurrentJobID string    `json:"current_job_id,omitempty"`
	JobsHandled  int       `json:"jobs_handled"`
	LastActivity time.Time `json:"last_activity"`
}

// PoolHealth is the worker pool's aggregate health snapshot, exposed by
// the supplemented GET /jobs/health endpoint (SPEC_FULL.md supplement 2).
type PoolHealth struct {
	TotalWorkers     int            `json:"total_workers"`
	ActiveWorkers    int            `json:"active_workers"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
}
