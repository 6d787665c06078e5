// Package cleanup is the retention reaper (spec §9 supplement: job and
// case-log TTLs), a background loop that periodically deletes rows past
// their configured retention window. Grounded on the teacher's
// pkg/queue orphan-detection loop (pkg/queue/orphan.go) for the "ticker
// loop with its own stop channel, running alongside the worker pool"
// shape, applied here to storage retention instead of lease recovery.
package cleanup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/complyance/auditor/pkg/config"
)

// Store is the subset of pkg/store.Store the reaper depends on.
type Store interface {
	DeleteCompletedJobsOlderThan(ctx context.Context, olderThan time.Duration) (int64, error)
	DeleteFailedJobsOlderThan(ctx context.Context, olderThan time.Duration) (int64, error)
	DeleteCaseLogsForTerminalCasesOlderThan(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Reaper runs the TTL-based cleanup loop described by config.RetentionConfig.
type Reaper struct {
	store Store
	cfg   *config.RetentionConfig

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds a Reaper. It does nothing until Start is called.
func New(s Store, cfg *config.RetentionConfig) *Reaper {
	return &Reaper{store: s, cfg: cfg, stopCh: make(chan struct{})}
}

// Start runs the cleanup loop in a goroutine, firing every
// cfg.CleanupInterval until Stop is called.
func (r *Reaper) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.run(ctx)
}

// Stop signals the loop to exit and waits for the current pass (if any)
// to finish.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func (r *Reaper) run(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

// runOnce runs a single cleanup pass. A failure on one TTL class is
// logged and does not prevent the others from running — a slow or
// locked table shouldn't starve the rest of the reaper.
func (r *Reaper) runOnce(ctx context.Context) {
	completed, err := r.store.DeleteCompletedJobsOlderThan(ctx, r.cfg.JobResultTTL)
	if err != nil {
		slog.Error("cleanup: deleting completed jobs failed", "error", err)
	} else if completed > 0 {
		slog.Info("cleanup: deleted expired completed jobs", "count", completed)
	}

	failed, err := r.store.DeleteFailedJobsOlderThan(ctx, r.cfg.JobFailureTTL)
	if err != nil {
		slog.Error("cleanup: deleting failed jobs failed", "error", err)
	} else if failed > 0 {
		slog.Info("cleanup: deleted expired failed jobs", "count", failed)
	}

	logs, err := r.store.DeleteCaseLogsForTerminalCasesOlderThan(ctx, r.cfg.CaseLogTTL)
	if err != nil {
		slog.Error("cleanup: deleting expired case logs failed", "error", err)
	} else if logs > 0 {
		slog.Info("cleanup: deleted expired case log entries", "count", logs)
	}
}
