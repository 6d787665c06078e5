package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/complyance/auditor/pkg/config"
	"github.com/complyance/auditor/pkg/model"
	"github.com/complyance/auditor/pkg/store"
)

// ExecutorFor resolves the Executor that should run a job of the given
// type. The indexer and orchestrator packages each register themselves
// under their job type at process start.
type ExecutorFor func(jobType model.JobType) (Executor, bool)

// WorkerPool manages a pool of queue workers against a single Store,
// mirroring the teacher's WorkerPool/orphan-detection split.
type WorkerPool struct {
	workerIDPrefix string
	store          *store.Store
	cfg            *config.QueueConfig
	jobTimeout     time.Duration
	executorFor    ExecutorFor

	workers  []*Worker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool

	orphans orphanState
}

// NewWorkerPool creates a worker pool that leases jobs from s and
// dispatches them to the Executor registered for each job's type.
// jobTimeout bounds each claimed job's lease and execution window
// (config.Defaults.JobTimeout).
func NewWorkerPool(workerIDPrefix string, s *store.Store, cfg *config.QueueConfig, jobTimeout time.Duration, executorFor ExecutorFor) *WorkerPool {
	return &WorkerPool{
		workerIDPrefix: workerIDPrefix,
		store:          s,
		cfg:            cfg,
		jobTimeout:     jobTimeout,
		executorFor:    executorFor,
		stopCh:         make(chan struct{}),
	}
}

// Start spawns worker goroutines and the orphan-detection background
// task. Safe to call once; a second call is a no-op.
func (p *WorkerPool) Start(ctx context.Context) {
	if p.started {
		slog.Warn("worker pool already started, ignoring duplicate Start call")
		return
	}
	p.started = true

	slog.Info("starting worker pool", "worker_count", p.cfg.WorkerCount)
	for i := 0; i < p.cfg.WorkerCount; i++ {
		w := NewWorker(fmt.Sprintf("%s-worker-%d", p.workerIDPrefix, i), p.store, p.cfg, p.jobTimeout, p.executorFor)
		p.workers = append(p.workers, w)
		w.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanDetection(ctx)
	}()
}

// Stop signals every worker to stop and waits (bounded by
// GracefulShutdownTimeout at the caller's discretion) for in-flight jobs
// to finish before returning (spec §9 supplement 3).
func (p *WorkerPool) Stop() {
	slog.Info("stopping worker pool gracefully")
	for _, w := range p.workers {
		w.Stop()
	}
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	slog.Info("worker pool stopped")
}

// Health returns a snapshot of the pool's current state.
func (p *WorkerPool) Health() PoolHealth {
	stats := make([]WorkerHealth, len(p.workers))
	active := 0
	for i, w := range p.workers {
		h := w.Health()
		stats[i] = h
		if h.Status == string(WorkerStatusWorking) {
			active++
		}
	}
	p.orphans.mu.Lock()
	lastScan, recovered := p.orphans.lastScan, p.orphans.recovered
	p.orphans.mu.Unlock()

	return PoolHealth{
		TotalWorkers:     len(p.workers),
		ActiveWorkers:    active,
		WorkerStats:      stats,
		LastOrphanScan:   lastScan,
		OrphansRecovered: recovered,
	}
}
