package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/complyance/auditor/pkg/config"
	"github.com/complyance/auditor/pkg/metrics"
	"github.com/complyance/auditor/pkg/model"
	"github.com/complyance/auditor/pkg/store"
)

// WorkerStatus is a worker's current activity state.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Worker polls the store for claimable jobs and runs them through the
// Executor registered for their type, exactly mirroring the teacher's
// Worker.run poll loop (ErrNoJobAvailable → sleep with jitter, any other
// error → brief backoff, continue).
type Worker struct {
	id          string
	store       *store.Store
	cfg         *config.QueueConfig
	jobTimeout  time.Duration
	executorFor ExecutorFor

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu           sync.RWMutex
	status       WorkerStatus
	currentJobID string
	jobsHandled  int
	lastActivity time.Time
}

// NewWorker creates a worker identified by id. jobTimeout bounds both the
// claimed job's lease and its execution context (config.Defaults.JobTimeout).
func NewWorker(id string, s *store.Store, cfg *config.QueueConfig, jobTimeout time.Duration, executorFor ExecutorFor) *Worker {
	return &Worker{
		id:           id,
		store:        s,
		cfg:          cfg,
		jobTimeout:   jobTimeout,
		executorFor:  executorFor,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start runs the worker's poll loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for its current job to
// finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health reports this worker's current state.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:           w.id,
		Status:       string(w.status),
		CurrentJobID: w.currentJobID,
		JobsHandled:  w.jobsHandled,
		LastActivity: w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	log := slog.With("worker_id", w.id)
	log.Info("worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoJobAvailable) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error processing job", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess claims one job and runs it to a terminal or
// requeued state.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	job, err := w.store.ClaimJob(ctx, w.id, w.jobTimeout)
	if err != nil {
		return fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return ErrNoJobAvailable
	}

	log := slog.With("job_id", job.ID, "job_type", job.Type, "worker_id", w.id)
	log.Info("job claimed")

	w.setStatus(WorkerStatusWorking, job.ID)
	defer w.setStatus(WorkerStatusIdle, "")

	executor, ok := w.executorFor(job.Type)
	if !ok {
		w.terminalFail(ctx, job, fmt.Errorf("no executor registered for job type %q", job.Type))
		return nil
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	result, execErr := executor.Execute(jobCtx, job)
	cancel()

	if execErr != nil {
		w.handleFailure(ctx, job, execErr)
		log.Warn("job failed", "error", execErr)
		return nil
	}

	if err := w.store.CompleteJob(ctx, job.ID, result); err != nil {
		return fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	metrics.JobsCompleted.WithLabelValues(string(job.Type)).Inc()

	w.mu.Lock()
	w.jobsHandled++
	w.mu.Unlock()

	log.Info("job completed")
	return nil
}

// handleFailure applies spec 4.D/§7's retry policy: Fatal-wrapped or
// retry-exhausted errors fail the job terminally; anything else is
// requeued with exponential backoff (factor 2, base 2s, cap 10s).
func (w *Worker) handleFailure(ctx context.Context, job *model.Job, execErr error) {
	var fatal *ErrFatal
	if errors.As(execErr, &fatal) || job.Retries >= job.MaxRetries {
		w.terminalFail(ctx, job, execErr)
		return
	}

	delay := backoffDelay(w.cfg, job.Retries)
	if err := w.store.RequeueJob(ctx, job.ID, execErr.Error(), delay); err != nil {
		slog.Error("failed to requeue job", "job_id", job.ID, "error", err)
		return
	}
	metrics.JobsRequeued.WithLabelValues(string(job.Type)).Inc()
}

func (w *Worker) terminalFail(ctx context.Context, job *model.Job, execErr error) {
	if err := w.store.FailJob(ctx, job.ID, execErr.Error()); err != nil {
		slog.Error("failed to mark job failed", "job_id", job.ID, "error", err)
		return
	}
	metrics.JobsFailed.WithLabelValues(string(job.Type)).Inc()
}

// backoffDelay implements spec 4.D's "exponential with factor 2, base 2s,
// cap 10s" retry policy.
func backoffDelay(cfg *config.QueueConfig, attempt int) time.Duration {
	delay := time.Duration(float64(cfg.RetryBaseDelay) * pow(cfg.RetryFactor, attempt))
	if delay > cfg.RetryMaxDelay {
		delay = cfg.RetryMaxDelay
	}
	return delay
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

// pollInterval returns the poll duration with jitter, matching the
// teacher's thundering-herd mitigation.
func (w *Worker) pollInterval() time.Duration {
	base, jitter := w.cfg.PollInterval, w.cfg.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int63n(int64(2 * jitter)))
	return base - jitter + offset
}

func (w *Worker) setStatus(status WorkerStatus, jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentJobID = jobID
	w.lastActivity = time.Now()
}
