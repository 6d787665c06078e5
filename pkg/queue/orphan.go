package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/complyance/auditor/pkg/metrics"
)

// orphanState tracks orphan-scan metrics for the pool health snapshot.
// Unlike the teacher, recovery itself is not state-mutating here: a job
// whose lease has expired is already reclaimable by the next ClaimJob
// call (its WHERE clause matches lease_expires_at < now()), so this scan
// exists to surface how much reclaiming is happening, not to perform it.
type orphanState struct {
	mu        sync.Mutex
	lastScan  time.Time
	recovered int
}

// runOrphanDetection periodically scans for jobs stuck past their lease
// and logs/counts them, mirroring the teacher's periodic-ticker shape.
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.scanOrphans(ctx); err != nil {
				slog.Error("orphan scan failed", "error", err)
			}
		}
	}
}

// scanOrphans counts jobs whose lease has already expired. These jobs
// need no explicit recovery: the next ClaimJob call on any worker picks
// them back up automatically. We still log and tally them so operators
// can see how often leases are expiring instead of completing normally.
func (p *WorkerPool) scanOrphans(ctx context.Context) error {
	orphans, err := p.store.OrphanedJobs(ctx)
	if err != nil {
		return err
	}

	p.orphans.mu.Lock()
	p.orphans.lastScan = time.Now()
	p.orphans.recovered += len(orphans)
	p.orphans.mu.Unlock()

	if len(orphans) > 0 {
		slog.Warn("found jobs past lease expiry, will be reclaimed by next poll",
			"count", len(orphans))
		for _, j := range orphans {
			metrics.OrphansRecovered.WithLabelValues(string(j.Type)).Inc()
		}
	}

	return nil
}
