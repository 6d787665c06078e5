package store

import (
	"context"
	"fmt"
	"time"
)

// DeleteCompletedJobsOlderThan removes completed jobs whose last update
// is older than olderThan (spec §9 supplement: job_result_ttl, default
// 24h) — completed jobs carry no further operational value once their
// result has had time to be read.
func (s *Store) DeleteCompletedJobsOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM jobs WHERE status = 'completed' AND updated_at < now() - $1::interval`,
		olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("deleting expired completed jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteFailedJobsOlderThan removes failed jobs whose last update is
// older than olderThan (spec §9 supplement: job_failure_ttl, default
// 7d) — kept longer than completed jobs since a failure is more likely
// to need post-mortem inspection.
func (s *Store) DeleteFailedJobsOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM jobs WHERE status = 'failed' AND updated_at < now() - $1::interval`,
		olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("deleting expired failed jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteCaseLogsForTerminalCasesOlderThan removes case_logs rows for
// cases that have reached a terminal status (completed or failed) more
// than olderThan ago (spec §9 supplement: case_log_ttl, default 1h).
// Logs for running/paused/waiting_approval cases are never touched,
// regardless of age, since the case may still resume and append to them.
func (s *Store) DeleteCaseLogsForTerminalCasesOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM case_logs
		WHERE case_id IN (
			SELECT id FROM cases
			WHERE status IN ('completed', 'failed')
			  AND completed_at IS NOT NULL
			  AND completed_at < now() - $1::interval
		)`, olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("deleting expired case logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
