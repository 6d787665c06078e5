package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/complyance/auditor/pkg/metrics"
	"github.com/complyance/auditor/pkg/model"
)

// EnqueueJob inserts a new queued job.
func (s *Store) EnqueueJob(ctx context.Context, jobType model.JobType, payload map[string]any, maxRetries int) (*model.Job, error) {
	raw, err := json.Marshal(orEmptyMap(payload))
	if err != nil {
		return nil, fmt.Errorf("marshaling job payload: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO jobs (type, payload, max_retries)
		VALUES ($1, $2, $3)
		RETURNING id, type, payload, status, retries, max_retries, result, error,
		          lease_expires_at, lease_owner, created_at, updated_at`,
		string(jobType), raw, maxRetries)
	job, err := scanJob(row)
	if err != nil {
		return nil, err
	}
	metrics.JobsEnqueued.WithLabelValues(string(jobType)).Inc()
	return job, nil
}

// ClaimJob atomically leases the oldest queued (or lease-expired running)
// job, assigning it to owner for leaseFor. A queued job given a backoff
// delay by RequeueJob is skipped until that delay has passed. Returns nil, nil if no job is
// available — the caller (Worker) treats that as "nothing to do right now",
// matching the teacher's ErrNoSessionsAvailable poll-and-continue pattern.
func (s *Store) ClaimJob(ctx context.Context, owner string, leaseFor time.Duration) (*model.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT id FROM jobs
		WHERE (status = 'queued' AND (lease_expires_at IS NULL OR lease_expires_at < now()))
		   OR (status = 'running' AND lease_expires_at IS NOT NULL AND lease_expires_at < now())
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1`)

	var id string
	if err := row.Scan(&id); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("selecting claimable job: %w", err)
	}

	claimed := tx.QueryRow(ctx, `
		UPDATE jobs
		SET status = 'running', lease_owner = $2, lease_expires_at = now() + make_interval(secs => $3),
		    retries = CASE WHEN status = 'running' THEN retries + 1 ELSE retries END,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, type, payload, status, retries, max_retries, result, error,
		          lease_expires_at, lease_owner, created_at, updated_at`,
		id, owner, leaseFor.Seconds())

	job, err := scanJob(claimed)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}
	return job, nil
}

// CompleteJob marks a job completed with its result blob.
func (s *Store) CompleteJob(ctx context.Context, jobID string, result map[string]any) error {
	raw, err := json.Marshal(orEmptyMap(result))
	if err != nil {
		return fmt.Errorf("marshaling job result: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'completed', result = $2, lease_expires_at = NULL, updated_at = now()
		WHERE id = $1`, jobID, raw)
	if err != nil {
		return fmt.Errorf("completing job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FailJob marks a job failed. If retries remain (retries < max_retries) the
// caller is expected to have already re-queued it via RequeueJob instead;
// FailJob is for terminal failure after retries are exhausted.
func (s *Store) FailJob(ctx context.Context, jobID, errMsg string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'failed', error = $2, lease_expires_at = NULL, updated_at = now()
		WHERE id = $1`, jobID, errMsg)
	if err != nil {
		return fmt.Errorf("failing job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RequeueJob returns a job to queued status after a transient failure, to
// be re-leased after the given backoff delay.
func (s *Store) RequeueJob(ctx context.Context, jobID, errMsg string, retryAfter time.Duration) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'queued', error = $2, lease_expires_at = now() + make_interval(secs => $3),
		    retries = retries + 1, lease_owner = '', updated_at = now()
		WHERE id = $1`, jobID, errMsg, retryAfter.Seconds())
	if err != nil {
		return fmt.Errorf("requeuing job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetJob fetches a job by ID.
func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, type, payload, status, retries, max_retries, result, error,
		       lease_expires_at, lease_owner, created_at, updated_at
		FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

// OrphanedJobs returns running jobs whose lease has expired — lost workers
// whose jobs must be recovered by another worker (spec §5's lease-expiry
// semantics).
func (s *Store) OrphanedJobs(ctx context.Context) ([]*model.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, type, payload, status, retries, max_retries, result, error,
		       lease_expires_at, lease_owner, created_at, updated_at
		FROM jobs
		WHERE status = 'running' AND lease_expires_at IS NOT NULL AND lease_expires_at < now()`)
	if err != nil {
		return nil, fmt.Errorf("listing orphaned jobs: %w", err)
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJobRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var status, jobType string
	var payload []byte
	var result []byte

	err := row.Scan(&j.ID, &jobType, &payload, &status, &j.Retries, &j.MaxRetries,
		&result, &j.Error, &j.LeaseExpiresAt, &j.LeaseOwner, &j.CreatedAt, &j.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning job: %w", err)
	}
	j.Type = model.JobType(jobType)
	j.Status = model.JobStatus(status)
	if err := json.Unmarshal(payload, &j.Payload); err != nil {
		return nil, fmt.Errorf("unmarshaling job payload: %w", err)
	}
	if result != nil {
		if err := json.Unmarshal(result, &j.Result); err != nil {
			return nil, fmt.Errorf("unmarshaling job result: %w", err)
		}
	}
	return &j, nil
}

func scanJobRows(rows pgx.Rows) (*model.Job, error) {
	var j model.Job
	var status, jobType string
	var payload []byte
	var result []byte

	err := rows.Scan(&j.ID, &jobType, &payload, &status, &j.Retries, &j.MaxRetries,
		&result, &j.Error, &j.LeaseExpiresAt, &j.LeaseOwner, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning job: %w", err)
	}
	j.Type = model.JobType(jobType)
	j.Status = model.JobStatus(status)
	if err := json.Unmarshal(payload, &j.Payload); err != nil {
		return nil, fmt.Errorf("unmarshaling job payload: %w", err)
	}
	if result != nil {
		if err := json.Unmarshal(result, &j.Result); err != nil {
			return nil, fmt.Errorf("unmarshaling job result: %w", err)
		}
	}
	return &j, nil
}
