package store

import (
	"context"
	"fmt"

	"github.com/complyance/auditor/pkg/model"
)

// AppendLog appends one entry to a case's agent log stream (spec 4.H),
// assigning it the next sequential index for that case. Entries are
// advisory — loss of the log never affects case-state correctness, so
// callers should not treat a logging failure as fatal to the step.
func (s *Store) AppendLog(ctx context.Context, caseID, agent, message string) (*model.LogEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning append-log transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// hashtext+advisory lock serializes concurrent appends to the same case
	// without taking the case-state lock the orchestrator uses, per spec
	// §5's "logs bypass this lock".
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, caseID); err != nil {
		return nil, fmt.Errorf("acquiring log append lock: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO case_logs (idx, case_id, agent, message)
		VALUES (COALESCE((SELECT MAX(idx) + 1 FROM case_logs WHERE case_id = $1), 0), $1, $2, $3)
		RETURNING idx, case_id, agent, message, created_at`,
		caseID, agent, message)

	var e model.LogEntry
	if err := row.Scan(&e.Index, &e.CaseID, &e.Agent, &e.Message, &e.Timestamp); err != nil {
		return nil, fmt.Errorf("appending log entry: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing log append: %w", err)
	}
	return &e, nil
}

// ReadLogs returns entries for a case starting at fromIndex (inclusive),
// in append order (spec 4.H, P10).
func (s *Store) ReadLogs(ctx context.Context, caseID string, fromIndex int) ([]*model.LogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT idx, case_id, agent, message, created_at
		FROM case_logs WHERE case_id = $1 AND idx >= $2
		ORDER BY idx ASC`, caseID, fromIndex)
	if err != nil {
		return nil, fmt.Errorf("reading log entries: %w", err)
	}
	defer rows.Close()

	var out []*model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		if err := rows.Scan(&e.Index, &e.CaseID, &e.Agent, &e.Message, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning log entry: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
