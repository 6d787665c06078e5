package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/complyance/auditor/pkg/model"
)

// CreateCase inserts a new case in the pending state with the full
// workflow step set pending (satisfies P6 from the first write).
func (s *Store) CreateCase(ctx context.Context, repoID string, regulationIDs []string) (*model.Case, error) {
	regIDs, err := json.Marshal(regulationIDs)
	if err != nil {
		return nil, fmt.Errorf("marshaling regulation_ids: %w", err)
	}
	stepsPending, err := json.Marshal(model.AllSteps)
	if err != nil {
		return nil, fmt.Errorf("marshaling steps_pending: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO cases (repo_id, regulation_ids, status, steps_pending)
		VALUES ($1, $2, 'pending', $3)
		RETURNING id, repo_id, regulation_ids, status, current_step, steps_completed,
		          steps_pending, step_results, requires_approval, user_decision,
		          ticket_ids, error_message, cancel_requested, created_at, updated_at, completed_at`,
		repoID, regIDs, stepsPending)
	return scanCase(row)
}

// GetCase fetches a case by ID.
func (s *Store) GetCase(ctx context.Context, id string) (*model.Case, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, repo_id, regulation_ids, status, current_step, steps_completed,
		       steps_pending, step_results, requires_approval, user_decision,
		       ticket_ids, error_message, cancel_requested, created_at, updated_at, completed_at
		FROM cases WHERE id = $1`, id)
	return scanCase(row)
}

// AdvanceCaseStep persists the result of a single completed workflow step:
// moves the step from steps_pending to steps_completed, records its result
// blob, and updates current_step — all in a single statement so a crash
// can never leave the three step sets inconsistent (spec 4.I, P6, P8).
func (s *Store) AdvanceCaseStep(ctx context.Context, caseID string, completedStep model.CaseStep, result map[string]any, nextStep model.CaseStep, status model.CaseStatus) (*model.Case, error) {
	existing, err := s.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	stepsCompleted := append(append([]model.CaseStep{}, existing.StepsCompleted...), completedStep)
	stepsPending := make([]model.CaseStep, 0, len(existing.StepsPending))
	for _, st := range existing.StepsPending {
		if st != completedStep && st != nextStep {
			stepsPending = append(stepsPending, st)
		}
	}
	if nextStep != "" {
		stepsPending = append(stepsPending, nextStep)
	}

	if existing.StepResults == nil {
		existing.StepResults = map[model.CaseStep]map[string]any{}
	}
	existing.StepResults[completedStep] = result

	completedRaw, err := json.Marshal(stepsCompleted)
	if err != nil {
		return nil, fmt.Errorf("marshaling steps_completed: %w", err)
	}
	pendingRaw, err := json.Marshal(stepsPending)
	if err != nil {
		return nil, fmt.Errorf("marshaling steps_pending: %w", err)
	}
	resultsRaw, err := json.Marshal(existing.StepResults)
	if err != nil {
		return nil, fmt.Errorf("marshaling step_results: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE cases SET
			current_step = $2,
			steps_completed = $3,
			steps_pending = $4,
			step_results = $5,
			status = $6,
			updated_at = now()
		WHERE id = $1
		RETURNING id, repo_id, regulation_ids, status, current_step, steps_completed,
		          steps_pending, step_results, requires_approval, user_decision,
		          ticket_ids, error_message, cancel_requested, created_at, updated_at, completed_at`,
		caseID, string(nextStep), completedRaw, pendingRaw, resultsRaw, string(status))
	return scanCase(row)
}

// SetCaseWaitingApproval transitions a case to waiting_approval after the
// Remediator step composes its remediation tasks (spec 4.I step 5).
func (s *Store) SetCaseWaitingApproval(ctx context.Context, caseID string, result map[string]any) (*model.Case, error) {
	c, err := s.AdvanceCaseStep(ctx, caseID, model.StepRemediator, result, "", model.CaseStatusWaitingApproval)
	if err != nil {
		return nil, err
	}
	if _, err := s.pool.Exec(ctx, `UPDATE cases SET requires_approval = true WHERE id = $1`, caseID); err != nil {
		return nil, fmt.Errorf("setting requires_approval: %w", err)
	}
	c.RequiresApproval = true
	return c, nil
}

// ResolveCaseApproval records the user's approve/decline decision and
// moves the case to completed. Ticket creation (for approve) happens
// separately in pkg/remediate before this is called, so ticket_ids is
// supplied here. Guarded to only fire from waiting_approval, the same way
// StartCase guards on pending and ResumeCase guards on paused — a case
// that is pending, running, failed, or already completed returns
// ErrNotFound rather than being forced to completed with a possibly
// stale ticket list, preserving "once completed or failed, no further
// mutation" (spec 4.I).
func (s *Store) ResolveCaseApproval(ctx context.Context, caseID string, decision model.UserDecision, ticketIDs []string) (*model.Case, error) {
	ids, err := json.Marshal(ticketIDs)
	if err != nil {
		return nil, fmt.Errorf("marshaling ticket_ids: %w", err)
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE cases SET
			status = 'completed',
			user_decision = $2,
			ticket_ids = $3,
			completed_at = now(),
			updated_at = now()
		WHERE id = $1 AND status = 'waiting_approval'
		RETURNING id, repo_id, regulation_ids, status, current_step, steps_completed,
		          steps_pending, step_results, requires_approval, user_decision,
		          ticket_ids, error_message, cancel_requested, created_at, updated_at, completed_at`,
		caseID, string(decision), ids)
	return scanCase(row)
}

// FailCase transitions a case to failed with an error message (spec §7:
// Input-invalid/Fatal errors, or a cooperative cancellation observed at a
// step boundary).
func (s *Store) FailCase(ctx context.Context, caseID, errMsg string) (*model.Case, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE cases SET status = 'failed', error_message = $2, updated_at = now(), completed_at = now()
		WHERE id = $1
		RETURNING id, repo_id, regulation_ids, status, current_step, steps_completed,
		          steps_pending, step_results, requires_approval, user_decision,
		          ticket_ids, error_message, cancel_requested, created_at, updated_at, completed_at`,
		caseID, errMsg)
	return scanCase(row)
}

// StartCase transitions a pending case to running.
func (s *Store) StartCase(ctx context.Context, caseID string) (*model.Case, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE cases SET status = 'running', updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING id, repo_id, regulation_ids, status, current_step, steps_completed,
		          steps_pending, step_results, requires_approval, user_decision,
		          ticket_ids, error_message, cancel_requested, created_at, updated_at, completed_at`,
		caseID)
	return scanCase(row)
}

// ResumeCase transitions a paused case back to running.
func (s *Store) ResumeCase(ctx context.Context, caseID string) (*model.Case, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE cases SET status = 'running', updated_at = now()
		WHERE id = $1 AND status = 'paused'
		RETURNING id, repo_id, regulation_ids, status, current_step, steps_completed,
		          steps_pending, step_results, requires_approval, user_decision,
		          ticket_ids, error_message, cancel_requested, created_at, updated_at, completed_at`,
		caseID)
	return scanCase(row)
}

// RequestCaseCancel sets the cooperative cancel flag observed at step
// boundaries (spec §4.I Cancellation, §5).
func (s *Store) RequestCaseCancel(ctx context.Context, caseID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE cases SET cancel_requested = true, updated_at = now() WHERE id = $1`, caseID)
	if err != nil {
		return fmt.Errorf("requesting case cancel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCase(row pgx.Row) (*model.Case, error) {
	var c model.Case
	var status, currentStep, userDecision string
	var regIDs, stepsCompleted, stepsPending, stepResults, ticketIDs []byte

	err := row.Scan(&c.ID, &c.RepoID, &regIDs, &status, &currentStep, &stepsCompleted,
		&stepsPending, &stepResults, &c.RequiresApproval, &userDecision,
		&ticketIDs, &c.ErrorMessage, &c.CancelRequested, &c.CreatedAt, &c.UpdatedAt, &c.CompletedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning case: %w", err)
	}

	c.Status = model.CaseStatus(status)
	c.CurrentStep = model.CaseStep(currentStep)
	c.UserDecision = model.UserDecision(userDecision)

	if err := json.Unmarshal(regIDs, &c.RegulationIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling regulation_ids: %w", err)
	}
	if err := json.Unmarshal(stepsCompleted, &c.StepsCompleted); err != nil {
		return nil, fmt.Errorf("unmarshaling steps_completed: %w", err)
	}
	if err := json.Unmarshal(stepsPending, &c.StepsPending); err != nil {
		return nil, fmt.Errorf("unmarshaling steps_pending: %w", err)
	}
	if err := json.Unmarshal(stepResults, &c.StepResults); err != nil {
		return nil, fmt.Errorf("unmarshaling step_results: %w", err)
	}
	if err := json.Unmarshal(ticketIDs, &c.TicketIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling ticket_ids: %w", err)
	}
	return &c, nil
}
