// Package orchestrator is the Audit Orchestrator (spec 4.I): the durable,
// resumable five-step state machine — Planner, Navigator, Investigator,
// Judge, Remediator — that drives one Case from pending to completion.
// Grounded on the teacher's pkg/agent session runner, which drives tarsy's
// fixed investigation-chain stages (plan → investigate → judge) over a
// durable, crash-resumable session record; this package generalizes that
// same "persist after each stage, resume from steps_completed on restart"
// shape to the fixed five-stage workflow this spec defines.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/complyance/auditor/pkg/adjudicate"
	"github.com/complyance/auditor/pkg/model"
	"github.com/complyance/auditor/pkg/queue"
	"github.com/complyance/auditor/pkg/remediate"
	"github.com/complyance/auditor/pkg/retrieval"
)

// ErrNotWaitingApproval is returned by ResolveApproval when the case is
// not currently waiting_approval (spec 4.I: "once completed or failed, no
// further mutation" — approving/declining twice, or a resume call racing
// a still-running case, must not silently force it to completed).
var ErrNotWaitingApproval = errors.New("orchestrator: case is not waiting_approval")

// Store is the subset of pkg/store.Store the orchestrator depends on.
type Store interface {
	GetCase(ctx context.Context, id string) (*model.Case, error)
	StartCase(ctx context.Context, caseID string) (*model.Case, error)
	ResumeCase(ctx context.Context, caseID string) (*model.Case, error)
	AdvanceCaseStep(ctx context.Context, caseID string, completedStep model.CaseStep, result map[string]any, nextStep model.CaseStep, status model.CaseStatus) (*model.Case, error)
	SetCaseWaitingApproval(ctx context.Context, caseID string, result map[string]any) (*model.Case, error)
	ResolveCaseApproval(ctx context.Context, caseID string, decision model.UserDecision, ticketIDs []string) (*model.Case, error)
	FailCase(ctx context.Context, caseID, errMsg string) (*model.Case, error)
	RequestCaseCancel(ctx context.Context, caseID string) error
	RegulationChunksByRule(ctx context.Context, ruleID string) ([]*model.RegulationChunk, error)
	GetChunkByID(ctx context.Context, id string) (*model.CodeChunk, error)
	CreateFinding(ctx context.Context, f *model.Finding) error
	FindingsByCase(ctx context.Context, caseID string) ([]*model.Finding, error)
}

// LogSink is the subset of pkg/logstream.Stream the orchestrator appends
// progress to. Append never returns an error (advisory, spec 4.H).
type LogSink interface {
	Append(ctx context.Context, caseID, agent, message string)
}

// Orchestrator drives Cases through their fixed five-step workflow.
// One Orchestrator is shared across jobs; it holds no per-case state
// between Execute calls, which is what makes a crash between any two
// steps safe to resume (spec 4.I, P8).
type Orchestrator struct {
	store      Store
	retriever  *retrieval.Retriever
	adjudicate *adjudicate.Adjudicator
	remediate  *remediate.Remediator
	log        LogSink
	topK       int
}

// New builds an Orchestrator from its collaborators. topK bounds the
// Navigator stage's retrieval width per regulation chunk (spec 4.F
// default 10).
func New(s Store, retriever *retrieval.Retriever, adj *adjudicate.Adjudicator, rem *remediate.Remediator, log LogSink, topK int) *Orchestrator {
	if topK <= 0 {
		topK = 10
	}
	return &Orchestrator{store: s, retriever: retriever, adjudicate: adj, remediate: rem, log: log, topK: topK}
}

// JobPayload is the shape of an audit Job's payload.
type JobPayload struct {
	CaseID string `json:"case_id"`
}

// Executor adapts an Orchestrator into a queue.Executor registered under
// model.JobTypeAudit.
func (o *Orchestrator) Executor() queue.Executor {
	return queue.ExecutorFunc(o.execute)
}

func (o *Orchestrator) execute(ctx context.Context, job *model.Job) (map[string]any, error) {
	var payload JobPayload
	raw, err := json.Marshal(job.Payload)
	if err != nil {
		return nil, queue.Fatal(fmt.Errorf("re-marshaling job payload: %w", err))
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, queue.Fatal(fmt.Errorf("audit job %s has malformed payload: %w", job.ID, err))
	}
	if payload.CaseID == "" {
		return nil, queue.Fatal(fmt.Errorf("audit job %s missing case_id", job.ID))
	}

	c, err := o.store.GetCase(ctx, payload.CaseID)
	if err != nil {
		return nil, queue.Fatal(fmt.Errorf("resolving case %s: %w", payload.CaseID, err))
	}

	if c.Status == model.CaseStatusPending {
		if c, err = o.store.StartCase(ctx, payload.CaseID); err != nil {
			return nil, fmt.Errorf("starting case %s: %w", payload.CaseID, err)
		}
	}

	final, err := o.Run(ctx, c)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": string(final.Status), "current_step": string(final.CurrentStep)}, nil
}

// Run drives case through every step not yet in StepsCompleted, in the
// fixed model.AllSteps order, persisting after each one (spec 4.I, P6,
// P8). It returns as soon as the case reaches a terminal or
// waiting_approval state — a crash at any point resumes here exactly
// where AdvanceCaseStep last left steps_completed/steps_pending.
func (o *Orchestrator) Run(ctx context.Context, c *model.Case) (*model.Case, error) {
	for {
		if c.CancelRequested {
			o.log.Append(ctx, c.ID, "orchestrator", "cancellation observed at step boundary, failing case")
			return o.store.FailCase(ctx, c.ID, "cancelled")
		}

		step := nextPendingStep(c)
		if step == "" {
			return c, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var (
			result   map[string]any
			nextStep model.CaseStep
			status   = model.CaseStatusRunning
			runErr   error
		)

		switch step {
		case model.StepPlanner:
			result, runErr = o.runPlanner(ctx, c)
			nextStep = model.StepNavigator
		case model.StepNavigator:
			result, runErr = o.runNavigator(ctx, c)
			nextStep = model.StepInvestigator
		case model.StepInvestigator:
			result, runErr = o.runInvestigator(ctx, c)
			nextStep = model.StepJudge
		case model.StepJudge:
			result, runErr = o.runJudge(ctx, c)
			nextStep = model.StepRemediator
		case model.StepRemediator:
			tasks := remediate.ComposeTasks(mustFindings(ctx, o.store, c.ID))
			result = map[string]any{"task_count": len(tasks), "tasks": tasksToAny(tasks)}
			o.log.Append(ctx, c.ID, "remediator", fmt.Sprintf("composed %d remediation task(s), waiting for approval", len(tasks)))
			updated, err := o.store.SetCaseWaitingApproval(ctx, c.ID, result)
			if err != nil {
				return nil, fmt.Errorf("case %s: persisting remediator step: %w", c.ID, err)
			}
			return updated, nil
		}

		if runErr != nil {
			o.log.Append(ctx, c.ID, "orchestrator", fmt.Sprintf("step %s failed: %v", step, runErr))
			failed, failErr := o.store.FailCase(ctx, c.ID, runErr.Error())
			if failErr != nil {
				return nil, fmt.Errorf("case %s: failing after step %s error: %w", c.ID, step, failErr)
			}
			return failed, nil
		}

		updated, err := o.store.AdvanceCaseStep(ctx, c.ID, step, result, nextStep, status)
		if err != nil {
			return nil, fmt.Errorf("case %s: persisting step %s: %w", c.ID, step, err)
		}
		c = updated
	}
}

// Resume moves a paused case back to running and re-enters Run at the
// first step not yet in steps_completed. A case in any other status makes
// store.ResumeCase fail with store.ErrNotFound.
func (o *Orchestrator) Resume(ctx context.Context, caseID string) (*model.Case, error) {
	c, err := o.store.ResumeCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("resuming case %s: %w", caseID, err)
	}
	return o.Run(ctx, c)
}

// Cancel requests cooperative cancellation of a running case (spec 4.I
// Cancellation): the flag is observed at the next step boundary inside
// Run, never mid-step.
func (o *Orchestrator) Cancel(ctx context.Context, caseID string) error {
	return o.store.RequestCaseCancel(ctx, caseID)
}

// ResolveApproval applies the human's approve/decline decision for a
// waiting_approval case (spec §6, 4.J): on approve, it files tickets for
// every composed remediation task (idempotently, via pkg/remediate) and
// records their IDs; on decline, it completes the case with no tickets.
// editedTasks, when non-nil, replaces the Remediator-composed task list
// with the caller's edited version (spec §6 resume body's `edited_tasks`)
// before ticket creation — the idempotency key is still (case_id,
// finding_id), so an edited title/priority on an already-ticketed finding
// reuses the existing ticket rather than filing a second one (P7).
func (o *Orchestrator) ResolveApproval(ctx context.Context, caseID string, decision model.UserDecision, editedTasks []remediate.Task) (*model.Case, error) {
	c, err := o.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("resolving case %s: %w", caseID, err)
	}
	if c.Status != model.CaseStatusWaitingApproval {
		return nil, fmt.Errorf("resolving case %s: %w", caseID, ErrNotWaitingApproval)
	}

	var ticketIDs []string
	if decision == model.DecisionApprove {
		tasks := tasksFromResult(c.StepResults[model.StepRemediator])
		if editedTasks != nil {
			tasks = editedTasks
		}
		ticketIDs, err = o.remediate.CreateTickets(ctx, caseID, tasks)
		if err != nil {
			return nil, fmt.Errorf("filing remediation tickets for case %s: %w", caseID, err)
		}
		o.log.Append(ctx, caseID, "remediator", fmt.Sprintf("filed %d ticket(s) on approval", len(ticketIDs)))
	} else {
		o.log.Append(ctx, caseID, "remediator", "remediation declined by reviewer")
	}

	return o.store.ResolveCaseApproval(ctx, caseID, decision, ticketIDs)
}

// nextPendingStep returns the first step (in model.AllSteps order) not
// yet present in c.StepsCompleted, or "" if every step is done (P6).
func nextPendingStep(c *model.Case) model.CaseStep {
	done := map[model.CaseStep]bool{}
	for _, s := range c.StepsCompleted {
		done[s] = true
	}
	for _, s := range model.AllSteps {
		if !done[s] {
			return s
		}
	}
	return ""
}

func mustFindings(ctx context.Context, s Store, caseID string) []*model.Finding {
	findings, err := s.FindingsByCase(ctx, caseID)
	if err != nil {
		slog.Warn("loading findings for remediation failed, treating as empty", "case_id", caseID, "error", err)
		return nil
	}
	return findings
}

func tasksToAny(tasks []remediate.Task) []map[string]any {
	out := make([]map[string]any, len(tasks))
	for i, t := range tasks {
		out[i] = map[string]any{
			"finding_id": t.FindingID,
			"title":      t.Title,
			"rule_id":    t.RuleID,
			"file_path":  t.FilePath,
			"priority":   t.Priority,
		}
	}
	return out
}

func tasksFromResult(result map[string]any) []remediate.Task {
	var tasks []remediate.Task
	if err := decodeStepValue(result["tasks"], &tasks); err != nil {
		slog.Warn("decoding remediation tasks from step_results failed", "error", err)
		return nil
	}
	return tasks
}

// decodeStepValue round-trips v through JSON into out. step_results is
// stored as a generic map[string]any, so a value produced in-process
// (still its original Go type) and the same value read back after a
// GetCase reload (now nested map[string]any/[]any) both decode the same
// way through this single path.
func decodeStepValue(v any, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("re-marshaling step value: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decoding step value: %w", err)
	}
	return nil
}
