// Package remediate is the Remediator (spec 4.J): composing one
// remediation task per actionable finding and, on HITL approval, creating
// external tickets idempotently keyed on (case_id, finding_id). Grounded
// on the teacher's pkg/slack/fingerprint.go content-derived dedup-key
// pattern, applied here to ticket creation instead of chat notifications —
// the natural key this spec's §9 Open Question asks an implementer to
// choose and document (see DESIGN.md).
package remediate

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/complyance/auditor/pkg/metrics"
	"github.com/complyance/auditor/pkg/model"
	"github.com/complyance/auditor/pkg/provider"
	"github.com/complyance/auditor/pkg/retry"
	"github.com/complyance/auditor/pkg/store"
)

// Task is one remediation task, either generated from a Finding by
// ComposeTasks or substituted by a user edit at resume time (spec §6's
// `edited_tasks`).
type Task struct {
	FindingID string `json:"finding_id"`
	Title     string `json:"title"`
	RuleID    string `json:"rule_id"`
	FilePath  string `json:"file_path"`
	Priority  string `json:"priority"` // "high" | "medium" | "review"
}

// StatusForVerdict maps the Adjudicator's four-way Verdict onto the
// Investigator stage's three-way status vocabulary (spec 4.I step 3):
// compliant -> implemented, partial -> partial, non_compliant -> missing.
// unclear has no natural investigator status, so it maps to the
// conservative "missing" rather than being silently dropped — an
// ambiguous verdict should surface for review, not vanish. Exported so
// pkg/orchestrator's Investigator stage and this package's ComposeTasks
// branch on the same vocabulary instead of drifting apart.
func StatusForVerdict(v model.Verdict) string {
	switch v {
	case model.VerdictCompliant:
		return "implemented"
	case model.VerdictPartial:
		return "partial"
	default:
		return "missing"
	}
}

// ComposeTasks generates exactly one task per actionable finding (spec
// 4.I step 5 / 4.J: one task per missing|partial item). Findings that map
// to "implemented" produce no task; everything else does, including
// unclear, which would otherwise map to the same "missing" status as
// non_compliant and lose its own identity — it gets a distinct "review"
// priority rather than non_compliant's "high" so the two aren't
// conflated downstream.
func ComposeTasks(findings []*model.Finding) []Task {
	var tasks []Task
	for _, f := range findings {
		status := StatusForVerdict(f.Verdict)
		var priority string
		switch status {
		case "missing":
			priority = "high"
			if f.Verdict == model.VerdictUnclear {
				priority = "review"
			}
		case "partial":
			priority = "medium"
		default: // "implemented"
			continue
		}
		tasks = append(tasks, Task{
			FindingID: f.ID,
			Title:     fmt.Sprintf("Remediate %s compliance gap in %s", f.RuleID, f.FilePath),
			RuleID:    f.RuleID,
			FilePath:  f.FilePath,
			Priority:  priority,
		})
	}
	return tasks
}

// TicketStore is the subset of pkg/store.Store ticket idempotency needs.
type TicketStore interface {
	GetTicketMapping(ctx context.Context, caseID, findingID string) (string, error)
	CreateTicketMapping(ctx context.Context, caseID, findingID, ticketID string) error
}

// Remediator creates tickets for approved remediation tasks.
type Remediator struct {
	ticketing provider.TicketingSystem
	store     TicketStore
	limiter   *rate.Limiter
	project   string
}

// New creates a Remediator. limiter may be nil to skip rate limiting.
func New(ticketing provider.TicketingSystem, s TicketStore, limiter *rate.Limiter, project string) *Remediator {
	return &Remediator{ticketing: ticketing, store: s, limiter: limiter, project: project}
}

// CreateTickets files one ticket per task, skipping any (case_id,
// finding_id) pair that already has a ticket mapping (spec 4.J, P7: "at
// most one ticket per finding per case"). The returned slice is in task
// order and always has one ticket ID per task, whether newly created or
// pre-existing.
func (r *Remediator) CreateTickets(ctx context.Context, caseID string, tasks []Task) ([]string, error) {
	ticketIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		id, err := r.createOne(ctx, caseID, t)
		if err != nil {
			return nil, fmt.Errorf("creating ticket for finding %s: %w", t.FindingID, err)
		}
		ticketIDs = append(ticketIDs, id)
	}
	return ticketIDs, nil
}

// createOne is idempotent per (case_id, finding_id): a prior mapping
// short-circuits the remote call entirely, and a race that loses the
// CreateTicketMapping insert still returns the winning mapping's ticket
// ID rather than the loser's freshly-created (now orphaned) remote
// ticket, since the mapping table is the source of truth callers observe.
func (r *Remediator) createOne(ctx context.Context, caseID string, t Task) (string, error) {
	if existing, err := r.store.GetTicketMapping(ctx, caseID, t.FindingID); err == nil {
		metrics.TicketsCreated.WithLabelValues("reused").Inc()
		return existing, nil
	} else if err != store.ErrNotFound {
		return "", fmt.Errorf("checking ticket mapping: %w", err)
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for ticketing rate limit: %w", err)
		}
	}

	body := fmt.Sprintf("Rule: %s\nFile: %s\n\nGenerated by the compliance audit remediation step.", t.RuleID, t.FilePath)

	var ticketID string
	err := retry.Do(ctx, 3, 0, func(ctx context.Context) error {
		id, err := r.ticketing.CreateIssue(ctx, r.project, t.Title, body, t.Priority)
		if err != nil {
			return err
		}
		ticketID = id
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("creating ticket: %w", err)
	}

	if err := r.store.CreateTicketMapping(ctx, caseID, t.FindingID, ticketID); err != nil {
		return "", fmt.Errorf("recording ticket mapping: %w", err)
	}

	// Re-read the mapping rather than trusting ticketID directly: if a
	// concurrent caller's insert won the race, ON CONFLICT DO NOTHING left
	// our row absent and the canonical ticket is the other caller's.
	canonical, err := r.store.GetTicketMapping(ctx, caseID, t.FindingID)
	if err != nil {
		return "", fmt.Errorf("reading back ticket mapping: %w", err)
	}
	metrics.TicketsCreated.WithLabelValues("created").Inc()
	return canonical, nil
}
