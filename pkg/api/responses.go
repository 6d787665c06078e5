package api

import (
	"time"

	"github.com/complyance/auditor/pkg/model"
)

// repoResponse mirrors spec §3's Repo fields. model.Repo carries no JSON
// tags of its own (it is an internal shape shared with pkg/store's SQL
// scanning, not a wire type), so the API layer owns this translation.
type repoResponse struct {
	RepoID           string    `json:"repo_id"`
	InstallationID   int64     `json:"installation_id"`
	GitHubID         int64     `json:"github_id"`
	Owner            string    `json:"owner"`
	Name             string    `json:"name"`
	DefaultBranch    string    `json:"default_branch"`
	LastCommitSHA    string    `json:"last_commit_sha"`
	IndexedFileCount int       `json:"indexed_file_count"`
	TotalChunks      int       `json:"total_chunks"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toRepoResponse(r *model.Repo) repoResponse {
	return repoResponse{
		RepoID:           r.ID,
		InstallationID:   r.InstallationID,
		GitHubID:         r.GitHubID,
		Owner:            r.Owner,
		Name:             r.Name,
		DefaultBranch:    r.DefaultBranch,
		LastCommitSHA:    r.LastCommitSHA,
		IndexedFileCount: r.IndexedFileCount,
		TotalChunks:      r.TotalChunks,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// jobResponse mirrors spec §3's Job fields for GET /jobs/{job_id}.
type jobResponse struct {
	JobID      string         `json:"job_id"`
	Type       model.JobType  `json:"type"`
	Status     model.JobStatus `json:"status"`
	Retries    int            `json:"retries"`
	MaxRetries int            `json:"max_retries"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func toJobResponse(j *model.Job) jobResponse {
	return jobResponse{
		JobID:      j.ID,
		Type:       j.Type,
		Status:     j.Status,
		Retries:    j.Retries,
		MaxRetries: j.MaxRetries,
		Result:     j.Result,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.UpdatedAt,
	}
}

// caseResponse mirrors spec §3's Case fields for GET /audits/{case_id}.
type caseResponse struct {
	CaseID           string             `json:"case_id"`
	RepoID           string             `json:"repo_id"`
	RegulationIDs    []string           `json:"regulation_ids"`
	Status           model.CaseStatus   `json:"status"`
	CurrentStep      model.CaseStep     `json:"current_step,omitempty"`
	StepsCompleted   []model.CaseStep   `json:"steps_completed"`
	StepsPending     []model.CaseStep   `json:"steps_pending"`
	RequiresApproval bool               `json:"requires_approval"`
	UserDecision     model.UserDecision `json:"user_decision,omitempty"`
	TicketIDs        []string           `json:"jira_ticket_ids"`
	ErrorMessage     string             `json:"error_message,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty"`
}

func toCaseResponse(c *model.Case) caseResponse {
	return caseResponse{
		CaseID:           c.ID,
		RepoID:           c.RepoID,
		RegulationIDs:    c.RegulationIDs,
		Status:           c.Status,
		CurrentStep:      c.CurrentStep,
		StepsCompleted:   c.StepsCompleted,
		StepsPending:     c.StepsPending,
		RequiresApproval: c.RequiresApproval,
		UserDecision:     c.UserDecision,
		TicketIDs:        c.TicketIDs,
		ErrorMessage:     c.ErrorMessage,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
		CompletedAt:      c.CompletedAt,
	}
}

// logEntryResponse mirrors spec §3's LogEntry fields for the logs endpoint.
type logEntryResponse struct {
	Index     int       `json:"index"`
	Agent     string    `json:"agent"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func toLogEntryResponse(e *model.LogEntry) logEntryResponse {
	return logEntryResponse{Index: e.Index, Agent: e.Agent, Message: e.Message, Timestamp: e.Timestamp}
}
