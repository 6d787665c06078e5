// Package model defines the domain entities shared across the audit
// platform: repositories, code chunks, regulation chunks, jobs, audit
// cases, findings, and the per-case log stream.
package model

import "time"

// DeltaType classifies a CodeChunk against its prior version during a
// delta (changed-files-only) index pass.
type DeltaType string

const (
	DeltaAdded     DeltaType = "added"
	DeltaModified  DeltaType = "modified"
	DeltaUnchanged DeltaType = "unchanged"
	DeltaRemoved   DeltaType = "removed"
)

// Repo is a single indexed repository.
type Repo struct {
	ID               string
	InstallationID   int64
	GitHubID         int64
	Owner            string
	Name             string
	DefaultBranch    string
	LastCommitSHA    string
	IndexedFileCount int
	TotalChunks      int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CloneURL returns the HTTPS clone URL for the repo.
func (r *Repo) CloneURL() string {
	return "https://github.com/" + r.Owner + "/" + r.Name + ".git"
}

// CodeChunk is one semantic unit of the code map: ideally a single
// function, method, or class body, with its embedding and enrichment.
type CodeChunk struct {
	ID            string
	RepoID        string
	FilePath      string
	Language      string
	StartLine     int
	EndLine       int
	ChunkText     string
	ASTNodeType   string
	FileHash      string
	ChunkHash     string
	Embedding     []float32 // nil while pending/failed
	NLSummary     string
	CallLinks     []string
	Variables     []string
	ConfigKeys    []string
	SemanticTags  []string
	PreviousHash  string
	DeltaType     DeltaType
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RegulationChunk is one contiguous span of pre-chunked regulation text,
// supplied by an external ingestion pipeline (out of scope, §1).
type RegulationChunk struct {
	ID         string
	RuleID     string
	RuleSection string
	ChunkText  string
	ChunkIndex int
	ChunkHash  string
	Embedding  []float32
	Metadata   map[string]any
}

// JobType enumerates the two kinds of durable work the queue runs.
type JobType string

const (
	JobTypeIndex JobType = "index"
	JobTypeAudit JobType = "audit"
)

// JobStatus is the lifecycle state of a queued unit of work.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is a durable, leasable unit of background work.
type Job struct {
	ID              string
	Type            JobType
	Payload         map[string]any
	Status          JobStatus
	Retries         int
	MaxRetries      int
	Result          map[string]any
	Error           string
	LeaseExpiresAt  *time.Time
	LeaseOwner      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CaseStatus is the lifecycle state of an audit Case.
type CaseStatus string

const (
	CaseStatusPending          CaseStatus = "pending"
	CaseStatusRunning          CaseStatus = "running"
	CaseStatusWaitingApproval  CaseStatus = "waiting_approval"
	CaseStatusCompleted        CaseStatus = "completed"
	CaseStatusFailed           CaseStatus = "failed"
	CaseStatusPaused           CaseStatus = "paused"
)

// CaseStep names one of the five fixed stages of the audit state machine.
type CaseStep string

const (
	StepPlanner      CaseStep = "planner"
	StepNavigator    CaseStep = "navigator"
	StepInvestigator CaseStep = "investigator"
	StepJudge        CaseStep = "judge"
	StepRemediator   CaseStep = "remediator"
)

// AllSteps is the fixed workflow set referenced by invariant P6: the union
// of steps_completed, current_step, and steps_pending must always equal
// this set, and the three must be pairwise disjoint.
var AllSteps = []CaseStep{StepPlanner, StepNavigator, StepInvestigator, StepJudge, StepRemediator}

// UserDecision is the human's response to the HITL pause.
type UserDecision string

const (
	DecisionApprove UserDecision = "approve"
	DecisionDecline UserDecision = "decline"
)

// Case is one audit instance: a repo evaluated against a set of
// regulations, carrying a durable, resumable, step-by-step state.
type Case struct {
	ID              string
	RepoID          string
	RegulationIDs   []string
	Status          CaseStatus
	CurrentStep     CaseStep // zero value "" once terminal
	StepsCompleted  []CaseStep
	StepsPending    []CaseStep
	StepResults     map[CaseStep]map[string]any // result blob per completed step
	RequiresApproval bool
	UserDecision    UserDecision
	TicketIDs       []string
	ErrorMessage    string
	CancelRequested bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// Verdict is the compliance classification of a Finding.
type Verdict string

const (
	VerdictCompliant    Verdict = "compliant"
	VerdictNonCompliant Verdict = "non_compliant"
	VerdictPartial      Verdict = "partial"
	VerdictUnclear      Verdict = "unclear"
)

// Severity is one of four fixed compliance-risk levels.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityBand returns the [lo, hi) score band that the given severity
// implies, per spec 4.G: critical [8,10], high [6,8), medium [3,6), low [0,3).
// The critical band's upper bound is inclusive (10 is a valid score).
func SeverityBand(s Severity) (lo, hi float64) {
	switch s {
	case SeverityCritical:
		return 8, 10.0001 // inclusive of 10
	case SeverityHigh:
		return 6, 8
	case SeverityMedium:
		return 3, 6
	default:
		return 0, 3
	}
}

// FindingStatus tracks human review of a generated Finding.
type FindingStatus string

const (
	FindingStatusPending  FindingStatus = "pending"
	FindingStatusApproved FindingStatus = "approved"
	FindingStatusRejected FindingStatus = "rejected"
	FindingStatusIgnored  FindingStatus = "ignored"
)

// Finding is a single rule-vs-code verdict produced during a Case.
type Finding struct {
	ID             string
	CaseID         string
	RuleID         string
	FilePath       string
	StartLine      int
	EndLine        int
	Verdict        Verdict
	Severity       Severity
	SeverityScore  float64
	Confidence     float64
	Evidence       string
	Reasoning      string
	Remediation    string
	RemediationPriority string
	Status         FindingStatus
	ReviewerNote   string
	RawPayload     string // preserved malformed-output payload, if any
	CreatedAt      time.Time
}

// LogEntry is one append-only timeline entry for a Case, advisory only.
type LogEntry struct {
	Index     int
	CaseID    string
	Agent     string
	Message   string
	Timestamp time.Time
}
