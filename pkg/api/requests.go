package api

// createRepoRequest is the body of POST /repos (supplemented: spec §3 says
// a Repo is "created by webhook/API" but names no shape; this is the
// minimal set the indexer needs to resolve a clone target).
type createRepoRequest struct {
	InstallationID int64  `json:"installation_id"`
	GitHubID       int64  `json:"github_id" binding:"required"`
	Owner          string `json:"owner" binding:"required"`
	Name           string `json:"name" binding:"required"`
	DefaultBranch  string `json:"default_branch"`
}

// triggerIndexRequest is the body of POST /repos/{repo_id}/index. An empty
// ChangedPaths runs a full index pass; a non-empty one runs delta mode
// (spec 4.E "Delta mode").
type triggerIndexRequest struct {
	Ref          string   `json:"ref"`
	ChangedPaths []string `json:"changed_paths"`
}

// createAuditRequest is the body of POST /audits (spec §6).
type createAuditRequest struct {
	RepoID        string   `json:"repo_id" binding:"required"`
	RegulationIDs []string `json:"regulation_ids" binding:"required"`
	Options       map[string]any `json:"options"`
}

// editedTask mirrors remediate.Task's JSON shape for the resume request's
// optional edited_tasks (spec §6).
type editedTask struct {
	FindingID string `json:"finding_id" binding:"required"`
	Title     string `json:"title" binding:"required"`
	RuleID    string `json:"rule_id"`
	FilePath  string `json:"file_path"`
	Priority  string `json:"priority"`
}

// resumeAuditRequest is the body of POST /audits/{case_id}/resume (spec §6).
type resumeAuditRequest struct {
	Decision     string       `json:"decision" binding:"required"`
	EditedTasks  []editedTask `json:"edited_tasks,omitempty"`
}
