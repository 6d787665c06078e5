package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/complyance/auditor/pkg/model"
	"github.com/complyance/auditor/pkg/remediate"
)

// handleCreateRepo is POST /repos (supplemented). Upserts by the
// (owner, name) natural key, matching spec 4.C's "webhook or API call
// creates a Repo record" data-flow note.
func (s *Server) handleCreateRepo(c *gin.Context) {
	var req createRepoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, newValidationError("body", err.Error()))
		return
	}
	if req.DefaultBranch == "" {
		req.DefaultBranch = "main"
	}

	repo, err := s.store.UpsertRepo(c.Request.Context(), &model.Repo{
		InstallationID: req.InstallationID,
		GitHubID:       req.GitHubID,
		Owner:          req.Owner,
		Name:           req.Name,
		DefaultBranch:  req.DefaultBranch,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRepoResponse(repo))
}

func (s *Server) handleGetRepo(c *gin.Context) {
	repo, err := s.store.GetRepo(c.Request.Context(), c.Param("repo_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRepoResponse(repo))
}

// handleTriggerIndex is POST /repos/{repo_id}/index (spec §6): enqueues an
// index Job for the Indexer Worker (4.E). A non-empty changed_paths runs
// delta mode.
func (s *Server) handleTriggerIndex(c *gin.Context) {
	repoID := c.Param("repo_id")
	if _, err := s.store.GetRepo(c.Request.Context(), repoID); err != nil {
		writeError(c, err)
		return
	}

	var req triggerIndexRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, newValidationError("body", err.Error()))
			return
		}
	}

	payload := map[string]any{
		"repo_id": repoID,
		"ref":     req.Ref,
	}
	if len(req.ChangedPaths) > 0 {
		payload["changed_paths"] = req.ChangedPaths
	}

	// payload's shape matches indexer.JobPayload's JSON tags exactly, so
	// the Indexer's own execute() unmarshals it without any adapter code.
	job, err := s.store.EnqueueJob(c.Request.Context(), model.JobTypeIndex, payload, s.maxRetries)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID})
}

// handleCreateAudit is POST /audits (spec §6): creates a pending Case and
// enqueues the audit Job that the Audit Orchestrator (4.I) will run.
func (s *Server) handleCreateAudit(c *gin.Context) {
	var req createAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, newValidationError("body", err.Error()))
		return
	}
	if len(req.RegulationIDs) == 0 {
		writeError(c, newValidationError("regulation_ids", "must not be empty"))
		return
	}
	if _, err := s.store.GetRepo(c.Request.Context(), req.RepoID); err != nil {
		writeError(c, err)
		return
	}

	audit, err := s.store.CreateCase(c.Request.Context(), req.RepoID, req.RegulationIDs)
	if err != nil {
		writeError(c, err)
		return
	}

	// payload's shape matches orchestrator.JobPayload's JSON tag exactly.
	payload := map[string]any{"case_id": audit.ID}
	if _, err := s.store.EnqueueJob(c.Request.Context(), model.JobTypeAudit, payload, s.maxRetries); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"case_id": audit.ID})
}

func (s *Server) handleGetAudit(c *gin.Context) {
	audit, err := s.store.GetCase(c.Request.Context(), c.Param("case_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCaseResponse(audit))
}

// handleResumeAudit is POST /audits/{case_id}/resume (spec §6): applies the
// human's approve/decline decision to a waiting_approval Case. A decision
// on a case that is no longer waiting_approval, including a second
// approve, is rejected with 409 and files no tickets; that response does
// not carry the case's existing ticket IDs.
func (s *Server) handleResumeAudit(c *gin.Context) {
	caseID := c.Param("case_id")
	var req resumeAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, newValidationError("body", err.Error()))
		return
	}

	decision := model.UserDecision(req.Decision)
	if decision != model.DecisionApprove && decision != model.DecisionDecline {
		writeError(c, newValidationError("decision", "must be \"approve\" or \"decline\""))
		return
	}

	var editedTasks []remediate.Task
	if req.EditedTasks != nil {
		editedTasks = make([]remediate.Task, len(req.EditedTasks))
		for i, t := range req.EditedTasks {
			editedTasks[i] = remediate.Task{
				FindingID: t.FindingID,
				Title:     t.Title,
				RuleID:    t.RuleID,
				FilePath:  t.FilePath,
				Priority:  t.Priority,
			}
		}
	}

	updated, err := s.orch.ResolveApproval(c.Request.Context(), caseID, decision, editedTasks)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCaseResponse(updated))
}

// handleAuditLogs is GET /audits/{case_id}/logs?from=N (spec §6): the
// poll-based timeline read. A websocket variant lives in websocket.go.
func (s *Server) handleAuditLogs(c *gin.Context) {
	from := 0
	if v := c.Query("from"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(c, newValidationError("from", "must be an integer"))
			return
		}
		from = n
	}

	if isWebsocketUpgrade(c.Request) {
		s.serveLogWebsocket(c, c.Param("case_id"), from)
		return
	}

	entries, err := s.logs.Read(c.Request.Context(), c.Param("case_id"), from)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]logEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = toLogEntryResponse(e)
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job, err := s.store.GetJob(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}
