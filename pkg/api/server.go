// Package api is the transport-neutral API surface exposed by the core
// (spec §6), bound here to HTTP with gin-gonic/gin, mirroring the teacher's
// own gin-based router (cmd/tarsy/main.go). It is the thinnest possible
// layer over pkg/store/pkg/queue/pkg/orchestrator/pkg/indexer/pkg/logstream:
// request parsing, response shaping, and error-class-to-status mapping —
// no business logic lives here.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/complyance/auditor/pkg/logstream"
	"github.com/complyance/auditor/pkg/model"
	"github.com/complyance/auditor/pkg/orchestrator"
	"github.com/complyance/auditor/pkg/queue"
	"github.com/complyance/auditor/pkg/store"
)

// Store is the subset of pkg/store.Store the API layer reads/writes
// directly (everything else goes through indexer/orchestrator/logstream).
type Store interface {
	UpsertRepo(ctx context.Context, r *model.Repo) (*model.Repo, error)
	GetRepo(ctx context.Context, id string) (*model.Repo, error)
	CreateCase(ctx context.Context, repoID string, regulationIDs []string) (*model.Case, error)
	GetCase(ctx context.Context, id string) (*model.Case, error)
	EnqueueJob(ctx context.Context, jobType model.JobType, payload map[string]any, maxRetries int) (*model.Job, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
}

// Server wires gin routes over the core components. One Server exists per
// process, constructed in cmd/auditsvc/main.go.
type Server struct {
	router  *gin.Engine
	store   Store
	pool    *queue.WorkerPool
	orch    *orchestrator.Orchestrator
	logs    *logstream.Stream
	maxRetries int
	jobTimeout time.Duration
}

// NewServer builds a Server and registers every route. ginMode is passed
// straight to gin.SetMode by the caller before NewServer runs, matching
// the teacher's own startup sequence.
func NewServer(s Store, pool *queue.WorkerPool, orch *orchestrator.Orchestrator, logs *logstream.Stream, maxRetries int, jobTimeout time.Duration) *Server {
	srv := &Server{
		router:     gin.Default(),
		store:      s,
		pool:       pool,
		orch:       orch,
		logs:       logs,
		maxRetries: maxRetries,
		jobTimeout: jobTimeout,
	}
	srv.setupRoutes()
	return srv
}

// Router exposes the underlying gin.Engine, e.g. for http.Server.Handler.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.POST("/repos", s.handleCreateRepo)
	s.router.GET("/repos/:repo_id", s.handleGetRepo)
	s.router.POST("/repos/:repo_id/index", s.handleTriggerIndex)

	s.router.POST("/audits", s.handleCreateAudit)
	s.router.GET("/audits/:case_id", s.handleGetAudit)
	s.router.POST("/audits/:case_id/resume", s.handleResumeAudit)
	s.router.GET("/audits/:case_id/logs", s.handleAuditLogs)

	s.router.GET("/jobs/:job_id", s.handleGetJob)
	s.router.GET("/jobs/health", s.handleJobsHealth)
}

// handleHealth is a liveness/readiness probe; it never touches the
// database, matching the teacher's own cheap /health endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleJobsHealth(c *gin.Context) {
	if s.pool == nil {
		c.JSON(http.StatusOK, queue.PoolHealth{})
		return
	}
	c.JSON(http.StatusOK, s.pool.Health())
}

// writeError maps a store/domain error to an HTTP status, per spec §7's
// taxonomy: Input-invalid -> 400 (never retried), not-found -> 404,
// already-exists and not-waiting-approval -> 409, everything else -> 500.
func writeError(c *gin.Context, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
	case errors.Is(err, store.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "resource already exists"})
	case errors.Is(err, orchestrator.ErrNotWaitingApproval):
		c.JSON(http.StatusConflict, gin.H{"error": "case is not waiting_approval"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// ValidationError is the typed Input-invalid failure kind (spec §7):
// malformed payloads, missing required fields, unknown enum values.
// Handlers construct it directly rather than routing through a generic
// "services" package, since the API layer owns request validation here.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Msg }

func newValidationError(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}
