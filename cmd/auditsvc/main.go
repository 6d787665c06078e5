// Command auditsvc runs the audit platform's HTTP API and background
// worker pool in a single process, mirroring the teacher's cmd/tarsy
// server entrypoint: flag-driven config directory, .env loading, gin
// mode from the environment, and one long-lived process wiring every
// component together.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/complyance/auditor/pkg/adjudicate"
	"github.com/complyance/auditor/pkg/api"
	"github.com/complyance/auditor/pkg/cache"
	"github.com/complyance/auditor/pkg/chunker"
	"github.com/complyance/auditor/pkg/cleanup"
	"github.com/complyance/auditor/pkg/config"
	"github.com/complyance/auditor/pkg/dbconn"
	"github.com/complyance/auditor/pkg/events"
	"github.com/complyance/auditor/pkg/indexer"
	"github.com/complyance/auditor/pkg/logstream"
	"github.com/complyance/auditor/pkg/model"
	"github.com/complyance/auditor/pkg/orchestrator"
	"github.com/complyance/auditor/pkg/provider"
	"github.com/complyance/auditor/pkg/queue"
	"github.com/complyance/auditor/pkg/ratelimit"
	"github.com/complyance/auditor/pkg/remediate"
	"github.com/complyance/auditor/pkg/retrieval"
	"github.com/complyance/auditor/pkg/store"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
	}

	logLevel := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ginMode := getEnv("GIN_MODE", "release")
	gin.SetMode(ginMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}
	if cfg.LogLevel == "debug" {
		logLevel.Set(slog.LevelDebug)
	}
	stats := cfg.Stats()
	slog.Info("starting auditsvc",
		"worker_count", stats.WorkerCount,
		"embedding_dimension", stats.EmbeddingDimension,
		"similarity_threshold", stats.SimilarityThreshold,
	)

	dbCfg := dbconn.ConfigFromDatabaseConfig(cfg.Database)
	dbClient, err := dbconn.NewClient(ctx, dbCfg)
	if err != nil {
		log.Fatalf("connecting to postgres: %v", err)
	}
	defer dbClient.Close()
	slog.Info("connected to postgres", "database", cfg.Database.Database)

	s := store.New(dbClient.Pool)
	eventManager := events.NewManager(dbClient.Pool)
	logs := logstream.New(s, eventManager)

	embedder, err := provider.NewGRPCEmbeddingClient(cfg.Provider.EmbeddingAddr, cfg.Retrieval.EmbeddingDimension)
	if err != nil {
		log.Fatalf("dialing embedding provider: %v", err)
	}
	defer embedder.Close()

	llm, err := provider.NewGRPCLLMClient(cfg.Provider.LLMAddr)
	if err != nil {
		log.Fatalf("dialing LLM provider: %v", err)
	}
	defer llm.Close()

	limiters := ratelimit.New(cfg.RateLimit)

	enrichment := cache.New(embedder, llm, cfg.Cache.TTLEmbeddings, cfg.Cache.TTLSummary, limiters.Embeddings, limiters.LLM)

	astBackend := chunker.NewTreeSitterExtractor()
	chunk := chunker.New(cfg.Chunking, astBackend)

	repoSource := provider.NewGitHubRepoSource(cfg.Provider.CloneTimeout)
	credentials := indexer.NewCredentialCache(cfg.GitHub)
	idx := indexer.New(s, chunk, enrichment, repoSource, credentials, cfg.Chunking, cfg.Queue.EnrichmentConcurrency)

	retriever := retrieval.New(s, cfg.Retrieval.SimilarityThreshold)
	adjudicator := adjudicate.New(llm, limiters.LLM)

	ticketToken := os.Getenv(cfg.Ticketing.TokenEnv)
	ticketing := provider.NewHTTPTicketingSystem(cfg.Ticketing.Endpoint, ticketToken, cfg.Provider.Timeout)
	remediator := remediate.New(ticketing, s, limiters.Ticketing, cfg.Ticketing.Project)

	orch := orchestrator.New(s, retriever, adjudicator, remediator, logs, cfg.Retrieval.TopK)

	executorFor := func(jobType model.JobType) (queue.Executor, bool) {
		switch jobType {
		case model.JobTypeIndex:
			return idx.Executor(), true
		case model.JobTypeAudit:
			return orch.Executor(), true
		default:
			return nil, false
		}
	}
	pool := queue.NewWorkerPool(cfg.Defaults.QueueName, s, cfg.Queue, cfg.Defaults.JobTimeout, executorFor)
	pool.Start(ctx)
	defer pool.Stop()

	reaper := cleanup.New(s, cfg.Retention)
	reaper.Start(ctx)
	defer reaper.Stop()

	srv := api.NewServer(s, pool, orch, logs, cfg.Defaults.MaxJobRetries, cfg.Defaults.JobTimeout)

	httpSrv := &http.Server{
		Addr:    ":" + getEnv("HTTP_PORT", "8080"),
		Handler: srv.Router(),
	}

	go func() {
		slog.Info("http server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown", "error", err)
	}
}
