// Package indexer is the Indexer Worker (spec 4.E): the state machine that
// walks a repository, chunks and enriches its source, and persists the
// result into the code map. It is grounded on the teacher's own worker
// bodies (pkg/agent step runners) for the "one method per pipeline stage,
// structured logging at each transition" shape, generalized from an
// alert-investigation pipeline to a clone→chunk→enrich→persist one.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/complyance/auditor/pkg/cache"
	"github.com/complyance/auditor/pkg/chunker"
	"github.com/complyance/auditor/pkg/config"
	"github.com/complyance/auditor/pkg/model"
	"github.com/complyance/auditor/pkg/provider"
	"github.com/complyance/auditor/pkg/queue"
)

// Store is the subset of pkg/store.Store the indexer depends on, narrowed
// to an interface so tests can substitute an in-memory fake instead of a
// live Postgres container.
type Store interface {
	GetRepo(ctx context.Context, id string) (*model.Repo, error)
	UpsertBatch(ctx context.Context, chunks []*model.CodeChunk) error
	PruneRemoved(ctx context.Context, repoID string, retainedHashes []string) (int64, error)
	DeleteChunksByHash(ctx context.Context, repoID string, chunkHashes []string) error
	ChunksByFile(ctx context.Context, repoID, filePath string) ([]*model.CodeChunk, error)
	UpdateRepoIndexStats(ctx context.Context, repoID, lastCommitSHA string, indexedFileCount, totalChunks int) error
}

// Indexer runs the full index/delta pipeline for one repository per
// invocation (spec 4.E). One Indexer is shared across jobs; it holds no
// per-job state.
type Indexer struct {
	store       Store
	chunker     *chunker.Chunker
	enrichment  *cache.EnrichmentCache
	repoSource  provider.RepoSource
	credentials *CredentialCache
	chunkingCfg *config.ChunkingConfig
	concurrency int
}

// New builds an Indexer from its collaborators. concurrency bounds the
// enrichment fan-out (spec 4.E step 5, default N=10).
func New(s Store, c *chunker.Chunker, enrichment *cache.EnrichmentCache, repoSource provider.RepoSource, credentials *CredentialCache, chunkingCfg *config.ChunkingConfig, concurrency int) *Indexer {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Indexer{
		store:       s,
		chunker:     c,
		enrichment:  enrichment,
		repoSource:  repoSource,
		credentials: credentials,
		chunkingCfg: chunkingCfg,
		concurrency: concurrency,
	}
}

// JobPayload is the shape of an index Job's payload (spec 3's Job.payload,
// constrained here to what the indexer itself reads and writes). A
// non-empty ChangedPaths triggers delta mode (spec 4.E "Delta mode").
type JobPayload struct {
	RepoID       string   `json:"repo_id"`
	Ref          string   `json:"ref,omitempty"`
	ChangedPaths []string `json:"changed_paths,omitempty"`
}

// Executor adapts an Indexer into a queue.Executor registered under
// model.JobTypeIndex.
func (idx *Indexer) Executor() queue.Executor {
	return queue.ExecutorFunc(idx.execute)
}

func (idx *Indexer) execute(ctx context.Context, job *model.Job) (map[string]any, error) {
	var payload JobPayload
	raw, err := json.Marshal(job.Payload)
	if err != nil {
		return nil, queue.Fatal(fmt.Errorf("re-marshaling job payload: %w", err))
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, queue.Fatal(fmt.Errorf("index job %s has malformed payload: %w", job.ID, err))
	}
	if payload.RepoID == "" {
		return nil, queue.Fatal(fmt.Errorf("index job %s missing repo_id", job.ID))
	}

	repo, err := idx.store.GetRepo(ctx, payload.RepoID)
	if err != nil {
		return nil, queue.Fatal(fmt.Errorf("resolving repo %s: %w", payload.RepoID, err))
	}

	ref := payload.Ref
	if ref == "" {
		ref = repo.DefaultBranch
	}

	log := slog.With("job_id", job.ID, "repo_id", payload.RepoID, "ref", ref)
	log.Info("received index job", "delta_mode", len(payload.ChangedPaths) > 0)

	result, err := idx.Run(ctx, repo, ref, payload.ChangedPaths)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"commit_sha":          result.CommitSHA,
		"files_indexed":       result.FilesIndexed,
		"chunks_upserted":     result.ChunksUpserted,
		"chunks_removed":      result.ChunksRemoved,
		"files_skipped_error": result.FilesSkippedError,
	}, nil
}

// Result summarizes one completed index run.
type Result struct {
	CommitSHA          string
	FilesIndexed        int
	ChunksUpserted       int
	ChunksRemoved        int
	FilesSkippedError   int
}

// Run drives the full pipeline: resolving_token → cloning → walking →
// chunking → enriching → persisting → finalizing (spec 4.E). An empty
// changedPaths runs a full pass (and prunes chunks no longer present);
// a non-empty one runs delta mode over only those paths.
func (idx *Indexer) Run(ctx context.Context, repo *model.Repo, ref string, changedPaths []string) (*Result, error) {
	log := slog.With("repo_id", repo.ID, "ref", ref)
	deltaMode := len(changedPaths) > 0

	// Step 1: token resolve.
	credential, err := idx.credentials.Resolve(repo.InstallationID)
	if err != nil {
		return nil, queue.Fatal(fmt.Errorf("resolving repo credential: %w", err))
	}
	ref2 := RepoRef{ID: repo.ID, InstallationID: repo.InstallationID, CloneURL: repo.CloneURL()}

	// Step 2: resolve the ref's current commit (our RepoSource walks the
	// Contents API in place of a literal working-tree clone).
	commitSHA, err := idx.repoSource.Clone(ctx, ref2.CloneURL, ref, "", credential)
	if err != nil {
		return nil, fmt.Errorf("resolving commit for %s@%s: %w", ref2.CloneURL, ref, err)
	}
	log = log.With("commit_sha", commitSHA)

	// Step 3: walk.
	var paths []string
	if deltaMode {
		paths = changedPaths
	} else {
		paths, err = idx.walkFiles(ctx, ref2, ref, credential)
		if err != nil {
			return nil, fmt.Errorf("walking file tree: %w", err)
		}
	}
	log.Info("walked repository", "file_count", len(paths))

	result := &Result{CommitSHA: commitSHA}
	var allHashes []string
	var allDrafts []*model.CodeChunk

	for _, filePath := range paths {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		content, err := idx.fetchFile(ctx, ref2, ref, filePath, credential)
		if err != nil {
			log.Warn("skipping file after fetch error", "file_path", filePath, "error", err)
			result.FilesSkippedError++
			continue
		}
		if content == nil {
			continue // over max size
		}

		// Step 4: chunk (spec 4.A). A chunker panic/error on one file is
		// logged and the file is skipped; the pipeline continues.
		drafts, err := idx.chunker.ChunkFile(repo.ID, filePath, content)
		if err != nil {
			log.Warn("skipping file after chunking error", "file_path", filePath, "error", err)
			result.FilesSkippedError++
			continue
		}
		if len(drafts) == 0 {
			continue
		}

		if deltaMode {
			prior, err := idx.store.ChunksByFile(ctx, repo.ID, filePath)
			if err != nil {
				return nil, fmt.Errorf("loading prior chunks for %s: %w", filePath, err)
			}
			removed := chunker.ClassifyDelta(drafts, prior)
			if len(removed) > 0 {
				removedHashes := make([]string, 0, len(removed))
				for _, r := range removed {
					removedHashes = append(removedHashes, r.ChunkHash)
				}
				if err := idx.store.DeleteChunksByHash(ctx, repo.ID, removedHashes); err != nil {
					return nil, fmt.Errorf("deleting removed chunks for %s: %w", filePath, err)
				}
				result.ChunksRemoved += len(removed)
			}
		}

		allDrafts = append(allDrafts, drafts...)
		result.FilesIndexed++
	}

	// Step 5: enrich — up to N concurrent tasks; provider failures
	// annotate but never abort the batch.
	if err := idx.enrichAll(ctx, allDrafts); err != nil {
		return nil, fmt.Errorf("enrichment batch: %w", err)
	}

	// Step 6: persist.
	if err := idx.store.UpsertBatch(ctx, allDrafts); err != nil {
		return nil, fmt.Errorf("persisting chunk batch: %w", err)
	}
	result.ChunksUpserted = len(allDrafts)

	for _, d := range allDrafts {
		allHashes = append(allHashes, d.ChunkHash)
	}

	if err := idx.store.UpdateRepoIndexStats(ctx, repo.ID, commitSHA, result.FilesIndexed, len(allDrafts)); err != nil {
		return nil, fmt.Errorf("updating repo index stats: %w", err)
	}

	// Step 7: prune — only on a full-branch pass.
	if !deltaMode {
		removedCount, err := idx.store.PruneRemoved(ctx, repo.ID, allHashes)
		if err != nil {
			return nil, fmt.Errorf("pruning removed chunks: %w", err)
		}
		result.ChunksRemoved = int(removedCount)
	}

	log.Info("index run finalized",
		"files_indexed", result.FilesIndexed,
		"chunks_upserted", result.ChunksUpserted,
		"chunks_removed", result.ChunksRemoved,
		"files_skipped", result.FilesSkippedError)
	return result, nil
}

// enrichAll runs embedding+summary for every draft that needs it
// (unchanged drafts already carry their prior embedding/summary and are
// skipped), bounded to idx.concurrency concurrent tasks (spec 4.E step 5).
func (idx *Indexer) enrichAll(ctx context.Context, drafts []*model.CodeChunk) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(idx.concurrency)

	for _, d := range drafts {
		if d.DeltaType == model.DeltaUnchanged {
			continue
		}
		d := d
		eg.Go(func() error {
			idx.enrichOne(egCtx, d)
			return nil // per-chunk failures are annotated, never fatal to the batch
		})
	}

	return eg.Wait()
}

func (idx *Indexer) enrichOne(ctx context.Context, d *model.CodeChunk) {
	vec, err := idx.enrichment.EmbeddingOf(ctx, d.ChunkText)
	if err != nil {
		slog.Warn("embedding failed, leaving chunk unembedded", "chunk_hash", d.ChunkHash, "error", err)
	} else {
		d.Embedding = vec
	}

	summary, err := idx.enrichment.SummaryOf(ctx, d.ChunkHash, d.ChunkText)
	if err != nil {
		slog.Warn("summary failed, leaving chunk unsummarized", "chunk_hash", d.ChunkHash, "error", err)
		return
	}
	d.NLSummary = summary
}
