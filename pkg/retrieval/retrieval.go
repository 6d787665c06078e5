// Package retrieval is the Retriever (spec 4.F): rule-to-code nearest-
// neighbor search over the code map, plus the similarity-gating helper the
// orchestrator's Navigator stage builds on.
// Grounded on pkg/store's kNN query (store.SearchSimilar already encodes
// the distance ordering and the deterministic (file_path, start_line)
// tie-break spec 4.F requires, so this package is a thin, named entry
// point around it rather than a second query implementation).
package retrieval

import (
	"context"
	"fmt"

	"github.com/complyance/auditor/pkg/model"
	"github.com/complyance/auditor/pkg/store"
)

// Store is the subset of pkg/store.Store the retriever depends on.
type Store interface {
	SearchSimilar(ctx context.Context, queryEmbedding []float32, repoID string, k int) ([]store.SimilarChunk, error)
}

// Retriever runs kNN search against the code map and applies the
// downstream similarity gate.
type Retriever struct {
	store     Store
	threshold float64
}

// New creates a Retriever. threshold is the default minimum similarity a
// hit must clear to be considered a match (spec 4.F, default 0.7).
func New(s Store, threshold float64) *Retriever {
	return &Retriever{store: s, threshold: threshold}
}

// Hit pairs a retrieved chunk with its similarity to the query.
type Hit = store.SimilarChunk

// Retrieve returns the topK chunks for repoID with lowest distance to
// ruleEmbedding (spec 4.F). A topK of 0 returns an empty result (P5/
// boundary: "top_k=0 → empty retrieval"). If fewer than topK rows exist,
// exactly that many are returned (P5), already sorted ascending by
// distance with the store's deterministic tie-break.
func (r *Retriever) Retrieve(ctx context.Context, ruleEmbedding []float32, repoID string, topK int) ([]Hit, error) {
	if topK <= 0 {
		return nil, nil
	}
	hits, err := r.store.SearchSimilar(ctx, ruleEmbedding, repoID, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieving similar chunks: %w", err)
	}
	return hits, nil
}

// AboveThreshold filters hits to those whose similarity clears threshold
// (spec 4.F "downstream gating"). A threshold <= 0 uses the Retriever's
// configured default.
func (r *Retriever) AboveThreshold(hits []Hit, threshold float64) []Hit {
	if threshold <= 0 {
		threshold = r.threshold
	}
	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if h.Similarity >= threshold {
			out = append(out, h)
		}
	}
	return out
}

// RetrieveGated is the common case: retrieve topK and keep only the hits
// clearing the Retriever's default similarity threshold, used directly by
// the Navigator stage (spec 4.I step 2).
func (r *Retriever) RetrieveGated(ctx context.Context, ruleEmbedding []float32, repoID string, topK int) ([]Hit, error) {
	hits, err := r.Retrieve(ctx, ruleEmbedding, repoID, topK)
	if err != nil {
		return nil, err
	}
	return r.AboveThreshold(hits, 0), nil
}

// Snippet returns the first n bytes of a chunk's text. The Navigator stage
// does not call it: its recorded hits carry the code chunk's ID, file path
// and line range, with no text preview.
func Snippet(c *model.CodeChunk, n int) string {
	if len(c.ChunkText) <= n {
		return c.ChunkText
	}
	return c.ChunkText[:n]
}
