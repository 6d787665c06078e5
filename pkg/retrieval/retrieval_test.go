package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyance/auditor/pkg/model"
	"github.com/complyance/auditor/pkg/store"
)

type fakeStore struct {
	hits []store.SimilarChunk
}

func (f *fakeStore) SearchSimilar(_ context.Context, _ []float32, _ string, k int) ([]store.SimilarChunk, error) {
	if k > len(f.hits) {
		k = len(f.hits)
	}
	return f.hits[:k], nil
}

func hit(path string, similarity float64) store.SimilarChunk {
	return store.SimilarChunk{
		Chunk:      &model.CodeChunk{FilePath: path},
		Distance:   1 - similarity,
		Similarity: similarity,
	}
}

func TestRetriever_TopKBoundary(t *testing.T) {
	fs := &fakeStore{hits: []store.SimilarChunk{hit("a.go", 0.9), hit("b.go", 0.8)}}
	r := New(fs, 0.7)

	hits, err := r.Retrieve(context.Background(), nil, "repo-1", 0)
	require.NoError(t, err)
	assert.Empty(t, hits, "top_k=0 must return empty retrieval")

	hits, err = r.Retrieve(context.Background(), nil, "repo-1", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2, "fewer rows than k returns exactly N rows (P5)")
}

func TestRetriever_AboveThreshold(t *testing.T) {
	fs := &fakeStore{hits: []store.SimilarChunk{hit("a.go", 0.9), hit("b.go", 0.5)}}
	r := New(fs, 0.7)

	gated, err := r.RetrieveGated(context.Background(), nil, "repo-1", 10)
	require.NoError(t, err)
	require.Len(t, gated, 1)
	assert.Equal(t, "a.go", gated[0].Chunk.FilePath)
}

func TestSnippet_TruncatesAt200(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	c := &model.CodeChunk{ChunkText: string(long)}
	assert.Len(t, Snippet(c, 200), 200)

	short := &model.CodeChunk{ChunkText: "short"}
	assert.Equal(t, "short", Snippet(short, 200))
}
