package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/complyance/auditor/pkg/model"
)

func TestClassifyDelta_UnchangedPreservesEmbedding(t *testing.T) {
	old := &model.CodeChunk{ChunkHash: "h1", Embedding: []float32{1, 2, 3}, NLSummary: "summary"}
	draft := &model.CodeChunk{ChunkHash: "h1"}

	removed := ClassifyDelta([]*model.CodeChunk{draft}, []*model.CodeChunk{old})
	assert.Empty(t, removed)
	assert.Equal(t, model.DeltaUnchanged, draft.DeltaType)
	assert.Equal(t, []float32{1, 2, 3}, draft.Embedding)
	assert.Equal(t, "summary", draft.NLSummary)
}

func TestClassifyDelta_ModifiedRecordsPreviousHash(t *testing.T) {
	old := &model.CodeChunk{ChunkHash: "h1"}
	draft := &model.CodeChunk{ChunkHash: "h2"}

	removed := ClassifyDelta([]*model.CodeChunk{draft}, []*model.CodeChunk{old})
	assert.Empty(t, removed)
	assert.Equal(t, model.DeltaModified, draft.DeltaType)
	assert.Equal(t, "h1", draft.PreviousHash)
}

func TestClassifyDelta_ModifiedAndAdded(t *testing.T) {
	old := &model.CodeChunk{ChunkHash: "h1"}
	draft := &model.CodeChunk{ChunkHash: "h2"}
	draft2 := &model.CodeChunk{ChunkHash: "h3"}

	removed := ClassifyDelta([]*model.CodeChunk{draft, draft2}, []*model.CodeChunk{old})
	assert.Equal(t, model.DeltaModified, draft.DeltaType)
	assert.Equal(t, model.DeltaAdded, draft2.DeltaType)
	assert.Empty(t, removed)
}

func TestClassifyDelta_AllRemoved(t *testing.T) {
	old := &model.CodeChunk{ChunkHash: "h1"}
	removed := ClassifyDelta(nil, []*model.CodeChunk{old})
	assert.Len(t, removed, 1)
	assert.Equal(t, "h1", removed[0].ChunkHash)
}
