package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyance/auditor/pkg/provider/providertest"
)

func TestEnrichmentCache_EmbeddingHitAvoidsSecondCall(t *testing.T) {
	embedder := providertest.NewStubEmbeddingProvider(4)
	llm := providertest.NewStubLLMProvider("summary")
	c := New(embedder, llm, time.Hour, time.Hour, nil, nil)

	v1, err := c.EmbeddingOf(context.Background(), "func Foo() {}")
	require.NoError(t, err)
	v2, err := c.EmbeddingOf(context.Background(), "func Foo() {}")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestEnrichmentCache_SummaryKeyedOnChunkHash(t *testing.T) {
	embedder := providertest.NewStubEmbeddingProvider(4)
	llm := providertest.NewStubLLMProvider("first")
	c := New(embedder, llm, time.Hour, time.Hour, nil, nil)

	s1, err := c.SummaryOf(context.Background(), "hash-1", "chunk text")
	require.NoError(t, err)
	assert.Equal(t, "first", s1)

	llm.SetResponse("second")
	s2, err := c.SummaryOf(context.Background(), "hash-1", "chunk text")
	require.NoError(t, err)
	assert.Equal(t, "first", s2, "cache hit must not re-invoke the provider")

	s3, err := c.SummaryOf(context.Background(), "hash-2", "other text")
	require.NoError(t, err)
	assert.Equal(t, "second", s3)
}

func TestEnrichmentCache_ExpiresAfterTTL(t *testing.T) {
	embedder := providertest.NewStubEmbeddingProvider(4)
	llm := providertest.NewStubLLMProvider("v1")
	c := New(embedder, llm, time.Millisecond, time.Millisecond, nil, nil)

	_, err := c.SummaryOf(context.Background(), "h", "text")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	llm.SetResponse("v2")
	s, err := c.SummaryOf(context.Background(), "h", "text")
	require.NoError(t, err)
	assert.Equal(t, "v2", s)
}
