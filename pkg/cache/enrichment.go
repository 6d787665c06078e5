package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/complyance/auditor/pkg/metrics"
	"github.com/complyance/auditor/pkg/provider"
	"github.com/complyance/auditor/pkg/retry"
)

// providerRetryAttempts is the spec §7 Transient-error retry budget
// ("retry with exponential backoff up to 3 attempts at the call site").
const providerRetryAttempts = 3

const providerRetryBaseDelay = 200 * time.Millisecond

// EnrichmentCache is the Embedding/Summary Cache (spec 4.B): a
// semantic, fingerprinted cache in front of the EmbeddingProvider and
// LLMProvider collaborators. A cache hit is byte-identical to what a cold
// call would have produced, because the key is derived from the input
// text itself rather than from any request metadata.
type EnrichmentCache struct {
	embeddings  *ttlCache[[]float32]
	summaries   *ttlCache[string]
	embedder    provider.EmbeddingProvider
	llm         provider.LLMProvider
	embedLimiter *rate.Limiter
	llmLimiter   *rate.Limiter
}

// New builds an EnrichmentCache in front of embedder/llm with the given
// TTLs, rate-limited by embedLimiter/llmLimiter (spec §5's token-bucket
// policy in front of every provider call). Either limiter may be nil to
// skip limiting (used by tests).
func New(embedder provider.EmbeddingProvider, llm provider.LLMProvider, ttlEmbeddings, ttlSummary time.Duration, embedLimiter, llmLimiter *rate.Limiter) *EnrichmentCache {
	return &EnrichmentCache{
		embeddings:   newTTLCache[[]float32](ttlEmbeddings),
		summaries:    newTTLCache[string](ttlSummary),
		embedder:     embedder,
		llm:          llm,
		embedLimiter: embedLimiter,
		llmLimiter:   llmLimiter,
	}
}

// EmbeddingOf returns the embedding for text, serving a cache hit when
// available (key "emb:H(text)", spec 4.B) and otherwise calling the
// embedding provider with retry, caching the result before returning.
func (c *EnrichmentCache) EmbeddingOf(ctx context.Context, text string) ([]float32, error) {
	key := "emb:" + sha256Hex(text)
	if v, ok := c.embeddings.get(key); ok {
		metrics.CacheHits.WithLabelValues("embedding").Inc()
		return v, nil
	}
	metrics.CacheMisses.WithLabelValues("embedding").Inc()

	if c.embedLimiter != nil {
		if err := c.embedLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for embedding rate limit: %w", err)
		}
	}

	var vec []float32
	err := retry.Do(ctx, providerRetryAttempts, providerRetryBaseDelay, func(ctx context.Context) error {
		v, err := c.embedder.Embed(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}

	c.embeddings.set(key, vec)
	return vec, nil
}

// SummaryOf returns the natural-language summary for a chunk, keyed on
// chunkHash (spec 4.B: "sum:chunk_hash"), prompting the LLM provider with
// chunkText on a cache miss.
func (c *EnrichmentCache) SummaryOf(ctx context.Context, chunkHash, chunkText string) (string, error) {
	key := "sum:" + chunkHash
	if v, ok := c.summaries.get(key); ok {
		metrics.CacheHits.WithLabelValues("summary").Inc()
		return v, nil
	}
	metrics.CacheMisses.WithLabelValues("summary").Inc()

	if c.llmLimiter != nil {
		if err := c.llmLimiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for LLM rate limit: %w", err)
		}
	}

	messages := []provider.Message{
		{Role: "system", Content: "Summarize the following source code chunk in one or two sentences, focused on its business purpose."},
		{Role: "user", Content: chunkText},
	}

	var summary string
	err := retry.Do(ctx, providerRetryAttempts, providerRetryBaseDelay, func(ctx context.Context) error {
		s, err := c.llm.Complete(ctx, messages, 0.0, 256)
		if err != nil {
			return err
		}
		summary = s
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("summarizing chunk: %w", err)
	}

	c.summaries.set(key, summary)
	return summary, nil
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
