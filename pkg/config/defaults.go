package config

import "time"

// ChunkingConfig controls the Chunker (spec 4.A).
type ChunkingConfig struct {
	MaxChunkTokens int `yaml:"max_chunk_tokens"`
	MinChunkTokens int `yaml:"min_chunk_tokens"`
	MaxFileSizeMB  int `yaml:"max_file_size_mb"`
	// FallbackWindowLines is the fixed-size window used when no AST/heuristic
	// spans are found in a file (spec 4.A "Fallback").
	FallbackWindowLines int `yaml:"fallback_window_lines"`
}

// DefaultChunkingConfig returns the spec's documented defaults.
func DefaultChunkingConfig() *ChunkingConfig {
	return &ChunkingConfig{
		MaxChunkTokens:      1500,
		MinChunkTokens:      50,
		MaxFileSizeMB:       2,
		FallbackWindowLines: 50,
	}
}

// RetrievalConfig controls the Retriever (spec 4.F) and Adjudicator gating.
type RetrievalConfig struct {
	EmbeddingDimension int     `yaml:"embedding_dimension"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	TopK               int     `yaml:"top_k"`
}

// DefaultRetrievalConfig returns the spec's documented defaults.
func DefaultRetrievalConfig() *RetrievalConfig {
	return &RetrievalConfig{
		EmbeddingDimension:  1536,
		SimilarityThreshold: 0.7,
		TopK:                10,
	}
}

// CacheConfig controls the embedding/summary cache TTLs (spec 4.B).
type CacheConfig struct {
	TTLEmbeddings time.Duration `yaml:"cache_ttl_embeddings"`
	TTLSummary    time.Duration `yaml:"cache_ttl_summary"`
}

// DefaultCacheConfig returns the spec's documented defaults (24h).
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		TTLEmbeddings: 24 * time.Hour,
		TTLSummary:    24 * time.Hour,
	}
}

// RateLimitConfig sizes the token-bucket limiters in front of each
// provider call (spec §5).
type RateLimitConfig struct {
	EmbeddingsPerMinute int `yaml:"rate_limit_embeddings"`
	LLMPerMinute        int `yaml:"rate_limit_llm"`
	TicketingPerMinute  int `yaml:"rate_limit_ticketing"`
}

// DefaultRateLimitConfig returns the spec's documented defaults.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		EmbeddingsPerMinute: 3500,
		LLMPerMinute:        500,
		TicketingPerMinute:  600,
	}
}

// Defaults bundles the spec-recognized system-wide defaults (spec §9) that
// don't belong to a single component.
type Defaults struct {
	QueueName     string        `yaml:"queue_name"`
	JobTimeout    time.Duration `yaml:"job_timeout"`
	MaxJobRetries int           `yaml:"max_job_retries"`
}

// DefaultDefaults returns the baseline system-wide defaults.
func DefaultDefaults() *Defaults {
	return &Defaults{
		QueueName:     "audit-core",
		JobTimeout:    10 * time.Minute,
		MaxJobRetries: 3,
	}
}
