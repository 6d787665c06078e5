package config

import "fmt"

// Validator validates a fully-merged Config, collecting every error found
// rather than stopping at the first one (spec 4.G-style "coerce, don't
// throw" philosophy applied to startup configuration).
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll runs every section validator and returns a single MultiError,
// or nil if nothing failed.
func (v *Validator) ValidateAll() error {
	errs := &MultiError{}
	errs.Add(v.validateChunking())
	errs.Add(v.validateRetrieval())
	errs.Add(v.validateQueue())
	errs.Add(v.validateCache())
	errs.Add(v.validateRateLimit())
	errs.Add(v.validateDatabase())
	return errs.OrNil()
}

func (v *Validator) validateChunking() error {
	c := v.cfg.Chunking
	if c.MinChunkTokens <= 0 {
		return NewValidationError("chunking", "min_chunk_tokens", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	if c.MaxChunkTokens < c.MinChunkTokens {
		return NewValidationError("chunking", "max_chunk_tokens", fmt.Errorf("%w: must be >= min_chunk_tokens", ErrInvalidValue))
	}
	if c.MaxFileSizeMB <= 0 {
		return NewValidationError("chunking", "max_file_size_mb", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	if c.FallbackWindowLines <= 0 {
		return NewValidationError("chunking", "fallback_window_lines", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateRetrieval() error {
	r := v.cfg.Retrieval
	if r.EmbeddingDimension <= 0 {
		return NewValidationError("retrieval", "embedding_dimension", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	if r.SimilarityThreshold < 0 || r.SimilarityThreshold > 1 {
		return NewValidationError("retrieval", "similarity_threshold", fmt.Errorf("%w: must be in [0,1]", ErrInvalidValue))
	}
	if r.TopK < 0 {
		return NewValidationError("retrieval", "top_k", fmt.Errorf("%w: must be >= 0", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateQueue() error {
	q := v.cfg.Queue
	if q.WorkerCount <= 0 {
		return NewValidationError("queue", "worker_count", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	if q.RetryFactor <= 1 {
		return NewValidationError("queue", "retry_factor", fmt.Errorf("%w: must be > 1", ErrInvalidValue))
	}
	if q.RetryMaxDelay < q.RetryBaseDelay {
		return NewValidationError("queue", "retry_max_delay", fmt.Errorf("%w: must be >= retry_base_delay", ErrInvalidValue))
	}
	if q.EnrichmentConcurrency <= 0 {
		return NewValidationError("queue", "enrichment_concurrency", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateCache() error {
	c := v.cfg.Cache
	if c.TTLEmbeddings <= 0 {
		return NewValidationError("cache", "cache_ttl_embeddings", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	if c.TTLSummary <= 0 {
		return NewValidationError("cache", "cache_ttl_summary", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateRateLimit() error {
	r := v.cfg.RateLimit
	if r.EmbeddingsPerMinute <= 0 {
		return NewValidationError("rate_limit", "rate_limit_embeddings", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	if r.LLMPerMinute <= 0 {
		return NewValidationError("rate_limit", "rate_limit_llm", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateDatabase() error {
	d := v.cfg.Database
	if d.Database == "" {
		return NewValidationError("database", "database", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	if d.Host == "" {
		return NewValidationError("database", "host", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	return nil
}
