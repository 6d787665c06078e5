package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builtinConfig(t *testing.T) *Config {
	t.Helper()
	b := builtinFileConfig()
	return &Config{
		Chunking:  b.Chunking,
		Retrieval: b.Retrieval,
		Cache:     b.Cache,
		RateLimit: b.RateLimit,
		Queue:     b.Queue,
		Retention: b.Retention,
		Provider:  b.Provider,
		GitHub:    b.GitHub,
		Ticketing: b.Ticketing,
		Database:  b.Database,
		Defaults:  b.Defaults,
	}
}

func TestValidateAll_BuiltinDefaultsAreValid(t *testing.T) {
	cfg := builtinConfig(t)
	require.NoError(t, NewValidator(cfg).ValidateAll())
}

func TestValidateChunking(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ChunkingConfig)
		wantErr bool
	}{
		{"valid", func(c *ChunkingConfig) {}, false},
		{"min tokens zero", func(c *ChunkingConfig) { c.MinChunkTokens = 0 }, true},
		{"max less than min", func(c *ChunkingConfig) { c.MaxChunkTokens = 10; c.MinChunkTokens = 50 }, true},
		{"file size zero", func(c *ChunkingConfig) { c.MaxFileSizeMB = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := builtinConfig(t)
			tt.mutate(cfg.Chunking)
			err := NewValidator(cfg).ValidateAll()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRetrieval_ThresholdOutOfRange(t *testing.T) {
	cfg := builtinConfig(t)
	cfg.Retrieval.SimilarityThreshold = 1.5
	assert.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidateAll_CollectsMultipleErrors(t *testing.T) {
	cfg := builtinConfig(t)
	cfg.Chunking.MinChunkTokens = 0
	cfg.Retrieval.TopK = -1
	cfg.Queue.WorkerCount = 0

	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	var multi *MultiError
	require.ErrorAs(t, err, &multi)
	assert.GreaterOrEqual(t, len(multi.Errors), 3)
}
