package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the on-disk auditor.yaml structure. Every section is a
// pointer so that mergo can tell "absent" apart from "zero value" when
// layering user config over built-in defaults.
type fileConfig struct {
	Chunking  *ChunkingConfig  `yaml:"chunking"`
	Retrieval *RetrievalConfig `yaml:"retrieval"`
	Cache     *CacheConfig     `yaml:"cache"`
	RateLimit *RateLimitConfig `yaml:"rate_limit"`
	Queue     *QueueConfig     `yaml:"queue"`
	Retention *RetentionConfig `yaml:"retention"`
	Provider  *ProviderConfig  `yaml:"provider"`
	GitHub    *GitHubConfig    `yaml:"github"`
	Ticketing *TicketingConfig `yaml:"ticketing"`
	Database  *DatabaseConfig  `yaml:"database"`
	Defaults  *Defaults        `yaml:"defaults"`
	HTTPPort  string           `yaml:"http_port"`
	LogLevel  string           `yaml:"log_level"`
}

// Initialize loads auditor.yaml from configDir (if present), expands
// ${ENV} references, layers it over built-in defaults, validates the
// result, and returns a ready-to-use *Config. A missing config file is not
// an error — built-in defaults alone are a valid configuration, matching
// the teacher's "defaults always produce a runnable system" convention.
func Initialize(_ context.Context, configDir string) (*Config, error) {
	built := builtinFileConfig()

	path := filepath.Join(configDir, "auditor.yaml")
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		raw = ExpandEnv(raw)
		var user fileConfig
		if err := yaml.Unmarshal(raw, &user); err != nil {
			return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
		}
		if err := mergo.Merge(built, &user, mergo.WithOverride); err != nil {
			return nil, NewLoadError(path, fmt.Errorf("merging user config: %w", err))
		}
	case os.IsNotExist(err):
		slog.Info("No auditor.yaml found, using built-in defaults", "path", path)
	default:
		return nil, NewLoadError(path, err)
	}

	cfg := &Config{
		configDir: configDir,
		Chunking:  built.Chunking,
		Retrieval: built.Retrieval,
		Cache:     built.Cache,
		RateLimit: built.RateLimit,
		Queue:     built.Queue,
		Retention: built.Retention,
		Provider:  built.Provider,
		GitHub:    built.GitHub,
		Ticketing: built.Ticketing,
		Database:  built.Database,
		Defaults:  built.Defaults,
		HTTPPort:  built.HTTPPort,
		LogLevel:  built.LogLevel,
	}
	if cfg.HTTPPort == "" {
		cfg.HTTPPort = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	slog.Info("Configuration initialized",
		"config_dir", configDir,
		"worker_count", cfg.Queue.WorkerCount,
		"embedding_dimension", cfg.Retrieval.EmbeddingDimension,
		"similarity_threshold", cfg.Retrieval.SimilarityThreshold)

	return cfg, nil
}

func builtinFileConfig() *fileConfig {
	return &fileConfig{
		Chunking:  DefaultChunkingConfig(),
		Retrieval: DefaultRetrievalConfig(),
		Cache:     DefaultCacheConfig(),
		RateLimit: DefaultRateLimitConfig(),
		Queue:     DefaultQueueConfig(),
		Retention: DefaultRetentionConfig(),
		Provider:  DefaultProviderConfig(),
		GitHub:    DefaultGitHubConfig(),
		Ticketing: &TicketingConfig{},
		Database:  DefaultDatabaseConfig(),
		Defaults:  DefaultDefaults(),
	}
}
