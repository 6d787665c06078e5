package config

import "time"

// ProviderConfig describes how to reach the external embedding/LLM gateway
// (spec §6 EmbeddingProvider/LLMProvider). The gateway is reached over gRPC,
// mirroring the teacher's internal LLM-service gRPC client.
type ProviderConfig struct {
	EmbeddingAddr string        `yaml:"embedding_addr"`
	LLMAddr       string        `yaml:"llm_addr"`
	Timeout       time.Duration `yaml:"timeout"`
	LLMTimeout    time.Duration `yaml:"llm_timeout"`
	CloneTimeout  time.Duration `yaml:"clone_timeout"`
	DBTimeout     time.Duration `yaml:"db_timeout"`
}

// DefaultProviderConfig returns the spec's documented operation timeouts
// (§5: embeddings/LLM default 30s, clone 300s, DB 60s).
func DefaultProviderConfig() *ProviderConfig {
	return &ProviderConfig{
		Timeout:      30 * time.Second,
		LLMTimeout:   30 * time.Second,
		CloneTimeout: 300 * time.Second,
		DBTimeout:    60 * time.Second,
	}
}

// GitHubConfig holds the RepoSource collaborator's auth settings.
type GitHubConfig struct {
	TokenEnv string `yaml:"token_env"`
}

// DefaultGitHubConfig mirrors the teacher's "env var name, not raw secret,
// lives in config" convention.
func DefaultGitHubConfig() *GitHubConfig {
	return &GitHubConfig{TokenEnv: "GITHUB_TOKEN"}
}

// TicketingConfig holds the external ticketing collaborator's settings.
type TicketingConfig struct {
	Project  string `yaml:"project"`
	Endpoint string `yaml:"endpoint"`
	TokenEnv string `yaml:"token_env"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DefaultDatabaseConfig returns sane local-dev defaults.
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Database:        "auditor",
		SSLMode:         "disable",
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}
