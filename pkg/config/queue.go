package config

import "time"

// QueueConfig contains queue and worker-pool tuning (spec 4.D, §5).
// These values control how jobs are polled, leased, and retried.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines per process.
	WorkerCount int `yaml:"worker_count"`

	// PollInterval is the base interval between lease attempts when the
	// queue is empty.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is random jitter added to PollInterval to avoid
	// thundering-herd polling across workers.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// RetryBaseDelay / RetryFactor / RetryMaxDelay implement spec 4.D's
	// "exponential with factor 2, base 2s, cap 10s" backoff policy.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	RetryFactor    float64       `yaml:"retry_factor"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay"`

	// OrphanDetectionInterval is how often the lease-expiry scanner runs.
	OrphanDetectionInterval time.Duration `yaml:"orphan_detection_interval"`

	// GracefulShutdownTimeout bounds how long Stop() waits for in-flight
	// jobs to finish before returning.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// EnrichmentConcurrency bounds the indexer's parallel
	// embed+summarize fan-out (spec 4.E step 5, default N=10).
	EnrichmentConcurrency int `yaml:"enrichment_concurrency"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:             5,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		RetryBaseDelay:          2 * time.Second,
		RetryFactor:             2,
		RetryMaxDelay:           10 * time.Second,
		OrphanDetectionInterval: 1 * time.Minute,
		GracefulShutdownTimeout: 15 * time.Minute,
		EnrichmentConcurrency:   10,
	}
}

// RetentionConfig controls the cleanup reaper's TTLs (spec §4.D, §4.H).
type RetentionConfig struct {
	JobResultTTL    time.Duration `yaml:"job_result_ttl"`
	JobFailureTTL   time.Duration `yaml:"job_failure_ttl"`
	CaseLogTTL      time.Duration `yaml:"case_log_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetentionConfig returns the spec's documented TTLs.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		JobResultTTL:    24 * time.Hour,
		JobFailureTTL:   7 * 24 * time.Hour,
		CaseLogTTL:      1 * time.Hour,
		CleanupInterval: 5 * time.Minute,
	}
}
