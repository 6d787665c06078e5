// Package metrics collects the core's own counters (jobs enqueued/
// completed/failed, enrichment cache hit ratio) behind the standard
// Prometheus client library. Spec §1 names "metrics export" an external
// concern — the scrape endpoint and dashboarding belong to the deploying
// operator — but the collection of these counters is core, grounded on
// vjache-cie's use of prometheus/client_golang for its own CLI counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsEnqueued counts Job Queue enqueues by job type (spec 4.D).
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auditor_jobs_enqueued_total",
		Help: "Total jobs enqueued, by job type.",
	}, []string{"job_type"})

	// JobsCompleted counts terminal successful job completions.
	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auditor_jobs_completed_total",
		Help: "Total jobs completed successfully, by job type.",
	}, []string{"job_type"})

	// JobsFailed counts terminal failures (retry-exhausted or Fatal).
	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auditor_jobs_failed_total",
		Help: "Total jobs terminally failed, by job type.",
	}, []string{"job_type"})

	// JobsRequeued counts transient-failure requeues (spec §7 retry policy).
	JobsRequeued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auditor_jobs_requeued_total",
		Help: "Total jobs requeued after a transient failure, by job type.",
	}, []string{"job_type"})

	// CacheHits/CacheMisses track the Embedding/Summary Cache (spec 4.B)
	// hit ratio, split by cache ("embedding"/"summary").
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auditor_enrichment_cache_hits_total",
		Help: "Enrichment cache hits, by cache.",
	}, []string{"cache"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auditor_enrichment_cache_misses_total",
		Help: "Enrichment cache misses, by cache.",
	}, []string{"cache"})

	// OrphansRecovered counts lease-expiry reclaims observed by the
	// orphan scanner (spec 4.D "a lease whose lease_expires_at has
	// passed is reclaimable").
	OrphansRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auditor_orphans_recovered_total",
		Help: "Jobs found stuck past their lease expiry by the orphan scanner.",
	}, []string{"job_type"})

	// TicketsCreated counts Remediator ticket creations (spec 4.J), split
	// by whether the call hit the idempotent mapping (P7) or created new.
	TicketsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auditor_tickets_created_total",
		Help: "Remediation tickets created or reused, by outcome.",
	}, []string{"outcome"})
)
