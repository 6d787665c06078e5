// Package ratelimit builds the token-bucket limiters spec §5 puts in
// front of every provider call ("provider calls pass through a
// token-bucket limiter sized to the provider quota ... exceeding the
// bucket blocks the caller, it does not drop"). It is a thin,
// config-driven wrapper over golang.org/x/time/rate rather than inlining
// a limiter per call site, grounded on theRebelliousNerd-codenerd's
// choice of golang.org/x/sync/x/time for bounded concurrency primitives
// across the same kind of fan-out this package's callers use.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/complyance/auditor/pkg/config"
)

// Limiters bundles the per-collaborator limiters the indexer, retriever,
// adjudicator, and remediator block on before issuing a provider call.
type Limiters struct {
	Embeddings *rate.Limiter
	LLM        *rate.Limiter
	Ticketing  *rate.Limiter
}

// New builds limiters sized from cfg's per-minute quotas. A limiter's
// burst equals its per-minute rate so a cold start can spend a full
// minute's budget immediately, matching the provider's own quota window.
func New(cfg *config.RateLimitConfig) *Limiters {
	return &Limiters{
		Embeddings: perMinute(cfg.EmbeddingsPerMinute),
		LLM:        perMinute(cfg.LLMPerMinute),
		Ticketing:  perMinute(cfg.TicketingPerMinute),
	}
}

func perMinute(n int) *rate.Limiter {
	if n <= 0 {
		n = 1
	}
	return rate.NewLimiter(rate.Limit(float64(n)/60.0), n)
}

// Wait blocks the caller until a token is available or ctx is cancelled
// (spec §5: "blocks the caller, it does not drop").
func Wait(ctx context.Context, l *rate.Limiter) error {
	return l.Wait(ctx)
}
