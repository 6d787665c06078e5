// Package retry implements the exponential-backoff retry policy spec §7
// assigns to Transient errors: up to 3 attempts at the call site. No
// library in the example corpus offers a retry helper, so this is a small
// stdlib implementation rather than an adopted dependency.
package retry

import (
	"context"
	"time"
)

// Do calls fn up to maxAttempts times, sleeping baseDelay*2^(attempt-1)
// between attempts, stopping early on success or on a non-nil ctx.Err().
// The last error is returned if every attempt fails.
func Do(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := fn(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
