package remote

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

const (
	// DefaultProbeAttempts is how often the connectivity probe tries before
	// reporting a backend as unreachable.
	DefaultProbeAttempts = 3

	baseDelay = 500 * time.Millisecond
	maxDelay  = 5 * time.Second
)

// Retry calls fn up to maxAttempts times with exponential backoff and
// jitter, stopping at the first success. The returned error wraps the last
// failure.
//
// The clinic and holiday clients never retry on their own. Retry is only used
// by reachability probes.
func Retry(ctx context.Context, maxAttempts int, fn func(context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := range maxAttempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt < maxAttempts-1 {
			timer := time.NewTimer(backoffDelay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-timer.C:
			}
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", maxAttempts, lastErr)
}

// backoffDelay doubles from baseDelay up to maxDelay and picks a uniform
// value in [delay/2, delay).
func backoffDelay(attempt int) time.Duration {
	delay := baseDelay << attempt
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 2)) //nolint:gosec // jitter does not need crypto/rand
	return delay/2 + jitter
}
