// Package resilience layers caller-opted retry and fan-out helpers on top
// of the transport. Nothing here retries implicitly; the helpers exist so
// that call sites make retry and batching decisions visibly.
package resilience

import (
	"context"
	"time"
)

// Retry runs op up to maxAttempts+1 times total, sleeping
// baseDelay * 2^attempt between failures (exponential backoff). It returns
// the first successful result, or the last error once attempts are
// exhausted. The context cancels both the waits and the remaining attempts.
func Retry[T any](ctx context.Context, op func(context.Context) (T, error), maxAttempts int, baseDelay time.Duration) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= maxAttempts; attempt++ {
		if attempt > 0 {
			delay := baseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}
