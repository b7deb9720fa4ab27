// Package resilience implements the transient-error classification,
// retry-with-backoff, and first-token-timeout helpers used by the
// orchestrator's tool loop and streaming path. Grounded on the teacher's
// internal/retry package, narrowed to the three operations the spec
// names.
package resilience

import (
	"context"
	"time"

	"github.com/hiveagent/hive/internal/provider"
	"github.com/hiveagent/hive/pkg/models"
)

// IsTransient reports whether err should be retried: 5xx, 429,
// connection-reset, DNS timeout, or a generic socket timeout. Auth and
// other 4xx errors are not transient.
func IsTransient(err error) bool {
	return provider.IsTransient(err)
}

// RetryTransient retries op up to maxAttempts times with a fixed backoff
// between attempts, stopping as soon as op succeeds or returns a
// non-transient error. It is used for the non-streaming completion call
// in the tool loop.
func RetryTransient[T any](ctx context.Context, maxAttempts int, backoff time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsTransient(err) || attempt == maxAttempts {
			return zero, err
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return zero, lastErr
}

// WithFirstTokenTimeout wraps a stream so that it fails with
// models.KindTimeout if no chunk arrives within timeout of the call. Once
// the first chunk has arrived, the timeout no longer applies to
// subsequent chunks — the underlying stream is expected to be bounded by
// the provider's own read deadlines after that point.
func WithFirstTokenTimeout(ctx context.Context, timeout time.Duration, in <-chan provider.Chunk) <-chan provider.Chunk {
	out := make(chan provider.Chunk)
	go func() {
		defer close(out)
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case chunk, ok := <-in:
			if !ok {
				return
			}
			out <- chunk
		case <-timer.C:
			out <- provider.Chunk{Error: models.New(models.KindTimeout, "no token received before first-token timeout")}
			return
		case <-ctx.Done():
			return
		}

		for chunk := range in {
			out <- chunk
		}
	}()
	return out
}
