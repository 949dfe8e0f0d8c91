// Package retry provides the retry policy applied to upstream API calls and
// batch persistence: bounded attempts, exponential backoff, and a predicate
// deciding which errors are worth retrying.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts uint64
	// BaseDelay is the wait after the first failure; each further wait doubles.
	BaseDelay time.Duration
	// Retryable decides whether an error should trigger another attempt.
	// A nil predicate retries every error.
	Retryable func(error) bool
}

// Do runs op under the policy. It returns nil on the first success, the last
// error once attempts are exhausted, or immediately on a non-retryable error
// or context cancellation.
func (p Policy) Do(ctx context.Context, op func() error) error {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = p.BaseDelay * time.Duration(1<<p.MaxAttempts)
	bo.MaxElapsedTime = 0

	wrapped := backoff.WithContext(backoff.WithMaxRetries(bo, p.MaxAttempts-1), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, wrapped)
}
