package tx

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"lotcost/internal/core/apperror"
	"lotcost/pkg/logger"
)

// RetryPolicy bounds retries of a whole unit of work after a concurrency conflict.
type RetryPolicy struct {
	MaxRetries uint64
	BaseDelay  time.Duration
	MaxJitter  time.Duration
}

// DefaultRetryPolicy returns the policy used when configuration does not override it.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  10 * time.Millisecond,
		MaxJitter:  5 * time.Millisecond,
	}
}

// Retry runs fn and re-runs it from scratch while it fails with
// CONCURRENT_MODIFICATION, up to policy.MaxRetries extra attempts.
// Any other error is returned immediately. onRetry may be nil.
func Retry(ctx context.Context, policy RetryPolicy, onRetry func(attempt int, err error), fn func(ctx context.Context) error) error {
	backoff := retry.NewExponential(policy.BaseDelay)
	if policy.MaxJitter > 0 {
		backoff = retry.WithJitter(policy.MaxJitter, backoff)
	}
	backoff = retry.WithMaxRetries(policy.MaxRetries, backoff)

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !apperror.IsConcurrentModification(err) {
			return err
		}
		logger.Debug(ctx, "concurrency conflict, retrying", "attempt", attempt, "error", err)
		if onRetry != nil {
			onRetry(attempt, err)
		}
		return retry.RetryableError(err)
	})
}
