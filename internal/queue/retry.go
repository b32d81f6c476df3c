package queue

import (
	"context"
	"time"

	"github.com/yndnr/lobbysync-go/internal/core/domain"
	"github.com/yndnr/lobbysync-go/internal/infra/backoff"
)

// RetryPolicy retries an operation with capped exponential backoff.
type RetryPolicy struct {
	// BaseDelay is the delay before the second attempt; it doubles per attempt.
	BaseDelay time.Duration
	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration
	// MaxAttempts bounds the total number of attempts, the first included.
	MaxAttempts int
	// Retryable classifies errors. Nil means domain.IsRetryable.
	Retryable func(error) bool
	// OnRetry, if set, is called before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryPolicy returns the policy used for non-critical mutations.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		MaxAttempts: 3,
	}
}

// Wrap returns an operation that runs op until it succeeds, fails with a
// non-retryable error, exhausts MaxAttempts or ctx is done. The last error
// is returned unchanged.
func (p RetryPolicy) Wrap(op Operation) Operation {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = domain.IsRetryable
	}

	return func(ctx context.Context) error {
		for attempt := 1; ; attempt++ {
			err := op(ctx)
			if err == nil {
				return nil
			}
			if attempt >= attempts || ctx.Err() != nil || !retryable(err) {
				return err
			}

			delay := backoff.Delay(attempt-1, p.BaseDelay, p.MaxDelay)
			if p.OnRetry != nil {
				p.OnRetry(attempt, err, delay)
			}
			if backoff.Sleep(ctx, delay) != nil {
				return err
			}
		}
	}
}
