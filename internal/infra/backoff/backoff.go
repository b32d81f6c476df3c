package backoff

import (
	"context"
	"math"
	"time"
)

// Delay returns base doubled once per prior failure, capped at maxDelay.
// failures <= 0 yields base. A non-positive maxDelay disables the cap, in
// which case the result saturates at the largest Duration.
func Delay(failures int, base, maxDelay time.Duration) time.Duration {
	if failures < 0 {
		failures = 0
	}
	if base <= 0 {
		return 0
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if maxDelay > 0 && d >= maxDelay {
			return maxDelay
		}
		if d <= 0 { // overflow
			return math.MaxInt64
		}
	}
	if maxDelay > 0 && d > maxDelay {
		return maxDelay
	}
	return d
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff tracks consecutive failures for a reconnect loop.
// It is not safe for concurrent use.
type Backoff struct {
	Base     time.Duration
	Max      time.Duration
	failures int
}

// Next returns the delay for the next attempt and counts a failure.
func (b *Backoff) Next() time.Duration {
	d := Delay(b.failures, b.Base, b.Max)
	b.failures++
	return d
}

// Failures returns the number of failures since the last Reset.
func (b *Backoff) Failures() int {
	return b.failures
}

// Reset clears the failure count after a success.
func (b *Backoff) Reset() {
	b.failures = 0
}
