package usecase

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds and paces retries after serialization conflicts.
// The zero value retries immediately and without limit.
type RetryPolicy struct {
	// MaxAttempts caps the attempts of one transfer. Zero means unbounded.
	MaxAttempts int
	// NewBackOff returns the pause schedule for one transfer. Nil means no pause.
	NewBackOff func() backoff.BackOff
}

// UnboundedRetry retries every conflict immediately, forever.
func UnboundedRetry() RetryPolicy {
	return RetryPolicy{}
}

// ExponentialRetry pauses between conflicts with jittered exponential backoff.
func ExponentialRetry(maxAttempts int, initial, maxInterval time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			b.MaxInterval = maxInterval
			// the attempt cap, not elapsed time, ends the loop
			b.MaxElapsedTime = 0
			b.Reset()
			return b
		},
	}
}

func (p RetryPolicy) backOff() backoff.BackOff {
	if p.NewBackOff == nil {
		return &backoff.ZeroBackOff{}
	}
	return p.NewBackOff()
}

func (p RetryPolicy) exhausted(attempts int) bool {
	return p.MaxAttempts > 0 && attempts >= p.MaxAttempts
}

// pause waits for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
