package resilience

import (
	"context"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	// DefaultMaxAttempts is the number of attempts a Retry makes by default.
	DefaultMaxAttempts = 3

	// BackoffBase is the delay after the first failed attempt.
	BackoffBase = 1000 * time.Millisecond

	// BackoffCap bounds every delay regardless of attempt count.
	BackoffCap = 5000 * time.Millisecond
)

// Backoff returns the delay to wait after the given failed attempt (1-based):
// 1s, 2s, 4s, then 5s forever.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return retryablehttp.DefaultBackoff(BackoffBase, BackoffCap, attempt-1, nil)
}

// Retry drives an operation through a bounded number of attempts.
type Retry struct {
	MaxAttempts int

	// Backoff computes the delay after a failed attempt. Defaults to Backoff.
	Backoff func(attempt int) time.Duration

	// Sleep waits between attempts. Defaults to SleepContext.
	Sleep func(ctx context.Context, d time.Duration) error

	// Retryable reports whether err may be retried. Nil retries everything.
	Retryable func(err error) bool

	// OnRetry is called before each delay.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetry returns a policy with three attempts and exponential backoff.
func DefaultRetry() Retry {
	return Retry{MaxAttempts: DefaultMaxAttempts}
}

// Do calls fn until it succeeds, returns a non-retryable error, or the attempt
// budget is spent. The error of the final attempt is returned unchanged.
func (r Retry) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := r.Backoff
	if backoff == nil {
		backoff = Backoff
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if attempt == attempts || (r.Retryable != nil && !r.Retryable(err)) {
			return err
		}

		delay := backoff(attempt)
		if r.OnRetry != nil {
			r.OnRetry(attempt, delay, err)
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return err
		}
	}
	return err
}

// SleepContext sleeps for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
