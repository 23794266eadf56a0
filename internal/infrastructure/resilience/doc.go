/*
Package resilience provides the concurrency and failure-handling primitives
used by the fetch engine.

# Overview

  - Limiter: a FIFO counting permit gate bounding simultaneous browser pages.
  - FirstSuccess: runs competing tasks and returns the first success, falling
    back to the last error only when every task failed.
  - Retry: bounded attempts with exponential backoff (1s doubling, capped at 5s).

# Usage

	limiter := resilience.NewLimiter(5, resilience.WithLogger(logger))
	err := limiter.Do(ctx, func(ctx context.Context) error {
		// exactly one page is owned here
		return nil
	})

	policy := resilience.DefaultRetry()
	err = policy.Do(ctx, func(ctx context.Context, attempt int) error {
		return fetchOnce(ctx)
	})

	html, err := resilience.FirstSuccess(ctx, intercept, poll)

# Permits

Permits must be released exactly once. Prefer Limiter.Do, or defer
Permit.Release immediately after a successful Acquire. Releasing twice is an
invariant violation: it panics when the limiter is strict and is logged
otherwise.
*/
package resilience
