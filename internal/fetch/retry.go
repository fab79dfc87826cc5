package fetch

import (
	"context"
	"time"
)

// RetryPolicy is a caller-owned bounded retry loop for fetch operations.
//
// Backoff is linear: attempt n (1-based) sleeps n*Interval before retrying.
// The upstream behavior only pins down a configurable interval, not a shape;
// bounded-linear keeps worst-case wait predictable for operators
// (Attempts*(Attempts+1)/2 * Interval) and is documented here as the chosen
// policy.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	// Values below 1 behave as 1.
	Attempts int

	// Interval is the base delay between attempts.
	Interval time.Duration
}

// Do runs fn until it succeeds, returns a non-retryable error, exhausts the
// attempt budget, or the context is cancelled. Only errors for which
// Retryable reports true trigger another attempt.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		backoff := time.Duration(attempt) * p.Interval
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}
