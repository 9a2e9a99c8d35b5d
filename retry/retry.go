// ABOUTME: Bounded retry with exponential or linear backoff
// ABOUTME: Shared by the reply parser, the summarizer, and run-lock acquisition
package retry

import (
	"context"
	"errors"
	"time"
)

// Strategy selects how the delay grows between attempts.
type Strategy int

const (
	// Exponential waits base, 2*base, 4*base, ...
	Exponential Strategy = iota
	// Linear waits base, 2*base, 3*base, ...
	Linear
)

// Policy describes N attempts with a growing delay between them.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	Strategy  Strategy

	// Sleep waits between attempts. Nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultLLM is 3 attempts starting at 1s, doubling.
func DefaultLLM() Policy {
	return Policy{Attempts: 3, BaseDelay: time.Second, Strategy: Exponential}
}

// DefaultLock is 5 attempts at 0.5s x attempt.
func DefaultLock() Policy {
	return Policy{Attempts: 5, BaseDelay: 500 * time.Millisecond, Strategy: Linear}
}

// Delay returns the wait after the given 1-based attempt fails.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	switch p.Strategy {
	case Linear:
		return p.BaseDelay * time.Duration(attempt)
	default:
		return p.BaseDelay * time.Duration(1<<uint(attempt-1))
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so Do stops retrying and returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn until it succeeds, returns a Permanent error, the context ends,
// or the attempts are used up. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err

		if attempt < attempts {
			if err := sleep(ctx, p.Delay(attempt)); err != nil {
				return err
			}
		}
	}
	return lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

// NoSleep is a Sleep function for tests.
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
