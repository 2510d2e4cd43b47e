// Package retry runs an action under a fixed attempt budget with explicit
// per-attempt delays. It does no logging of its own; callers observe retries
// through Policy.OnRetry.
package retry

import (
	"context"
	"fmt"
	"time"

	"shiftsync/internal/services"
)

// DefaultDelays is the backoff schedule used when a Policy names none.
var DefaultDelays = []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second}

// DefaultMaxAttempts is the attempt budget used when a Policy names none.
const DefaultMaxAttempts = 3

// Policy describes how often and how patiently to retry.
type Policy struct {
	MaxAttempts int
	// Delays[i] is the wait after attempt i+1 fails. The last entry repeats.
	Delays []time.Duration
	// Retryable classifies errors; nil means services.IsRetryable.
	Retryable func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
	// Sleep waits for d or until ctx ends; nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default returns the three-attempt 30s/60s/120s policy.
func Default() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Delays: append([]time.Duration(nil), DefaultDelays...)}
}

// Delay returns the wait after the given 1-based failed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	delays := p.Delays
	if len(delays) == 0 {
		delays = DefaultDelays
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(delays) {
		idx = len(delays) - 1
	}
	return delays[idx]
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

// Do runs action until it succeeds, returns a non-retryable error, the
// attempt budget is spent, or ctx ends. The final error wraps the last
// action error.
func Do[T any](ctx context.Context, p Policy, action func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = services.IsRetryable
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepWithContext
	}

	attempts := p.attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return zero, err
		}
		value, err := action(ctx, attempt)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if !retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}
		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("%w (last error: %v)", err, lastErr)
		}
	}
	return zero, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// SleepWithContext blocks for d, returning early if ctx ends.
func SleepWithContext(ctx context.Context, d time.Duration) error {
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
