package ai

import (
	"context"
	"errors"
	"time"
)

const (
	defaultBaseDelay = 200 * time.Millisecond
	defaultMaxDelay  = 5 * time.Second
)

// transientError marks failures worth retrying: timeouts, rate limits and
// 5xx-equivalents. retryAfter carries an upstream Retry-After hint, if any.
type transientError struct {
	err        error
	retryAfter time.Duration
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err so the retry policy will attempt it again.
func Transient(err error) error {
	return &transientError{err: err}
}

// TransientAfter wraps err with an explicit upstream retry delay.
func TransientAfter(err error, after time.Duration) error {
	return &transientError{err: err, retryAfter: after}
}

// RetryPolicy is the single retry/backoff component shared by the embedding
// and generation clients, so both behave consistently. Each attempt runs
// under its own timeout; expiry counts as a transient failure. A persistent
// failure after MaxAttempts surfaces the last error to the caller.
type RetryPolicy struct {
	MaxAttempts int
	Timeout     time.Duration
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	sleep func(time.Duration) // test seam
}

// Do runs op up to MaxAttempts times with exponential backoff between
// transient failures. Cancelling ctx stops immediately: no retry loop may
// outlive its caller.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := p.backoff(attempt - 1)
			var te *transientError
			if errors.As(lastErr, &te) && te.retryAfter > 0 {
				// An upstream hint is honored but bounded: a huge
				// Retry-After must not pin the caller.
				delay = te.retryAfter
				if max := p.maxDelay(); delay > max {
					delay = max
				}
			}
			if err := p.wait(ctx, delay); err != nil {
				return err
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if p.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		err := op(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}

		// An attempt timeout is transient; a permanent error is not worth
		// retrying with the same input.
		if !isTransient(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded)
}

// wait blocks for delay or until ctx is cancelled, whichever comes first.
func (p RetryPolicy) wait(ctx context.Context, delay time.Duration) error {
	if p.sleep != nil {
		p.sleep(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p RetryPolicy) maxDelay() time.Duration {
	if p.MaxDelay > 0 {
		return p.MaxDelay
	}
	return defaultMaxDelay
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	max := p.maxDelay()
	d := base << attempt
	if d > max || d <= 0 {
		d = max
	}
	return d
}
