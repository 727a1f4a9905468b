// Package retry runs an operation a fixed number of times and remembers how
// the last attempt failed.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultAttempts matches the downloader's historic retry count.
const DefaultAttempts = 10

// Policy controls how many attempts are made and how long to wait between them.
type Policy struct {
	Attempts int

	// NewBackOff returns a fresh schedule for one Do call.
	// Nil uses a short jittered exponential schedule.
	NewBackOff func() backoff.BackOff
}

// Exhausted is returned once every attempt has failed. Status is the last
// non-zero status reported by the operation (an HTTP code for transport calls).
type Exhausted struct {
	Attempts int
	Status   int
	Err      error
}

func (e *Exhausted) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gave up after %d attempts (last status %d): %v", e.Attempts, e.Status, e.Err)
	}
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *Exhausted) Unwrap() error {
	return e.Err
}

// Operation performs one attempt. It returns the status it observed
// (0 if none) alongside its result.
type Operation[T any] func(ctx context.Context) (T, int, error)

// Do runs op until it succeeds or p.Attempts attempts have failed, in which
// case it returns an *Exhausted. Cancelling ctx stops further attempts.
func Do[T any](ctx context.Context, p Policy, op Operation[T]) (T, error) {
	attempts := max(p.Attempts, 1)
	newBackOff := p.NewBackOff
	if newBackOff == nil {
		newBackOff = DefaultBackOff
	}

	var (
		tries  int
		status int
		last   error
	)
	result, err := backoff.Retry(ctx, func() (T, error) {
		tries++
		res, code, err := op(ctx)
		if code != 0 {
			status = code
		}
		if err != nil {
			last = err
		}
		return res, err
	},
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.DebugContext(ctx, "attempt failed, retrying", "attempt", tries, "status", status, "retry_in", next, "error", err)
		}),
	)
	if err == nil {
		return result, nil
	}

	if last == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		last = err
	}
	var zero T
	return zero, &Exhausted{Attempts: tries, Status: status, Err: last}
}

// DefaultBackOff is a short exponential schedule with jitter, capped at two seconds.
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

// NoWait retries immediately.
func NoWait() backoff.BackOff {
	return &backoff.ZeroBackOff{}
}
