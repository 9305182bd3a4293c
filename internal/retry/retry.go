// Package retry runs a unit of work a bounded number of times with a fixed
// pause between attempts.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds the attempts made for one unit of work.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultPolicy matches the daily automation: three attempts, two seconds apart.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Backoff: 2 * time.Second}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error { return backoff.Permanent(err) }

// Do calls fn until it succeeds, returns a permanent error, the context ends
// or the attempts run out. onRetry, when set, sees each failed attempt that
// will be retried. It returns the number of attempts made and the last error.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error, onRetry func(attempt int, err error)) (int, error) {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	var b backoff.BackOff = backoff.NewConstantBackOff(p.Backoff)
	b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
	b = backoff.WithContext(b, ctx)

	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		return fn(ctx)
	}, b, func(err error, _ time.Duration) {
		if onRetry != nil {
			onRetry(attempts, err)
		}
	})
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	return attempts, err
}
