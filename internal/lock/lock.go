// Package lock provides the scoped, file-based lock that serialises batch
// writes against one ledger.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrTimeout is returned when the lock is still held after the wait bound.
var ErrTimeout = errors.New("lock: timed out waiting for lock")

const retryDelay = 50 * time.Millisecond

// Release frees an acquired lock. It is safe to call more than once.
type Release func() error

// Acquire takes the lock at path, waiting at most timeout.
func Acquire(ctx context.Context, path string, timeout time.Duration) (Release, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("lock dir: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fl := flock.New(path)
	ok, err := fl.TryLockContext(waitCtx, retryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, path, timeout)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, path, timeout)
	}
	released := false
	return func() error {
		if released {
			return nil
		}
		released = true
		return fl.Unlock()
	}, nil
}

// With runs fn while holding the lock at path. The lock is released on
// every exit path, including a panic in fn.
func With(ctx context.Context, path string, timeout time.Duration, fn func(ctx context.Context) error) (err error) {
	release, err := Acquire(ctx, path, timeout)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := release(); rerr != nil && err == nil {
			err = fmt.Errorf("unlock %s: %w", path, rerr)
		}
	}()
	return fn(ctx)
}
