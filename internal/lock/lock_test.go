package lock

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireTimesOutWhileHeld(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.lock")

	release, err := Acquire(ctx, path, time.Second)
	require.NoError(t, err)

	_, err = Acquire(ctx, path, 150*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)

	require.NoError(t, release())
	require.NoError(t, release())

	again, err := Acquire(ctx, path, time.Second)
	require.NoError(t, err)
	require.NoError(t, again())
}

func TestWithReleasesOnErrorAndPanic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.lock")

	boom := errors.New("boom")
	err := With(ctx, path, time.Second, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	require.Panics(t, func() {
		_ = With(ctx, path, time.Second, func(context.Context) error { panic("bad record") })
	})

	ran := false
	require.NoError(t, With(ctx, path, 200*time.Millisecond, func(context.Context) error {
		ran = true
		return nil
	}))
	require.True(t, ran)
}
