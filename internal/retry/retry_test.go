package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDoRetriesUntilSuccess(t *testing.T) {
	t.Parallel()
	calls := 0
	var seen []int
	n, err := Do(context.Background(), Policy{MaxAttempts: 3}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	}, func(attempt int, _ error) { seen = append(seen, attempt) })
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []int{1, 2}, seen)
}

func TestDoStopsAtLimit(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	n, err := Do(context.Background(), Policy{MaxAttempts: 2}, func(context.Context) error { return boom }, nil)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, n)
}

func TestDoPermanentError(t *testing.T) {
	t.Parallel()
	boom := errors.New("bad input")
	n, err := Do(context.Background(), Policy{MaxAttempts: 5}, func(context.Context) error {
		return Permanent(boom)
	}, nil)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, n)
}

func TestDoHonoursCancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := Do(ctx, Policy{MaxAttempts: 5}, func(context.Context) error { return errors.New("x") }, nil)
	require.Error(t, err)
	require.LessOrEqual(t, n, 1)
}
