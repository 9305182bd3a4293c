package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"

	"github.com/jask/ledgersync/internal/retry"
)

func TestLocalStoreArchiveAvoidsOverwrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	inbox := t.TempDir()
	store := NewLocalStore(filepath.Join(inbox, "Archived"))
	store.Now = func() time.Time { return time.Date(2025, 3, 2, 7, 0, 0, 0, time.UTC) }

	first := filepath.Join(inbox, "march.csv")
	require.NoError(t, os.WriteFile(first, []byte("one"), 0o644))
	dest, err := store.Archive(ctx, first)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(inbox, "Archived", "march.csv"), dest)
	require.NoFileExists(t, first)

	require.NoError(t, os.WriteFile(first, []byte("two"), 0o644))
	dest, err = store.Archive(ctx, first)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(inbox, "Archived", "march-20250302T070000.csv"), dest)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "two", string(data))
}

func TestLocalStoreAppendLog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	require.NoError(t, store.AppendLog(ctx, "run.log", []string{"a", "b"}))
	require.NoError(t, store.AppendLog(ctx, "run.log", nil))
	require.NoError(t, store.AppendLog(ctx, "run.log", []string{"c"}))
	data, err := os.ReadFile(filepath.Join(store.Dir, "run.log"))
	require.NoError(t, err)
	require.Equal(t, "a\nb\nc\n", string(data))
}

func TestContentType(t *testing.T) {
	t.Parallel()
	require.Equal(t, "text/csv", contentType("x.CSV"))
	require.Equal(t, "application/x-ofx", contentType("x.qfx"))
	require.Equal(t, "application/octet-stream", contentType("x.pdf"))
}

func TestGCSStoreRetriesTransientFailures(t *testing.T) {
	t.Parallel()
	s := &GCSStore{bucket: "statements", Retry: retry.Policy{MaxAttempts: 3}}
	ctx := context.Background()

	calls := 0
	err := s.do(ctx, "upload march.csv", func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("503 backend error")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)

	calls = 0
	err = s.do(ctx, "append runs.log", func(context.Context) error {
		calls++
		return fmt.Errorf("failed to open log: %w", storage.ErrBucketNotExist)
	})
	require.ErrorIs(t, err, storage.ErrBucketNotExist)
	require.Equal(t, 1, calls)
}
