package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/jask/ledgersync/internal/retry"
)

// GCSStore archives into a Cloud Storage bucket under prefix. Bucket calls
// run under Retry.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
	now    func() time.Time

	Retry  retry.Policy
	Logger *slog.Logger
}

func NewGCSStore(client *storage.Client, bucket, prefix string) *GCSStore {
	return &GCSStore{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
		Retry:  retry.DefaultPolicy(),
	}
}

func (s *GCSStore) objectName(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// do runs fn under the retry policy. A missing bucket is not retried.
func (s *GCSStore) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := retry.Do(ctx, s.Retry, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, storage.ErrBucketNotExist) {
			return retry.Permanent(err)
		}
		return err
	}, func(attempt int, err error) {
		logger := s.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("cloud storage call failed, retrying", "op", op, "bucket", s.bucket, "attempt", attempt, "err", err)
	})
	return err
}

// Archive uploads the file then removes the local copy. The local file is
// kept when the upload fails.
func (s *GCSStore) Archive(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	var name string
	err = s.do(ctx, "upload "+filepath.Base(localPath), func(ctx context.Context) error {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return retry.Permanent(err)
		}
		name = s.objectName(filepath.Base(localPath))
		obj := s.client.Bucket(s.bucket).Object(name)
		if _, err := obj.Attrs(ctx); err == nil {
			name = s.objectName(stampedName(filepath.Base(localPath), s.now()))
			obj = s.client.Bucket(s.bucket).Object(name)
		} else if !errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("failed to stat gs://%s/%s: %w", s.bucket, name, err)
		}

		writer := obj.NewWriter(ctx)
		writer.ContentType = contentType(localPath)
		if _, err := io.Copy(writer, f); err != nil {
			writer.Close()
			return fmt.Errorf("failed to write to GCS: %w", err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("failed to finalize GCS upload: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	f.Close()
	if err := os.Remove(localPath); err != nil {
		return "", fmt.Errorf("uploaded but failed to remove %s: %w", localPath, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, name), nil
}

// AppendLog rewrites the log object with lines added. Objects are immutable,
// so the previous content is read back first.
func (s *GCSStore) AppendLog(ctx context.Context, name string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	obj := s.client.Bucket(s.bucket).Object(s.objectName(name))
	return s.do(ctx, "append "+name, func(ctx context.Context) error {
		var existing []byte
		r, err := obj.NewReader(ctx)
		switch {
		case err == nil:
			existing, err = io.ReadAll(r)
			r.Close()
			if err != nil {
				return fmt.Errorf("failed to read log: %w", err)
			}
		case errors.Is(err, storage.ErrObjectNotExist):
		default:
			return fmt.Errorf("failed to open log: %w", err)
		}

		w := obj.NewWriter(ctx)
		w.ContentType = "text/plain"
		if _, err := w.Write(existing); err != nil {
			w.Close()
			return err
		}
		if _, err := io.WriteString(w, strings.Join(lines, "\n")+"\n"); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	})
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".csv":
		return "text/csv"
	case ".ofx", ".qfx":
		return "application/x-ofx"
	default:
		return "application/octet-stream"
	}
}
