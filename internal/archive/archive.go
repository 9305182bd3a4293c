// Package archive moves processed statement files out of the inbox and keeps
// the append-only run log.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store archives processed files and appends run log lines.
type Store interface {
	// Archive moves the file at path into the archive and returns where it went.
	Archive(ctx context.Context, path string) (string, error)
	// AppendLog adds lines to the named log.
	AppendLog(ctx context.Context, name string, lines []string) error
}

// LocalStore archives into a directory on disk.
type LocalStore struct {
	Dir string
	Now func() time.Time
}

// NewLocalStore archives into dir, creating it on first use.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{Dir: dir, Now: time.Now}
}

func (s *LocalStore) Archive(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("archive dir: %w", err)
	}
	dest := filepath.Join(s.Dir, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		dest = filepath.Join(s.Dir, stampedName(filepath.Base(path), s.now()))
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("archive %s: %w", filepath.Base(path), err)
	}
	return dest, nil
}

func (s *LocalStore) AppendLog(ctx context.Context, name string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("archive dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(s.Dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(strings.Join(lines, "\n") + "\n")
	return err
}

func (s *LocalStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// stampedName keeps a second upload of the same file name apart from the first.
func stampedName(base string, at time.Time) string {
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "-" + at.UTC().Format("20060102T150405") + ext
}
