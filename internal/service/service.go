// Package service wires the ledger core to its stores. Every operation that
// reads then writes ledger state runs under the scoped ledger lock.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jask/ledgersync/internal/database"
	"github.com/jask/ledgersync/internal/ledger"
	"github.com/jask/ledgersync/internal/lock"
)

// SharedStore is the shared ledger both parties read and write. It is
// implemented on sqlite and on Firestore.
type SharedStore interface {
	ReadAll(ctx context.Context) ([]ledger.SharedRecord, []ledger.Unreadable, error)
	Append(ctx context.Context, recs []ledger.SharedRecord) error
	Update(ctx context.Context, id string, p ledger.SharedPatch) error
	MarkSyncedIn(ctx context.Context, ids []string, at time.Time) error
}

// Locker serialises batch writes against one ledger. A nil Locker or an
// empty Path runs without locking.
type Locker struct {
	Path    string
	Timeout time.Duration
}

// Run calls fn while holding the lock.
func (l *Locker) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if l == nil || l.Path == "" {
		return fn(ctx)
	}
	return lock.With(ctx, l.Path, l.Timeout, fn)
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func clockOr(now func() time.Time) func() time.Time {
	if now == nil {
		return database.Now
	}
	return now
}

func isNotFound(err error) bool { return errors.Is(err, ledger.ErrNotFound) }
