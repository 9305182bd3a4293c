package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jask/ledgersync/internal/database/repository"
	"github.com/jask/ledgersync/internal/ledger"
	"github.com/jask/ledgersync/internal/reconcile"
)

// SyncService runs export and import passes between the local ledger and
// the shared ledger.
type SyncService struct {
	Ledger  *repository.LedgerRepo
	Shared  SharedStore
	Log     *repository.SyncLogRepo
	Lock    *Locker
	Options reconcile.Options
	Logger  *slog.Logger
	Now     func() time.Time
}

// Export pushes eligible local records to the shared ledger. Shared writes
// happen first; a local record is stamped only when its shared write
// succeeded. A failed record is reported and the rest of the batch goes on.
func (s *SyncService) Export(ctx context.Context) (ledger.Summary, error) {
	var sum ledger.Summary
	err := s.Lock.Run(ctx, func(ctx context.Context) error {
		var err error
		sum, err = s.export(ctx)
		return err
	})
	return sum, err
}

func (s *SyncService) export(ctx context.Context) (ledger.Summary, error) {
	log := loggerOr(s.Logger)
	local, err := s.Ledger.List(ctx)
	if err != nil {
		return ledger.Summary{Operation: "export"}, fmt.Errorf("read local ledger: %w", err)
	}
	remote, bad, err := s.Shared.ReadAll(ctx)
	if err != nil {
		return ledger.Summary{Operation: "export"}, fmt.Errorf("read shared ledger: %w", err)
	}
	now := clockOr(s.Now)()
	plan := reconcile.Export(local, remote, s.Options, now)
	sum := plan.Summary
	s.reportUnreadable(&sum, bad)

	// an unreadable row still occupies its id, so appending over it would fail
	failed := make(map[string]bool)
	for _, u := range bad {
		failed[u.ID] = true
	}
	appends := plan.Appends[:0]
	for _, a := range plan.Appends {
		if failed[a.ID] {
			sum.Appended--
			continue
		}
		appends = append(appends, a)
	}
	plan.Appends = appends

	for _, u := range plan.Updates {
		if err := s.Shared.Update(ctx, u.ID, u.Patch); err != nil {
			log.Error("export update", "id", u.ID, "err", err)
			sum.Updated--
			sum.Fail(u.ID, err)
			failed[u.ID] = true
		}
	}
	if len(plan.Appends) > 0 {
		if err := s.Shared.Append(ctx, plan.Appends); err != nil {
			log.Error("export append", "count", len(plan.Appends), "err", err)
			for _, a := range plan.Appends {
				sum.Fail(a.ID, err)
				failed[a.ID] = true
			}
			sum.Appended = 0
		}
	}

	stamped := make([]ledger.Record, 0, len(plan.Local))
	for _, rec := range plan.Local {
		if !failed[rec.ID] {
			stamped = append(stamped, rec)
		}
	}
	if err := s.Ledger.Save(ctx, stamped); err != nil {
		return sum, fmt.Errorf("stamp exported records: %w", err)
	}
	s.audit(ctx, "export", stamped, sum, now)
	log.Info("export complete", "summary", sum.String())
	return sum, nil
}

// Import pulls shared records the local party owes into the local ledger.
// Local writes land in one transaction before the shared records are
// stamped, so a failed local write leaves the shared side untouched.
func (s *SyncService) Import(ctx context.Context) (ledger.Summary, error) {
	var sum ledger.Summary
	err := s.Lock.Run(ctx, func(ctx context.Context) error {
		var err error
		sum, err = s.importShared(ctx)
		return err
	})
	return sum, err
}

func (s *SyncService) importShared(ctx context.Context) (ledger.Summary, error) {
	log := loggerOr(s.Logger)
	remote, bad, err := s.Shared.ReadAll(ctx)
	if err != nil {
		return ledger.Summary{Operation: "import"}, fmt.Errorf("read shared ledger: %w", err)
	}
	local, err := s.Ledger.List(ctx)
	if err != nil {
		return ledger.Summary{Operation: "import"}, fmt.Errorf("read local ledger: %w", err)
	}
	now := clockOr(s.Now)()
	plan := reconcile.Import(remote, local, s.Options, now)
	sum := plan.Summary
	s.reportUnreadable(&sum, bad)

	if err := s.Ledger.Apply(ctx, plan.Updates, plan.Appends); err != nil {
		return sum, fmt.Errorf("write imported records: %w", err)
	}
	for _, b := range plan.Backfill {
		if err := s.Shared.Update(ctx, b.ID, b.Patch); err != nil {
			log.Warn("backfill shared modification time", "id", b.ID, "err", err)
		}
	}
	if err := s.Shared.MarkSyncedIn(ctx, plan.Synced, now); err != nil {
		return sum, fmt.Errorf("stamp shared records: %w", err)
	}
	s.audit(ctx, "import", append(plan.Updates, plan.Appends...), sum, now)
	log.Info("import complete", "summary", sum.String())
	return sum, nil
}

// Sync imports then exports under a single lock hold.
func (s *SyncService) Sync(ctx context.Context) ([]ledger.Summary, error) {
	var out []ledger.Summary
	err := s.Lock.Run(ctx, func(ctx context.Context) error {
		in, err := s.importShared(ctx)
		out = append(out, in)
		if err != nil {
			return err
		}
		ex, err := s.export(ctx)
		out = append(out, ex)
		return err
	})
	return out, err
}

// Conflicts lists local records edited since their last inbound sync that
// are still waiting to be pushed.
func (s *SyncService) Conflicts(ctx context.Context) ([]reconcile.Conflict, error) {
	local, err := s.Ledger.List(ctx)
	if err != nil {
		return nil, err
	}
	return reconcile.Conflicts(local), nil
}

// reportUnreadable counts shared records that could not be decoded as
// failures of the run.
func (s *SyncService) reportUnreadable(sum *ledger.Summary, bad []ledger.Unreadable) {
	for _, u := range bad {
		loggerOr(s.Logger).Warn("skip unreadable shared record", "id", u.ID, "err", u.Err)
		sum.Fail(u.ID, u.Err)
	}
}

func (s *SyncService) audit(ctx context.Context, op string, recs []ledger.Record, sum ledger.Summary, at time.Time) {
	if s.Log == nil {
		return
	}
	entries := make([]repository.SyncLogEntry, 0, len(recs)+1)
	for _, r := range recs {
		entries = append(entries, repository.SyncLogEntry{Operation: op, RecordID: r.Ref(), Detail: r.Description, CreatedAt: at})
	}
	entries = append(entries, repository.SyncLogEntry{Operation: op, Detail: sum.String(), CreatedAt: at})
	if err := s.Log.Add(ctx, entries...); err != nil {
		loggerOr(s.Logger).Warn("write sync log", "op", op, "err", err)
	}
}
