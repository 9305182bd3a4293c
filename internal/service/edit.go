package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgersync/internal/database/repository"
	"github.com/jask/ledgersync/internal/ledger"
	"github.com/jask/ledgersync/internal/reconcile"
	"github.com/jask/ledgersync/internal/reimburse"
)

// SplitSide names the side of an ownership split being edited.
type SplitSide string

const (
	LocalSide  SplitSide = "local"
	RemoteSide SplitSide = "remote"
)

// ParseSplitSide accepts "local" or "remote" in any case.
func ParseSplitSide(s string) (SplitSide, error) {
	switch SplitSide(strings.ToLower(strings.TrimSpace(s))) {
	case LocalSide:
		return LocalSide, nil
	case RemoteSide:
		return RemoteSide, nil
	}
	return "", ledger.Invalid("side", "%q is not local or remote", s)
}

// Annotation carries optional field edits. Nil fields are left alone.
type Annotation struct {
	Category *string
	Comment  *string
	Tags     *ledger.TagSet
}

// EditService applies single-record edits. Every edit assigns an identifier
// when missing, stamps LastModified, marks the record for outbound sync and
// writes an audit entry.
type EditService struct {
	Ledger *repository.LedgerRepo
	Log    *repository.SyncLogRepo
	Lock   *Locker

	// DefaultRemoteShare is used when a record has no split yet. Unset
	// means the export default.
	DefaultRemoteShare decimal.NullDecimal
	Logger             *slog.Logger
	Now                func() time.Time
}

func (s *EditService) edit(ctx context.Context, id, detail string, fn func(*ledger.Record) error) (ledger.Record, error) {
	var out ledger.Record
	err := s.Lock.Run(ctx, func(ctx context.Context) error {
		now := clockOr(s.Now)()
		rec, err := s.Ledger.Modify(ctx, id, func(r *ledger.Record) error {
			if err := fn(r); err != nil {
				return err
			}
			r.Touch(now)
			return nil
		})
		if err != nil {
			return err
		}
		out = rec
		s.audit(ctx, rec.ID, detail, now)
		return nil
	})
	return out, err
}

// MarkForSync flags records for the next export. Unknown identifiers are
// reported in the summary and the rest still run.
func (s *EditService) MarkForSync(ctx context.Context, ids ...string) (ledger.Summary, error) {
	sum := ledger.Summary{Operation: "mark"}
	for _, id := range ids {
		sum.Processed++
		if _, err := s.edit(ctx, id, "mark for sync", func(*ledger.Record) error { return nil }); err != nil {
			if ledger.IsValidation(err) || isNotFound(err) {
				sum.Fail(id, err)
				continue
			}
			return sum, err
		}
		sum.Updated++
	}
	return sum, nil
}

// MarkAllForSync flags every record carrying tag, or every record when tag
// is empty.
func (s *EditService) MarkAllForSync(ctx context.Context, tag string) (int, error) {
	var n int
	err := s.Lock.Run(ctx, func(ctx context.Context) error {
		now := clockOr(s.Now)()
		var err error
		n, err = s.Ledger.ModifyAll(ctx, func(r *ledger.Record) bool {
			if tag != "" && !r.Tags.Has(tag) {
				return false
			}
			r.Touch(now)
			return true
		})
		if err == nil {
			s.audit(ctx, "", fmt.Sprintf("mark all for sync tag=%q count=%d", tag, n), now)
		}
		return err
	})
	return n, err
}

// SetAmount changes the amount and recomputes owed shares. A record with no
// split gets the default one.
func (s *EditService) SetAmount(ctx context.Context, id string, amount decimal.Decimal) (ledger.Record, error) {
	return s.edit(ctx, id, "amount="+amount.String(), func(r *ledger.Record) error {
		r.Amount = amount
		if !r.Split.IsSet() {
			r.Split = r.Split.Normalize(s.remoteShare())
		}
		s.recompute(r)
		return nil
	})
}

// SetSplit sets one side of the ownership split, clamped to [0, 100], and
// derives the other side.
func (s *EditService) SetSplit(ctx context.Context, id string, side SplitSide, pct decimal.Decimal) (ledger.Record, error) {
	return s.edit(ctx, id, fmt.Sprintf("split %s=%s", side, pct), func(r *ledger.Record) error {
		switch side {
		case LocalSide:
			r.Split = ledger.NewSplit(pct)
		case RemoteSide:
			r.Split = ledger.NewRemoteSplit(pct)
		default:
			return ledger.Invalid("side", "%q is not local or remote", side)
		}
		s.recompute(r)
		return nil
	})
}

// SetReimbursement applies a reimbursed amount to the owed shares.
func (s *EditService) SetReimbursement(ctx context.Context, id string, amount decimal.Decimal) (ledger.Record, error) {
	return s.edit(ctx, id, "reimbursed="+amount.String(), func(r *ledger.Record) error {
		if r.Shares.IsZero() && r.Original == nil {
			r.Shares = ledger.SharesFor(r.Amount, r.Split, s.remoteShare())
		}
		reimburse.Apply(&r.Settlement, amount)
		return nil
	})
}

// Annotate edits category, comment or tags.
func (s *EditService) Annotate(ctx context.Context, id string, a Annotation) (ledger.Record, error) {
	var parts []string
	if a.Category != nil {
		parts = append(parts, "category="+*a.Category)
	}
	if a.Comment != nil {
		parts = append(parts, "comment="+*a.Comment)
	}
	if a.Tags != nil {
		parts = append(parts, "tags="+a.Tags.String())
	}
	if len(parts) == 0 {
		return ledger.Record{}, ledger.Invalid("annotation", "nothing to change")
	}
	return s.edit(ctx, id, strings.Join(parts, " "), func(r *ledger.Record) error {
		if a.Category != nil {
			r.Category = *a.Category
		}
		if a.Comment != nil {
			r.Comment = *a.Comment
		}
		if a.Tags != nil {
			r.Tags = a.Tags.Clone()
		}
		return nil
	})
}

// recompute derives shares from amount and split. An existing reimbursement
// is re-applied on top of the new shares.
func (s *EditService) recompute(r *ledger.Record) {
	r.Shares = ledger.SharesFor(r.Amount, r.Split, s.remoteShare())
	r.Original = nil
	if !r.Reimbursed.IsZero() {
		reimburse.Apply(&r.Settlement, r.Reimbursed)
	}
}

func (s *EditService) remoteShare() decimal.Decimal {
	if !s.DefaultRemoteShare.Valid {
		return reconcile.DefaultOptions().DefaultRemoteShare
	}
	return s.DefaultRemoteShare.Decimal
}

func (s *EditService) audit(ctx context.Context, id, detail string, at time.Time) {
	if s.Log == nil {
		return
	}
	if err := s.Log.Add(ctx, repository.SyncLogEntry{Operation: "edit", RecordID: id, Detail: detail, CreatedAt: at}); err != nil {
		loggerOr(s.Logger).Warn("write edit log", "id", id, "err", err)
	}
}
