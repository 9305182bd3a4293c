package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jask/ledgersync/internal/database/repository"
	"github.com/jask/ledgersync/internal/fingerprint"
	"github.com/jask/ledgersync/internal/ledger"
)

// Tags written by the duplicate scan.
const (
	DuplicateTag   = "duplicate"
	InvalidDateTag = "InvalidDate"
)

// DefaultDuplicateWindow is how close two imports of the same row must be
// for the later one to count as a duplicate.
const DefaultDuplicateWindow = 5 * time.Minute

// Confirmer asks the user before a destructive step.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) (bool, error)

func (f ConfirmFunc) Confirm(prompt string) (bool, error) { return f(prompt) }

// DedupService finds and removes duplicated statement rows.
type DedupService struct {
	Ledger *repository.LedgerRepo
	Log    *repository.SyncLogRepo
	Lock   *Locker

	Logger *slog.Logger
	Now    func() time.Time
}

// DedupResult counts the rows tagged by a scan.
type DedupResult struct {
	Duplicates   int
	InvalidDates int
}

// TagDuplicates tags rows of institution that share a fingerprint with an
// earlier row added within window of it, and tags rows without a usable
// date. Nothing is deleted.
func (s *DedupService) TagDuplicates(ctx context.Context, institution string, window time.Duration) (DedupResult, error) {
	if window <= 0 {
		window = DefaultDuplicateWindow
	}
	var res DedupResult
	err := s.Lock.Run(ctx, func(ctx context.Context) error {
		seen := make(map[string]time.Time)
		_, err := s.Ledger.ModifyAll(ctx, func(r *ledger.Record) bool {
			if r.Institution != institution {
				return false
			}
			if !r.HasValidDate() {
				res.InvalidDates++
				var added []string
				r.Tags, added = r.Tags.Add(InvalidDateTag)
				return len(added) > 0
			}
			key := fingerprint.Of(*r, time.UTC)
			first, ok := seen[key]
			if !ok {
				seen[key] = r.DateAdded
				return false
			}
			if absDuration(r.DateAdded.Sub(first)) > window {
				return false
			}
			var added []string
			r.Tags, added = r.Tags.Add(DuplicateTag)
			if len(added) == 0 {
				return false
			}
			res.Duplicates++
			return true
		})
		return err
	})
	if err == nil {
		loggerOr(s.Logger).Info("duplicate scan", "institution", institution, "duplicates", res.Duplicates, "invalid_dates", res.InvalidDates)
	}
	return res, err
}

// Tagged lists rows of institution carrying the duplicate tag.
func (s *DedupService) Tagged(ctx context.Context, institution string) ([]ledger.Record, error) {
	all, err := s.Ledger.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []ledger.Record
	for _, r := range all {
		if r.Institution == institution && hasTagFold(r.Tags, DuplicateTag) {
			out = append(out, r)
		}
	}
	return out, nil
}

// DeleteTagged deletes the rows Tagged returns, but only after confirm
// agrees. A declined prompt deletes nothing.
func (s *DedupService) DeleteTagged(ctx context.Context, institution string, confirm Confirmer) (int, error) {
	if confirm == nil {
		return 0, ledger.Invalid("confirm", "a confirmation is required before deleting")
	}
	var deleted int
	err := s.Lock.Run(ctx, func(ctx context.Context) error {
		rows, err := s.Tagged(ctx, institution)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ok, err := confirm.Confirm(fmt.Sprintf("Permanently delete %d %s rows tagged %q?", len(rows), institution, DuplicateTag))
		if err != nil {
			return err
		}
		if !ok {
			loggerOr(s.Logger).Info("duplicate delete cancelled", "institution", institution, "rows", len(rows))
			return nil
		}
		keys := make([]int64, len(rows))
		for i, r := range rows {
			keys[i] = r.Key
		}
		deleted, err = s.Ledger.Delete(ctx, keys)
		if err != nil {
			return err
		}
		if s.Log != nil {
			now := clockOr(s.Now)()
			entries := make([]repository.SyncLogEntry, 0, len(rows))
			for _, r := range rows {
				entries = append(entries, repository.SyncLogEntry{Operation: "delete-duplicate", RecordID: r.Ref(), Detail: fingerprint.Of(r, time.UTC), CreatedAt: now})
			}
			if err := s.Log.Add(ctx, entries...); err != nil {
				loggerOr(s.Logger).Warn("write delete log", "err", err)
			}
		}
		return nil
	})
	return deleted, err
}

// NearDuplicate is a pair of rows that look alike without sharing a
// fingerprint. They are listed for review, never merged.
type NearDuplicate struct {
	A, B       ledger.Record
	Similarity float64
	DaysApart  int
}

// NearDuplicates pairs rows with equal amounts, dates at most maxDays apart
// and descriptions whose normalised edit distance is below threshold.
func (s *DedupService) NearDuplicates(ctx context.Context, threshold float64, maxDays int) ([]NearDuplicate, error) {
	if threshold <= 0 {
		threshold = 0.4
	}
	if maxDays < 0 {
		maxDays = 7
	}
	recs, err := s.Ledger.List(ctx)
	if err != nil {
		return nil, err
	}
	norms := make([]string, len(recs))
	for i, r := range recs {
		norms[i] = normalizeDescription(r.Description)
	}
	var out []NearDuplicate
	for i := 0; i < len(recs); i++ {
		for j := i + 1; j < len(recs); j++ {
			a, b := recs[i], recs[j]
			if !a.HasValidDate() || !b.HasValidDate() || !a.Amount.Equal(b.Amount) {
				continue
			}
			days := daysApart(a.Date, b.Date)
			if days > maxDays {
				continue
			}
			if fingerprint.Of(a, time.UTC) == fingerprint.Of(b, time.UTC) {
				continue
			}
			ratio := distanceRatio(norms[i], norms[j])
			if ratio >= threshold {
				continue
			}
			out = append(out, NearDuplicate{A: a, B: b, Similarity: 1 - ratio, DaysApart: days})
		}
	}
	return out, nil
}

var foldMarks = runes.Remove(runes.In(unicode.Mn))

// normalizeDescription strips accents, case and repeated spaces so that
// "Café  Rio" and "CAFE RIO" compare equal.
func normalizeDescription(s string) string {
	t := transform.Chain(norm.NFD, foldMarks, norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToUpper(out)), " ")
}

func distanceRatio(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0
	}
	return float64(levenshtein.ComputeDistance(a, b)) / float64(longest)
}

func daysApart(a, b time.Time) int {
	return int(absDuration(a.Sub(b)).Hours() / 24)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func hasTagFold(tags ledger.TagSet, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}
