package ledger

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTagSet(t *testing.T) {
	t.Parallel()

	tags := ParseTags(" RJ-Food, ,Groceries, RJ-Food ")
	require.Equal(t, TagSet{"RJ-Food", "Groceries"}, tags)
	require.Equal(t, "RJ-Food, Groceries", tags.String())
	require.True(t, tags.HasPrefix("RJ"))
	require.False(t, tags.Has("groceries"))

	next, added := tags.Add("Groceries", "Coffee", "coffee")
	require.Equal(t, []string{"Coffee", "coffee"}, added)
	require.Equal(t, TagSet{"RJ-Food", "Groceries", "Coffee", "coffee"}, next)
	require.Len(t, tags, 2)
}

func TestSplitNormalize(t *testing.T) {
	t.Parallel()

	fifty := decimal.NewFromInt(50)
	s := Split{}.Normalize(fifty)
	require.True(t, s.Balanced())
	require.True(t, s.Local.Decimal.Equal(fifty))

	s = Split{Local: decimal.NewNullDecimal(decimal.NewFromInt(30))}.Normalize(fifty)
	require.True(t, s.Remote.Decimal.Equal(decimal.NewFromInt(70)))

	s = NewSplit(decimal.NewFromInt(140))
	require.True(t, s.Local.Decimal.Equal(decimal.NewFromInt(100)))
	require.True(t, s.Remote.Decimal.IsZero())

	s = NewRemoteSplit(decimal.NewFromInt(-5))
	require.True(t, s.Remote.Decimal.IsZero())
	require.True(t, s.Balanced())
}

func TestSplitBalancedRounding(t *testing.T) {
	t.Parallel()

	s := Split{
		Local:  decimal.NewNullDecimal(decimal.RequireFromString("33.333")),
		Remote: decimal.NewNullDecimal(decimal.RequireFromString("66.667")),
	}
	require.True(t, s.Balanced())
	require.False(t, Split{}.Balanced())
}

func TestSharesFor(t *testing.T) {
	t.Parallel()

	owed := SharesFor(decimal.NewFromInt(-100), Split{}, decimal.NewFromInt(50))
	require.Equal(t, "50", owed.Local.String())
	require.Equal(t, "-50", owed.Remote.String())
}

func TestRecordTouch(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	var r Record
	r.Touch(now)
	require.NotEmpty(t, r.ID)
	require.True(t, r.NeedsSyncOut)
	require.Equal(t, now, r.LastModified)

	id := r.ID
	require.False(t, r.EnsureID())
	require.Equal(t, id, r.ID)
}

func TestDayKey(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 3, 1, 23, 30, 0, 0, time.UTC)
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	require.Equal(t, "2025-03-01", DayKey(ts, nil))
	require.Equal(t, "2025-03-01", DayKey(ts, ny))
	require.Equal(t, "", DayKey(time.Time{}, nil))
}

func TestErrors(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("load: %w", Invalid("cutoff", "bad date %q", "x"))
	require.True(t, IsValidation(err))
	require.Contains(t, err.Error(), "cutoff")

	base := errors.New("boom")
	ext := External("firestore", base)
	require.ErrorIs(t, ext, base)
	require.Nil(t, External("firestore", nil))
}

func TestSummary(t *testing.T) {
	t.Parallel()

	var s Summary
	s.Operation = "export"
	s.Updated = 1
	s.Skip("no change", "abc")
	s.Skip("no change", "")
	other := Summary{Appended: 2}
	other.Skip("wrong direction", "def")
	s.Merge(other)

	require.Equal(t, 3, s.Skipped)
	require.Equal(t, 2, s.SkipCounts["no change"])
	require.Equal(t, "export: Updated: 1 | Appended: 2 | Skipped: 3 | Skipped (no change): 2 | Skipped (wrong direction): 1", s.String())
	require.Len(t, s.Reasons, 2)
}

func TestSharedPatchApply(t *testing.T) {
	t.Parallel()

	rec := SharedRecord{ID: "x", Comment: "keep", Category: "Food"}
	cat := "Dining"
	p := SharedPatch{Category: &cat}
	require.False(t, p.IsEmpty())
	p.Apply(&rec)
	require.Equal(t, "Dining", rec.Category)
	require.Equal(t, "keep", rec.Comment)
	require.True(t, SharedPatch{}.IsEmpty())
}
