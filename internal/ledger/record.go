// Package ledger holds the household ledger record and the small value types
// shared by ingestion, tagging and reconciliation.
package ledger

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DayLayout is the calendar-day key format used for fingerprints and storage.
const DayLayout = "2006-01-02"

// Record is one row of the local household ledger.
type Record struct {
	Key             int64     // local row key; zero until stored
	ID              string    // shared identifier; empty until the first edit or export
	Date            time.Time // calendar day at midnight UTC; zero when the source date was invalid
	Description     string
	FullDescription string
	Category        string
	Tags            TagSet
	TagLog          []string
	Account         string
	AccountNumber   string
	Institution     string
	Amount          decimal.Decimal
	Split           Split
	Settlement
	TotalPaid     decimal.Decimal
	Comment       string
	DateAdded     time.Time
	LastModified  time.Time
	LastSyncedOut time.Time
	LastSyncedIn  time.Time
	NeedsSyncOut  bool
}

// EnsureID assigns a random identifier when the record has none. An
// existing identifier is never replaced. It reports whether one was assigned.
func (r *Record) EnsureID() bool {
	if r.ID != "" {
		return false
	}
	r.ID = uuid.NewString()
	return true
}

// Ref names the record for lookups and logs: its ID, or "#<key>" while it
// has none.
func (r Record) Ref() string {
	if r.ID != "" {
		return r.ID
	}
	if r.Key != 0 {
		return "#" + strconv.FormatInt(r.Key, 10)
	}
	return ""
}

// Touch records a user or system edit: it ensures an identifier, stamps
// LastModified and marks the record for outbound sync.
func (r *Record) Touch(now time.Time) {
	r.EnsureID()
	r.LastModified = now
	r.NeedsSyncOut = true
}

// HasValidDate reports whether the record carries a usable calendar date.
func (r Record) HasValidDate() bool { return !r.Date.IsZero() }

// DayKey returns the record date as a yyyy-MM-dd key in loc (UTC when nil).
func (r Record) DayKey(loc *time.Location) string {
	return DayKey(r.Date, loc)
}

// DayKey formats t as a calendar day in loc. A zero time yields "".
func DayKey(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}

// CalendarDay returns the calendar day of t in loc (UTC when nil) as
// midnight UTC, the form record dates are kept in.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	d := t.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a yyyy-MM-dd key as midnight UTC.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(DayLayout, s)
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := r
	out.Tags = r.Tags.Clone()
	if r.TagLog != nil {
		out.TagLog = append([]string(nil), r.TagLog...)
	}
	if r.Original != nil {
		orig := *r.Original
		out.Original = &orig
	}
	return out
}

// Index maps record identifiers to their position in records. Records
// without an identifier are left out.
func Index(records []Record) map[string]int {
	out := make(map[string]int, len(records))
	for i, r := range records {
		if r.ID != "" {
			out[r.ID] = i
		}
	}
	return out
}
