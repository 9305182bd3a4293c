// Package reconcile computes two-way sync plans between the local ledger and
// the shared ledger. Plans are pure values; callers apply them to stores.
package reconcile

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgersync/internal/ledger"
)

// Skip categories reported in summaries.
const (
	SkipRemoteOrigin   = "remote origin"
	SkipImported       = "imported"
	SkipBeforeCutoff   = "before cutoff"
	SkipNotShared      = "not shared"
	SkipNoChange       = "no change"
	SkipAlreadyPushed  = "already pushed"
	SkipWrongDirection = "wrong direction"
	SkipMissingID      = "missing id"
	SkipNoRemoteRow    = "no remote row"
)

// Options configures export and import.
type Options struct {
	// SharedTagPrefix selects local records that belong to the shared ledger.
	SharedTagPrefix string

	// ImportedTag marks local records that came from the shared ledger.
	ImportedTag string

	// RemoteMarker is the account and institution name given to imported
	// records; records carrying it are never exported.
	RemoteMarker string

	// Cutoff excludes records dated before it from export.
	Cutoff time.Time

	// PassThroughMatch marks descriptions the remote party owes in full.
	PassThroughMatch   string
	DefaultRemoteShare decimal.Decimal

	// SkipUnchangedPushed also skips records not modified since the last
	// outbound sync.
	SkipUnchangedPushed bool

	// ExportImportedMetadata pushes category and tags of imported records
	// that were edited locally, instead of skipping them.
	ExportImportedMetadata bool

	// Location gives the calendar day used for records that have no date.
	Location *time.Location
}

// DefaultOptions returns the household defaults.
func DefaultOptions() Options {
	return Options{
		SharedTagPrefix:     "RJ",
		ImportedTag:         "ImportedRY",
		RemoteMarker:        "RY Bank",
		Cutoff:              time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		PassThroughMatch:    "VENMO",
		DefaultRemoteShare:  decimal.NewFromInt(50),
		SkipUnchangedPushed: true,
		Location:            time.UTC,
	}
}

func (o Options) isRemoteOrigin(r ledger.Record) bool {
	if o.RemoteMarker == "" {
		return false
	}
	marker := strings.ToUpper(o.RemoteMarker)
	for _, v := range []string{r.Account, r.AccountNumber, r.Institution} {
		if strings.Contains(strings.ToUpper(v), marker) {
			return true
		}
	}
	return false
}

func (o Options) isImported(r ledger.Record) bool {
	if o.ImportedTag == "" {
		return false
	}
	for _, t := range r.Tags {
		if strings.EqualFold(t, o.ImportedTag) {
			return true
		}
	}
	return false
}

func (o Options) isShared(r ledger.Record) bool {
	prefix := strings.ToUpper(o.SharedTagPrefix)
	for _, t := range r.Tags {
		if strings.HasPrefix(strings.ToUpper(t), prefix) {
			return true
		}
	}
	return false
}

func (o Options) isPassThrough(r ledger.Record) bool {
	return o.PassThroughMatch != "" &&
		strings.Contains(strings.ToUpper(r.Description), strings.ToUpper(o.PassThroughMatch))
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}
