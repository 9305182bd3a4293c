package reconcile

import (
	"time"

	"github.com/jask/ledgersync/internal/ledger"
)

// Conflict is a local record edited after its last inbound sync while still
// waiting to be pushed. Conflicts are reported, never resolved here.
type Conflict struct {
	ID           string
	Date         time.Time
	Description  string
	LastModified time.Time
	LastSyncedIn time.Time
}

// Conflicts lists dirty records whose modification time is later than their
// last inbound sync. Records that were never synced in cannot conflict.
func Conflicts(local []ledger.Record) []Conflict {
	var out []Conflict
	for _, r := range local {
		if !r.NeedsSyncOut || r.LastSyncedIn.IsZero() || !r.LastModified.After(r.LastSyncedIn) {
			continue
		}
		out = append(out, Conflict{
			ID:           r.ID,
			Date:         r.Date,
			Description:  r.Description,
			LastModified: r.LastModified,
			LastSyncedIn: r.LastSyncedIn,
		})
	}
	return out
}
