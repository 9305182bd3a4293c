package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// SharedRecord is a row of the shared ledger both parties read and write.
// Shares.Local is what the local party owes the remote party and
// Shares.Remote is what the remote party owes the local party.
type SharedRecord struct {
	ID          string
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Settlement
	Comment       string
	Category      string
	Tags          TagSet
	LastModified  time.Time
	LastSyncedOut time.Time
	LastSyncedIn  time.Time
	NeedsSyncIn   bool
}

// Unreadable is a stored shared record that could not be decoded. Readers
// skip it and return the rest.
type Unreadable struct {
	ID  string
	Err error
}

// Clone returns a deep copy of r.
func (r SharedRecord) Clone() SharedRecord {
	out := r
	out.Tags = r.Tags.Clone()
	if r.Original != nil {
		orig := *r.Original
		out.Original = &orig
	}
	return out
}

// SharedPatch is a partial update of a shared record. Nil fields are left
// untouched so a patch never clobbers a value with an empty one.
type SharedPatch struct {
	Date         *time.Time
	Description  *string
	Amount       *decimal.Decimal
	RemoteOwes   *decimal.Decimal
	Reimbursed   *decimal.Decimal
	Comment      *string
	Category     *string
	Tags         *TagSet
	LastModified *time.Time
	NeedsSyncIn  *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p SharedPatch) IsEmpty() bool {
	return p.Date == nil && p.Description == nil && p.Amount == nil && p.RemoteOwes == nil &&
		p.Reimbursed == nil && p.Comment == nil && p.Category == nil && p.Tags == nil &&
		p.LastModified == nil && p.NeedsSyncIn == nil
}

// Apply writes the non-nil fields of p onto r.
func (p SharedPatch) Apply(r *SharedRecord) {
	if p.Date != nil {
		r.Date = *p.Date
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Amount != nil {
		r.Amount = *p.Amount
	}
	if p.RemoteOwes != nil {
		r.Shares.Remote = *p.RemoteOwes
	}
	if p.Reimbursed != nil {
		r.Reimbursed = *p.Reimbursed
	}
	if p.Comment != nil {
		r.Comment = *p.Comment
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.Tags != nil {
		r.Tags = p.Tags.Clone()
	}
	if p.LastModified != nil {
		r.LastModified = *p.LastModified
	}
	if p.NeedsSyncIn != nil {
		r.NeedsSyncIn = *p.NeedsSyncIn
	}
}
