package firestore

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgersync/internal/ledger"
)

// sharedDoc is the Firestore shape of a shared record. Money is stored as
// decimal strings.
type sharedDoc struct {
	ID             string     `firestore:"id"`
	Date           string     `firestore:"date"`
	Description    string     `firestore:"description"`
	Amount         string     `firestore:"amount"`
	LocalOwes      string     `firestore:"localOwes"`
	RemoteOwes     string     `firestore:"remoteOwes"`
	OrigLocalOwes  *string    `firestore:"origLocalOwes,omitempty"`
	OrigRemoteOwes *string    `firestore:"origRemoteOwes,omitempty"`
	Reimbursed     string     `firestore:"amountReimbursed"`
	Comment        string     `firestore:"comment"`
	Category       string     `firestore:"category"`
	Tags           []string   `firestore:"tags"`
	LastModified   *time.Time `firestore:"lastModified,omitempty"`
	LastSyncedOut  *time.Time `firestore:"lastSyncedOut,omitempty"`
	LastSyncedIn   *time.Time `firestore:"lastSyncedIn,omitempty"`
	NeedsSyncIn    bool       `firestore:"needsSyncIn"`
}

func docFrom(r ledger.SharedRecord) sharedDoc {
	d := sharedDoc{
		ID:            r.ID,
		Date:          ledger.DayKey(r.Date, time.UTC),
		Description:   r.Description,
		Amount:        r.Amount.String(),
		LocalOwes:     r.Shares.Local.String(),
		RemoteOwes:    r.Shares.Remote.String(),
		Reimbursed:    r.Reimbursed.String(),
		Comment:       r.Comment,
		Category:      r.Category,
		Tags:          []string(r.Tags.Clone()),
		LastModified:  timePtr(r.LastModified),
		LastSyncedOut: timePtr(r.LastSyncedOut),
		LastSyncedIn:  timePtr(r.LastSyncedIn),
		NeedsSyncIn:   r.NeedsSyncIn,
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	if r.Original != nil {
		l, rm := r.Original.Local.String(), r.Original.Remote.String()
		d.OrigLocalOwes, d.OrigRemoteOwes = &l, &rm
	}
	return d
}

func (d sharedDoc) record() (ledger.SharedRecord, error) {
	r := ledger.SharedRecord{
		ID:            d.ID,
		Description:   d.Description,
		Comment:       d.Comment,
		Category:      d.Category,
		Tags:          ledger.TagSet(d.Tags).Clone(),
		LastModified:  timeVal(d.LastModified),
		LastSyncedOut: timeVal(d.LastSyncedOut),
		LastSyncedIn:  timeVal(d.LastSyncedIn),
		NeedsSyncIn:   d.NeedsSyncIn,
	}
	if d.Date != "" {
		day, err := ledger.ParseDay(d.Date)
		if err != nil {
			return r, ledger.Invalid("date", "%q is not yyyy-MM-dd", d.Date)
		}
		r.Date = day
	}
	var err error
	if r.Amount, err = money("amount", d.Amount); err != nil {
		return r, err
	}
	if r.Shares.Local, err = money("localOwes", d.LocalOwes); err != nil {
		return r, err
	}
	if r.Shares.Remote, err = money("remoteOwes", d.RemoteOwes); err != nil {
		return r, err
	}
	if r.Reimbursed, err = money("amountReimbursed", d.Reimbursed); err != nil {
		return r, err
	}
	if d.OrigLocalOwes != nil || d.OrigRemoteOwes != nil {
		var orig ledger.Owed
		if d.OrigLocalOwes != nil {
			if orig.Local, err = money("origLocalOwes", *d.OrigLocalOwes); err != nil {
				return r, err
			}
		}
		if d.OrigRemoteOwes != nil {
			if orig.Remote, err = money("origRemoteOwes", *d.OrigRemoteOwes); err != nil {
				return r, err
			}
		}
		r.Original = &orig
	}
	return r, nil
}

func money(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ledger.Invalid(field, "%q is not a number", s)
	}
	return d, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func timeVal(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func isLedgerError(err error) bool {
	return errors.Is(err, ledger.ErrNotFound) || ledger.IsValidation(err)
}
