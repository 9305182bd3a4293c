package ingest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgersync/internal/fingerprint"
	"github.com/jask/ledgersync/internal/ledger"
)

// Row is one transaction read from a statement export.
type Row struct {
	Line        int
	Date        time.Time
	Description string
	Memo        string
	Type        string
	Amount      decimal.Decimal
	Source      string
}

// Key returns the row fingerprint.
func (r Row) Key(loc *time.Location) string {
	return fingerprint.Key(r.Date, loc, r.Description, r.Amount)
}

// Record converts the row into a new ledger record booked against account.
func (r Row) Record(account string, added time.Time) ledger.Record {
	full := r.Description
	if r.Memo != "" {
		full = r.Description + " " + r.Memo
	}
	rec := ledger.Record{
		Date:            r.Date,
		Description:     r.Description,
		FullDescription: full,
		Amount:          r.Amount,
		Account:         account,
		AccountNumber:   account,
		Institution:     account,
		DateAdded:       added,
	}
	return rec
}
