// Package fingerprint derives the identity key used to recognize the same
// transaction across imports.
package fingerprint

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgersync/internal/ledger"
)

// Key returns "yyyy-MM-dd|description|amount". The date is reduced to a
// calendar day in loc (UTC when nil). Description and amount are taken
// verbatim; the amount uses its canonical decimal form so -5.00 and -5 agree.
func Key(date time.Time, loc *time.Location, description string, amount decimal.Decimal) string {
	return ledger.DayKey(date, loc) + "|" + description + "|" + amount.String()
}

// Of returns the key of a ledger record.
func Of(r ledger.Record, loc *time.Location) string {
	return Key(r.Date, loc, r.Description, r.Amount)
}

// Counts is a multiset of fingerprint keys.
type Counts map[string]int

// Add increments the count of key.
func (c Counts) Add(key string) { c[key]++ }

// Get returns the count of key, zero when absent.
func (c Counts) Get(key string) int { return c[key] }

// Tally counts the fingerprints of records.
func Tally(records []ledger.Record, loc *time.Location) Counts {
	out := make(Counts, len(records))
	for _, r := range records {
		out.Add(Of(r, loc))
	}
	return out
}
