// Package ingest reads statement exports and decides which rows are new.
package ingest

import (
	"time"

	"github.com/jask/ledgersync/internal/fingerprint"
	"github.com/jask/ledgersync/internal/ledger"
)

// ReasonLimitReached is recorded for rows whose fingerprint has already been
// admitted as many times as it appears in the batch.
const ReasonLimitReached = "Skipped: Limit reached"

// Tracker admits batch rows by occurrence count so that genuine same-day
// repeats survive while re-imports of the same file add nothing.
type Tracker struct {
	existing fingerprint.Counts
	batch    fingerprint.Counts
	accepted fingerprint.Counts
}

// NewTracker builds a tracker from the fingerprints already stored and the
// fingerprints of the whole incoming batch.
func NewTracker(existing, batch fingerprint.Counts) *Tracker {
	if existing == nil {
		existing = fingerprint.Counts{}
	}
	if batch == nil {
		batch = fingerprint.Counts{}
	}
	return &Tracker{existing: existing, batch: batch, accepted: fingerprint.Counts{}}
}

// Decision is the outcome for one row.
type Decision struct {
	Accept bool
	Reason string
}

// Decide admits key while accepted-so-far plus existing is below the batch
// count. Accepting increments the accepted count.
func (t *Tracker) Decide(key string) Decision {
	if t.accepted.Get(key)+t.existing.Get(key) >= t.batch.Get(key) {
		return Decision{Reason: ReasonLimitReached}
	}
	t.accepted.Add(key)
	return Decision{Accept: true}
}

// Skip is a row the tracker rejected.
type Skip struct {
	Row    Row
	Reason string
}

// Result splits a batch into accepted and skipped rows.
type Result struct {
	Accepted []Row
	Skipped  []Skip
}

// Plan runs the tracker over rows against the existing ledger. Existing
// records without a valid date do not contribute fingerprints.
func Plan(existing []ledger.Record, rows []Row, loc *time.Location) Result {
	have := fingerprint.Counts{}
	for _, r := range existing {
		if r.HasValidDate() {
			have.Add(fingerprint.Of(r, loc))
		}
	}
	batch := fingerprint.Counts{}
	for _, row := range rows {
		batch.Add(row.Key(loc))
	}

	tr := NewTracker(have, batch)
	var res Result
	for _, row := range rows {
		d := tr.Decide(row.Key(loc))
		if !d.Accept {
			res.Skipped = append(res.Skipped, Skip{Row: row, Reason: d.Reason})
			continue
		}
		res.Accepted = append(res.Accepted, row)
	}
	return res
}
