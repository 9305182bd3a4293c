package reconcile

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgersync/internal/ledger"
)

var hundred = decimal.NewFromInt(100)

// RemoteUpdate is a partial update of an existing shared record.
type RemoteUpdate struct {
	ID    string
	Patch ledger.SharedPatch
}

// ExportPlan is the outcome of an export pass. Local holds the exported
// local records with their identifiers assigned and outbound stamps set.
type ExportPlan struct {
	Updates []RemoteUpdate
	Appends []ledger.SharedRecord
	Local   []ledger.Record
	Summary ledger.Summary
}

// Export selects local records to push to the shared ledger.
//
// A record is skipped when it originates from the shared ledger, carries the
// imported tag, predates the cutoff, has no shared tag, or has not been
// modified since the last inbound sync (and, with SkipUnchangedPushed, since
// the last outbound sync). Existing shared records receive only the non-empty
// fields; new ones are appended in date order.
func Export(local []ledger.Record, remote []ledger.SharedRecord, opts Options, now time.Time) ExportPlan {
	plan := ExportPlan{Summary: ledger.Summary{Operation: "export"}}
	remoteIdx := make(map[string]int, len(remote))
	for i, r := range remote {
		if r.ID != "" {
			remoteIdx[r.ID] = i
		}
	}

	for _, src := range local {
		plan.Summary.Processed++
		rec := src.Clone()
		label := rec.ID
		if label == "" {
			label = rec.Description
		}

		imported := opts.isImported(rec)
		metadataOnly := imported && opts.ExportImportedMetadata
		switch {
		case opts.isRemoteOrigin(rec) && !metadataOnly:
			plan.Summary.Skip(SkipRemoteOrigin, "")
			continue
		case imported && !metadataOnly:
			plan.Summary.Skip(SkipImported, "")
			continue
		}

		date := rec.Date
		if date.IsZero() {
			date = ledger.CalendarDay(now, opts.Location)
		}
		if !opts.Cutoff.IsZero() && date.Before(opts.Cutoff) {
			plan.Summary.Skip(SkipBeforeCutoff, "")
			continue
		}
		if !metadataOnly && !opts.isShared(rec) {
			plan.Summary.Skip(SkipNotShared, "")
			continue
		}
		mod := orNow(rec.LastModified, now)
		if !mod.After(rec.LastSyncedIn) {
			plan.Summary.Skip(SkipNoChange, label)
			continue
		}
		if opts.SkipUnchangedPushed && !mod.After(rec.LastSyncedOut) {
			plan.Summary.Skip(SkipAlreadyPushed, label)
			continue
		}

		rec.EnsureID()
		var patch ledger.SharedPatch
		if metadataOnly {
			if _, ok := remoteIdx[rec.ID]; !ok {
				plan.Summary.Skip(SkipNoRemoteRow, rec.ID)
				continue
			}
			patch = metadataPatch(rec, mod)
		} else {
			patch = exportPatch(rec, date, mod, opts)
		}

		if _, ok := remoteIdx[rec.ID]; ok {
			plan.Updates = append(plan.Updates, RemoteUpdate{ID: rec.ID, Patch: patch})
			plan.Summary.Updated++
		} else {
			row := ledger.SharedRecord{ID: rec.ID}
			patch.Apply(&row)
			plan.Appends = append(plan.Appends, row)
			plan.Summary.Appended++
		}

		rec.NeedsSyncOut = false
		rec.LastSyncedOut = now
		plan.Local = append(plan.Local, rec)
	}

	sort.SliceStable(plan.Appends, func(i, j int) bool {
		return plan.Appends[i].Date.Before(plan.Appends[j].Date)
	})
	return plan
}

// exportPatch builds the shared-ledger payload. Signs are inverted because
// the shared ledger records what is owed rather than what was spent.
func exportPatch(rec ledger.Record, date, mod time.Time, opts Options) ledger.SharedPatch {
	day := date
	amount := rec.Amount.Neg()
	var owes decimal.Decimal
	if opts.isPassThrough(rec) {
		owes = rec.Amount.Neg()
	} else {
		pct := rec.Split.RemotePercent(opts.DefaultRemoteShare)
		owes = rec.Amount.Mul(pct).Div(hundred).Round(2).Neg()
	}
	needsIn := true
	p := ledger.SharedPatch{
		Date:         &day,
		Amount:       &amount,
		RemoteOwes:   &owes,
		LastModified: &mod,
		NeedsSyncIn:  &needsIn,
	}
	if rec.Description != "" {
		p.Description = &rec.Description
	}
	if !rec.Reimbursed.IsZero() {
		reimb := rec.Reimbursed.Neg()
		p.Reimbursed = &reimb
	}
	setMetadata(&p, rec)
	return p
}

func metadataPatch(rec ledger.Record, mod time.Time) ledger.SharedPatch {
	needsIn := true
	p := ledger.SharedPatch{LastModified: &mod, NeedsSyncIn: &needsIn}
	setMetadata(&p, rec)
	return p
}

func setMetadata(p *ledger.SharedPatch, rec ledger.Record) {
	if rec.Comment != "" {
		p.Comment = &rec.Comment
	}
	if rec.Category != "" {
		p.Category = &rec.Category
	}
	if len(rec.Tags) > 0 {
		tags := rec.Tags.Clone()
		p.Tags = &tags
	}
}
