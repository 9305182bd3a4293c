package reconcile

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgersync/internal/ledger"
)

// ImportPlan is the outcome of an import pass. Synced lists the shared record
// identifiers to stamp once the local writes succeed. Backfill carries
// shared records that had no modification time.
type ImportPlan struct {
	Updates  []ledger.Record
	Appends  []ledger.Record
	Synced   []string
	Backfill []RemoteUpdate
	Summary  ledger.Summary
}

// Import selects shared records to pull into the local ledger.
//
// Only records modified after both their last inbound and outbound sync are
// considered, and only those where the local party owes and the remote party
// owes nothing. Ownership percentages are recovered from the pre-reimbursement
// snapshot when a reimbursement is present.
func Import(remote []ledger.SharedRecord, local []ledger.Record, opts Options, now time.Time) ImportPlan {
	plan := ImportPlan{Summary: ledger.Summary{Operation: "import"}}
	localIdx := ledger.Index(local)

	for _, r := range remote {
		plan.Summary.Processed++
		if r.ID == "" {
			plan.Summary.Skip(SkipMissingID, r.Description)
			continue
		}
		mod := r.LastModified
		if mod.IsZero() {
			mod = now
			m := mod
			plan.Backfill = append(plan.Backfill, RemoteUpdate{ID: r.ID, Patch: ledger.SharedPatch{LastModified: &m}})
		}
		if !(mod.After(r.LastSyncedIn) && mod.After(r.LastSyncedOut)) {
			plan.Summary.Skip(SkipNoChange, "")
			continue
		}
		localOwes, remoteOwes := r.Shares.Local, r.Shares.Remote
		if !(localOwes.IsPositive() && remoteOwes.IsZero()) {
			plan.Summary.Skip(SkipWrongDirection, r.ID)
			continue
		}

		var rec ledger.Record
		i, exists := localIdx[r.ID]
		if exists {
			rec = local[i].Clone()
		} else {
			rec = ledger.Record{ID: r.ID, DateAdded: now}
		}
		applyImport(&rec, r, mod, opts, now)

		if exists {
			plan.Updates = append(plan.Updates, rec)
			plan.Summary.Updated++
		} else {
			plan.Appends = append(plan.Appends, rec)
			plan.Summary.Appended++
		}
		plan.Synced = append(plan.Synced, r.ID)
	}
	return plan
}

func applyImport(rec *ledger.Record, r ledger.SharedRecord, mod time.Time, opts Options, now time.Time) {
	localSlice, remoteSlice := r.Shares.Local, r.Shares.Remote
	if !r.Reimbursed.IsZero() && r.Original != nil {
		localSlice, remoteSlice = r.Original.Local, r.Original.Remote
	}
	total := r.Amount
	if total.IsZero() {
		total = localSlice.Add(remoteSlice).Mul(decimal.NewFromInt(2))
	}
	pctLocal := decimal.Zero
	if !total.IsZero() {
		pctLocal = localSlice.Mul(hundred).Div(total.Abs()).Round(4)
	}

	rec.Date = r.Date
	rec.Description = r.Description
	rec.FullDescription = r.Description
	rec.Amount = r.Shares.Local.Neg()
	rec.TotalPaid = total.Neg()
	rec.Account = opts.RemoteMarker
	rec.AccountNumber = opts.RemoteMarker
	rec.Institution = opts.RemoteMarker
	rec.Split = ledger.NewSplit(pctLocal)
	rec.Settlement = ledger.Settlement{Shares: r.Shares, Reimbursed: r.Reimbursed}
	if r.Original != nil {
		orig := *r.Original
		rec.Original = &orig
	}
	rec.Comment = r.Comment
	if opts.ImportedTag != "" && !opts.isImported(*rec) {
		rec.Tags, _ = rec.Tags.Add(opts.ImportedTag)
	}
	rec.LastModified = mod
	rec.NeedsSyncOut = true
	rec.LastSyncedIn = now
}
