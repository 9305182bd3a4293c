package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/ledgersync/internal/database/repository"
	"github.com/jask/ledgersync/internal/ledger"
)

func TestEditAmountSplitAndReimbursement(t *testing.T) {
	t.Parallel()
	db, ctx := setupServiceTest(t)
	clock := newClock(time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC))
	local := repository.NewLedgerRepo(db)
	log := repository.NewSyncLogRepo(db)
	svc := &EditService{Ledger: local, Log: log, Now: clock.Now}

	require.NoError(t, local.Append(ctx, []ledger.Record{{ID: "tx-1", Date: day(2025, 3, 10), Description: "HARDWARE", Amount: dec("-100")}}))

	rec, err := svc.SetAmount(ctx, "tx-1", dec("-80"))
	require.NoError(t, err)
	require.Equal(t, "50", rec.Split.Remote.Decimal.String())
	require.Equal(t, "40", rec.Shares.Local.String())
	require.Equal(t, "-40", rec.Shares.Remote.String())
	require.True(t, rec.NeedsSyncOut)
	require.Equal(t, clock.Now(), rec.LastModified)

	rec, err = svc.SetReimbursement(ctx, "tx-1", dec("20"))
	require.NoError(t, err)
	require.Equal(t, "50", rec.Shares.Local.String())
	require.NotNil(t, rec.Original)
	require.Equal(t, "40", rec.Original.Local.String())

	// a new amount recomputes shares and keeps the reimbursement
	rec, err = svc.SetAmount(ctx, "tx-1", dec("-120"))
	require.NoError(t, err)
	require.Equal(t, "70", rec.Shares.Local.String())
	require.Equal(t, "-60", rec.Shares.Remote.String())
	require.Equal(t, "60", rec.Original.Local.String())

	rec, err = svc.SetSplit(ctx, "tx-1", RemoteSide, dec("150"))
	require.NoError(t, err)
	require.Equal(t, "0", rec.Split.Local.Decimal.String())
	require.Equal(t, "100", rec.Split.Remote.Decimal.String())

	rec, err = svc.SetReimbursement(ctx, "tx-1", dec("0"))
	require.NoError(t, err)
	require.Nil(t, rec.Original)
	require.True(t, rec.Reimbursed.IsZero())

	stored, err := local.Get(ctx, "tx-1")
	require.NoError(t, err)
	require.Equal(t, "0", stored.Shares.Local.String())
	require.Equal(t, "-120", stored.Shares.Remote.String())

	entries, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	require.Equal(t, "edit", entries[0].Operation)
	require.Equal(t, "tx-1", entries[0].RecordID)
	require.Equal(t, "reimbursed=0", entries[0].Detail)
}

func TestEditAnnotateAndMark(t *testing.T) {
	t.Parallel()
	db, ctx := setupServiceTest(t)
	clock := newClock(time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC))
	local := repository.NewLedgerRepo(db)
	svc := &EditService{Ledger: local, Now: clock.Now}

	require.NoError(t, local.Append(ctx, []ledger.Record{
		{ID: "a", Date: day(2025, 3, 10), Description: "A", Amount: dec("-1"), Tags: ledger.TagSet{"RJ-Home"}},
		{ID: "b", Date: day(2025, 3, 11), Description: "B", Amount: dec("-2")},
	}))

	_, err := svc.Annotate(ctx, "a", Annotation{})
	require.True(t, ledger.IsValidation(err))

	category := "Home"
	tags := ledger.TagSet{"RJ-Home", "garden"}
	rec, err := svc.Annotate(ctx, "a", Annotation{Category: &category, Tags: &tags})
	require.NoError(t, err)
	require.Equal(t, "Home", rec.Category)
	require.Equal(t, tags, rec.Tags)

	_, err = svc.Annotate(ctx, "missing", Annotation{Category: &category})
	require.ErrorIs(t, err, ledger.ErrNotFound)

	sum, err := svc.MarkForSync(ctx, "b", "missing")
	require.NoError(t, err)
	require.Equal(t, 1, sum.Updated)
	require.Equal(t, 1, sum.Failed)

	clock.Advance(time.Minute)
	n, err := svc.MarkAllForSync(ctx, "garden")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	rec, err = local.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, clock.Now(), rec.LastModified)

	n, err = svc.MarkAllForSync(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestParseSplitSide(t *testing.T) {
	t.Parallel()

	side, err := ParseSplitSide(" Remote ")
	require.NoError(t, err)
	require.Equal(t, RemoteSide, side)
	_, err = ParseSplitSide("both")
	require.True(t, ledger.IsValidation(err))
}

func TestEditZeroDefaultShare(t *testing.T) {
	t.Parallel()
	db, ctx := setupServiceTest(t)
	local := repository.NewLedgerRepo(db)
	svc := &EditService{Ledger: local, DefaultRemoteShare: decimal.NewNullDecimal(decimal.Zero)}

	require.NoError(t, local.Append(ctx, []ledger.Record{{ID: "tx-1", Date: day(2025, 3, 10), Description: "RENT", Amount: dec("-100")}}))

	rec, err := svc.SetAmount(ctx, "tx-1", dec("-90"))
	require.NoError(t, err)
	require.Equal(t, "100", rec.Split.Local.Decimal.String())
	require.Equal(t, "0", rec.Split.Remote.Decimal.String())
	require.Equal(t, "90", rec.Shares.Local.String())
	require.True(t, rec.Shares.Remote.IsZero())
}

func TestEditAssignsIdentifierToIngestedRecord(t *testing.T) {
	t.Parallel()
	db, ctx := setupServiceTest(t)
	local := repository.NewLedgerRepo(db)
	log := repository.NewSyncLogRepo(db)
	svc := &EditService{Ledger: local, Log: log}

	require.NoError(t, local.Append(ctx, []ledger.Record{{Date: day(2025, 3, 10), Description: "FRESH", Amount: dec("-4")}}))
	recs, err := local.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Empty(t, recs[0].ID)
	ref := recs[0].Ref()
	require.Equal(t, "#1", ref)

	comment := "first edit"
	rec, err := svc.Annotate(ctx, ref, Annotation{Comment: &comment})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	require.Equal(t, recs[0].Key, rec.Key)

	stored, err := local.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, "first edit", stored.Comment)

	// a later edit keeps the identifier
	rec2, err := svc.Annotate(ctx, ref, Annotation{Comment: &comment})
	require.NoError(t, err)
	require.Equal(t, rec.ID, rec2.ID)

	entries, err := log.Recent(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, rec.ID, entries[0].RecordID)
}
