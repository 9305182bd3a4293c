package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgersync/internal/ledger"
)

const sharedColumns = `id, date, description, amount, local_owes, remote_owes, orig_local_owes,
 orig_remote_owes, amount_reimbursed, comment, category, tags, last_modified, last_synced_out,
 last_synced_in, needs_sync_in`

// SharedRepo stores the shared ledger in sqlite. It backs the remote side
// when no Firestore project is configured.
type SharedRepo struct {
	db *sql.DB
}

func NewSharedRepo(db *sql.DB) *SharedRepo { return &SharedRepo{db: db} }

// ReadAll returns every shared record ordered by date then insertion. Rows
// that fail to decode are returned separately and do not stop the read.
func (r *SharedRepo) ReadAll(ctx context.Context) ([]ledger.SharedRecord, []ledger.Unreadable, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+sharedColumns+" FROM shared_records ORDER BY date, rowid")
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var (
		out []ledger.SharedRecord
		bad []ledger.Unreadable
	)
	for rows.Next() {
		rec, err := scanShared(rows)
		if err != nil {
			bad = append(bad, ledger.Unreadable{ID: scannedID(rows), Err: err})
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return out, bad, nil
}

// scannedID reads only the leading id column of the current row.
func scannedID(rows *sql.Rows) string {
	cols, err := rows.Columns()
	if err != nil || len(cols) == 0 {
		return ""
	}
	var id sql.NullString
	dest := make([]any, len(cols))
	dest[0] = &id
	for i := 1; i < len(dest); i++ {
		dest[i] = new(any)
	}
	if err := rows.Scan(dest...); err != nil {
		return ""
	}
	return id.String
}

// Get loads one shared record.
func (r *SharedRepo) Get(ctx context.Context, id string) (ledger.SharedRecord, error) {
	return getShared(ctx, r.db, id)
}

func getShared(ctx context.Context, q querier, id string) (ledger.SharedRecord, error) {
	row := q.QueryRowContext(ctx, "SELECT "+sharedColumns+" FROM shared_records WHERE id = ?", id)
	rec, err := scanShared(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.SharedRecord{}, fmt.Errorf("shared record %s: %w", id, ledger.ErrNotFound)
	}
	return rec, err
}

// Append inserts shared records in the given order.
func (r *SharedRepo) Append(ctx context.Context, recs []ledger.SharedRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, rec := range recs {
			if rec.ID == "" {
				return ledger.Invalid("id", "shared record %q has no identifier", rec.Description)
			}
			if err := writeShared(ctx, tx, rec, true); err != nil {
				return fmt.Errorf("insert %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}

// Update applies a partial patch to one shared record.
func (r *SharedRepo) Update(ctx context.Context, id string, p ledger.SharedPatch) error {
	if p.IsEmpty() {
		return nil
	}
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		rec, err := getShared(ctx, tx, id)
		if err != nil {
			return err
		}
		p.Apply(&rec)
		return writeShared(ctx, tx, rec, false)
	})
}

// MarkSyncedIn stamps LastSyncedIn and clears the inbound dirty flag.
func (r *SharedRepo) MarkSyncedIn(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := []any{timeValue(at)}
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := r.db.ExecContext(ctx, `UPDATE shared_records SET last_synced_in = ?, needs_sync_in = 0
	WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	return err
}

func writeShared(ctx context.Context, q querier, rec ledger.SharedRecord, insert bool) error {
	origLocal, origRemote := originalValue(rec.Original)
	args := []any{
		dayValue(rec.Date), rec.Description, rec.Amount, rec.Shares.Local, rec.Shares.Remote,
		origLocal, origRemote, rec.Reimbursed, rec.Comment, rec.Category, rec.Tags.String(),
		timeValue(rec.LastModified), timeValue(rec.LastSyncedOut), timeValue(rec.LastSyncedIn),
		rec.NeedsSyncIn, rec.ID,
	}
	if insert {
		_, err := q.ExecContext(ctx, `INSERT INTO shared_records(
		 date, description, amount, local_owes, remote_owes, orig_local_owes, orig_remote_owes,
		 amount_reimbursed, comment, category, tags, last_modified, last_synced_out,
		 last_synced_in, needs_sync_in, id)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
		return err
	}
	_, err := q.ExecContext(ctx, `UPDATE shared_records SET
	 date = ?, description = ?, amount = ?, local_owes = ?, remote_owes = ?, orig_local_owes = ?,
	 orig_remote_owes = ?, amount_reimbursed = ?, comment = ?, category = ?, tags = ?,
	 last_modified = ?, last_synced_out = ?, last_synced_in = ?, needs_sync_in = ?
	WHERE id = ?`, args...)
	return err
}

func scanShared(s scanner) (ledger.SharedRecord, error) {
	var (
		rec                   ledger.SharedRecord
		date                  sql.NullString
		tags                  string
		origLocal, origRemote decimal.NullDecimal
		mod, out, in          sql.NullTime
	)
	err := s.Scan(&rec.ID, &date, &rec.Description, &rec.Amount, &rec.Shares.Local, &rec.Shares.Remote,
		&origLocal, &origRemote, &rec.Reimbursed, &rec.Comment, &rec.Category, &tags,
		&mod, &out, &in, &rec.NeedsSyncIn)
	if err != nil {
		return ledger.SharedRecord{}, err
	}
	rec.Date = dayFrom(date)
	rec.Tags = ledger.ParseTags(tags)
	rec.Original = originalFrom(origLocal, origRemote)
	rec.LastModified = timeFrom(mod)
	rec.LastSyncedOut = timeFrom(out)
	rec.LastSyncedIn = timeFrom(in)
	return rec, nil
}
