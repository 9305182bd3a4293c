package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgersync/internal/ledger"
)

const ledgerColumns = `id, date, description, full_description, category, tags, tag_log,
 account, account_number, institution, amount, local_share_pct, remote_share_pct,
 local_owes, remote_owes, orig_local_owes, orig_remote_owes, amount_reimbursed,
 total_paid, comment, date_added, last_modified, last_synced_out, last_synced_in, needs_sync_out`

// ledgerSelect reads the row key ahead of ledgerColumns.
const ledgerSelect = "SELECT row_key, " + ledgerColumns + " FROM ledger_records"

// LedgerRepo stores the local household ledger.
type LedgerRepo struct {
	db *sql.DB
}

func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

// List returns every record ordered by date then insertion.
func (r *LedgerRepo) List(ctx context.Context) ([]ledger.Record, error) {
	return listRecords(ctx, r.db)
}

func listRecords(ctx context.Context, q querier) ([]ledger.Record, error) {
	rows, err := q.QueryContext(ctx, ledgerSelect+" ORDER BY date, row_key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get loads one record by reference: a shared identifier, or "#<key>" as
// Record.Ref gives for records without one. It returns ledger.ErrNotFound
// when nothing matches.
func (r *LedgerRepo) Get(ctx context.Context, ref string) (ledger.Record, error) {
	return getRecord(ctx, r.db, ref)
}

func getRecord(ctx context.Context, q querier, ref string) (ledger.Record, error) {
	var row *sql.Row
	if key, ok := parseKeyRef(ref); ok {
		row = q.QueryRowContext(ctx, ledgerSelect+" WHERE row_key = ?", key)
	} else {
		row = q.QueryRowContext(ctx, ledgerSelect+" WHERE id = ?", ref)
	}
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Record{}, fmt.Errorf("record %s: %w", ref, ledger.ErrNotFound)
	}
	return rec, err
}

func parseKeyRef(ref string) (int64, bool) {
	if !strings.HasPrefix(ref, "#") {
		return 0, false
	}
	key, err := strconv.ParseInt(ref[1:], 10, 64)
	return key, err == nil && key > 0
}

// Append inserts records in one transaction and sets their Key. Identifiers
// are stored as given; a record without one keeps none.
func (r *LedgerRepo) Append(ctx context.Context, recs []ledger.Record) error {
	if len(recs) == 0 {
		return nil
	}
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		for i := range recs {
			if err := insertRecord(ctx, tx, &recs[i]); err != nil {
				return fmt.Errorf("insert %s: %w", recs[i].Description, err)
			}
		}
		return nil
	})
}

// Save overwrites existing records in one transaction. Every record must
// already exist.
func (r *LedgerRepo) Save(ctx context.Context, recs []ledger.Record) error {
	if len(recs) == 0 {
		return nil
	}
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, rec := range recs {
			if err := updateRecord(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Apply saves updates and inserts appends in one transaction, so either
// all local writes of a batch land or none do.
func (r *LedgerRepo) Apply(ctx context.Context, updates, appends []ledger.Record) error {
	if len(updates) == 0 && len(appends) == 0 {
		return nil
	}
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, rec := range updates {
			if err := updateRecord(ctx, tx, rec); err != nil {
				return err
			}
		}
		for i := range appends {
			if err := insertRecord(ctx, tx, &appends[i]); err != nil {
				return fmt.Errorf("insert %s: %w", appends[i].Description, err)
			}
		}
		return nil
	})
}

// Modify reads, changes and writes one record atomically. fn may assign a
// missing identifier but never replace one.
func (r *LedgerRepo) Modify(ctx context.Context, ref string, fn func(*ledger.Record) error) (ledger.Record, error) {
	var out ledger.Record
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		rec, err := getRecord(ctx, tx, ref)
		if err != nil {
			return err
		}
		key, id := rec.Key, rec.ID
		if err := fn(&rec); err != nil {
			return err
		}
		if rec.Key != key || (id != "" && rec.ID != id) {
			return ledger.Invalid("id", "cannot change identifier %s", ref)
		}
		out = rec
		return updateRecord(ctx, tx, rec)
	})
	return out, err
}

// ModifyAll reads every record and writes back those fn reports as changed,
// all inside one transaction. It returns the number of records written.
func (r *LedgerRepo) ModifyAll(ctx context.Context, fn func(*ledger.Record) bool) (int, error) {
	n := 0
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		recs, err := listRecords(ctx, tx)
		if err != nil {
			return err
		}
		for i := range recs {
			if !fn(&recs[i]) {
				continue
			}
			if err := updateRecord(ctx, tx, recs[i]); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// Delete removes records by row key and returns how many went.
func (r *LedgerRepo) Delete(ctx context.Context, keys []int64) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM ledger_records WHERE row_key IN ("+placeholders(len(keys))+")", args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func recordArgs(rec ledger.Record) []any {
	origLocal, origRemote := originalValue(rec.Original)
	return []any{
		nullString(rec.ID), dayValue(rec.Date), rec.Description, rec.FullDescription, rec.Category,
		rec.Tags.String(), joinLog(rec.TagLog), rec.Account, rec.AccountNumber, rec.Institution,
		rec.Amount, rec.Split.Local, rec.Split.Remote, rec.Shares.Local, rec.Shares.Remote,
		origLocal, origRemote, rec.Reimbursed, rec.TotalPaid, rec.Comment,
		timeValue(rec.DateAdded), timeValue(rec.LastModified), timeValue(rec.LastSyncedOut),
		timeValue(rec.LastSyncedIn), rec.NeedsSyncOut,
	}
}

func insertRecord(ctx context.Context, q querier, rec *ledger.Record) error {
	res, err := q.ExecContext(ctx, "INSERT INTO ledger_records("+ledgerColumns+`)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, recordArgs(*rec)...)
	if err != nil {
		return err
	}
	rec.Key, err = res.LastInsertId()
	return err
}

// updateRecord writes rec over the row with its Key, or with its ID when the
// record was never read back from this store.
func updateRecord(ctx context.Context, q querier, rec ledger.Record) error {
	where, match := "row_key = ?", any(rec.Key)
	if rec.Key == 0 {
		if rec.ID == "" {
			return fmt.Errorf("record without key or id: %w", ledger.ErrNotFound)
		}
		where, match = "id = ?", rec.ID
	}
	args := append(recordArgs(rec), match)
	res, err := q.ExecContext(ctx, `UPDATE ledger_records SET
	 id = ?, date = ?, description = ?, full_description = ?, category = ?, tags = ?, tag_log = ?,
	 account = ?, account_number = ?, institution = ?, amount = ?, local_share_pct = ?,
	 remote_share_pct = ?, local_owes = ?, remote_owes = ?, orig_local_owes = ?,
	 orig_remote_owes = ?, amount_reimbursed = ?, total_paid = ?, comment = ?, date_added = ?,
	 last_modified = ?, last_synced_out = ?, last_synced_in = ?, needs_sync_out = ?,
	 version = version + 1
	WHERE `+where, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", rec.Ref(), ledger.ErrNotFound)
	}
	return nil
}

func scanRecord(s scanner) (ledger.Record, error) {
	var (
		rec                   ledger.Record
		id, date              sql.NullString
		tags, tagLog          string
		origLocal, origRemote decimal.NullDecimal
		added, mod, out, in   sql.NullTime
	)
	err := s.Scan(&rec.Key, &id, &date, &rec.Description, &rec.FullDescription, &rec.Category, &tags, &tagLog,
		&rec.Account, &rec.AccountNumber, &rec.Institution, &rec.Amount, &rec.Split.Local, &rec.Split.Remote,
		&rec.Shares.Local, &rec.Shares.Remote, &origLocal, &origRemote, &rec.Reimbursed,
		&rec.TotalPaid, &rec.Comment, &added, &mod, &out, &in, &rec.NeedsSyncOut)
	if err != nil {
		return ledger.Record{}, err
	}
	rec.ID = id.String
	rec.Date = dayFrom(date)
	rec.Tags = ledger.ParseTags(tags)
	rec.TagLog = splitLog(tagLog)
	rec.Original = originalFrom(origLocal, origRemote)
	rec.DateAdded = timeFrom(added)
	rec.LastModified = timeFrom(mod)
	rec.LastSyncedOut = timeFrom(out)
	rec.LastSyncedIn = timeFrom(in)
	return rec, nil
}
