package repository

import (
	"context"
	"database/sql"
	"time"
)

// IssueRepo stores rows skipped during ingestion.
type IssueRepo struct {
	db *sql.DB
}

func NewIssueRepo(db *sql.DB) *IssueRepo { return &IssueRepo{db: db} }

func (r *IssueRepo) Add(ctx context.Context, issues []ImportIssue) error {
	if len(issues) == 0 {
		return nil
	}
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, is := range issues {
			created := is.CreatedAt
			if created.IsZero() {
				created = time.Now()
			}
			if _, err := tx.ExecContext(ctx, `
			INSERT INTO import_issues(date, description, amount, reason, file, created_at)
			VALUES(?, ?, ?, ?, ?, ?)`,
				is.Date, is.Description, is.Amount, is.Reason, is.File, created.UTC()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *IssueRepo) List(ctx context.Context, file string) ([]ImportIssue, error) {
	query := `SELECT id, date, description, amount, reason, file, created_at FROM import_issues`
	var args []any
	if file != "" {
		query += ` WHERE file = ?`
		args = append(args, file)
	}
	query += ` ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ImportIssue
	for rows.Next() {
		var is ImportIssue
		if err := rows.Scan(&is.ID, &is.Date, &is.Description, &is.Amount, &is.Reason, &is.File, &is.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, is)
	}
	return out, rows.Err()
}

// SyncLogRepo stores the sync and edit audit trail.
type SyncLogRepo struct {
	db *sql.DB
}

func NewSyncLogRepo(db *sql.DB) *SyncLogRepo { return &SyncLogRepo{db: db} }

func (r *SyncLogRepo) Add(ctx context.Context, entries ...SyncLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, e := range entries {
			created := e.CreatedAt
			if created.IsZero() {
				created = time.Now()
			}
			if _, err := tx.ExecContext(ctx, `
			INSERT INTO sync_log(operation, record_id, detail, created_at) VALUES(?, ?, ?, ?)`,
				e.Operation, e.RecordID, e.Detail, created.UTC()); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recent returns the newest limit entries, newest first.
func (r *SyncLogRepo) Recent(ctx context.Context, limit int) ([]SyncLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, operation, record_id, detail, created_at FROM sync_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SyncLogEntry
	for rows.Next() {
		var e SyncLogEntry
		if err := rows.Scan(&e.ID, &e.Operation, &e.RecordID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
