package repository

import (
	"context"
	"database/sql"
	"errors"
)

// ImportFileRepo tracks which statement files were already ingested.
type ImportFileRepo struct {
	db *sql.DB
}

func NewImportFileRepo(db *sql.DB) *ImportFileRepo { return &ImportFileRepo{db: db} }

// Status returns the recorded status of name, or "" when it was never seen.
func (r *ImportFileRepo) Status(ctx context.Context, name string) (string, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM import_files WHERE name = ?`, name).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return status, err
}

func (r *ImportFileRepo) Mark(ctx context.Context, f ImportFile) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO import_files(name, status, added, skipped, error, archived, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET status=excluded.status, added=excluded.added,
	 skipped=excluded.skipped, error=excluded.error, archived=excluded.archived,
	 updated_at=excluded.updated_at;
	`, f.Name, f.Status, f.Added, f.Skipped, f.Error, f.Archived, f.UpdatedAt.UTC())
	return err
}

func (r *ImportFileRepo) List(ctx context.Context) ([]ImportFile, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT name, status, added, skipped, error, archived, updated_at
	FROM import_files ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ImportFile
	for rows.Next() {
		var f ImportFile
		if err := rows.Scan(&f.Name, &f.Status, &f.Added, &f.Skipped, &f.Error, &f.Archived, &f.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Reset forgets the status of the named files, or of every file when names
// is empty, so they are read again on the next run.
func (r *ImportFileRepo) Reset(ctx context.Context, names ...string) (int, error) {
	var (
		res sql.Result
		err error
	)
	if len(names) == 0 {
		res, err = r.db.ExecContext(ctx, `DELETE FROM import_files`)
	} else {
		args := make([]any, len(names))
		for i, n := range names {
			args[i] = n
		}
		res, err = r.db.ExecContext(ctx, `DELETE FROM import_files WHERE name IN (`+placeholders(len(names))+`)`, args...)
	}
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
