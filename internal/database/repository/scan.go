package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgersync/internal/ledger"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func dayValue(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(ledger.DayLayout), Valid: true}
}

func dayFrom(ns sql.NullString) time.Time {
	if !ns.Valid || ns.String == "" {
		return time.Time{}
	}
	t, err := ledger.ParseDay(ns.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func timeValue(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timeFrom(nt sql.NullTime) time.Time {
	if !nt.Valid {
		return time.Time{}
	}
	return nt.Time.UTC()
}

func originalValue(o *ledger.Owed) (decimal.NullDecimal, decimal.NullDecimal) {
	if o == nil {
		return decimal.NullDecimal{}, decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(o.Local), decimal.NewNullDecimal(o.Remote)
}

func originalFrom(local, remote decimal.NullDecimal) *ledger.Owed {
	if !local.Valid && !remote.Valid {
		return nil
	}
	return &ledger.Owed{Local: local.Decimal, Remote: remote.Decimal}
}

func joinLog(lines []string) string { return strings.Join(lines, "\n") }

func splitLog(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
