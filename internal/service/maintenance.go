package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jask/ledgersync/internal/database"
)

// MaintenanceService houses destructive operations.
type MaintenanceService struct {
	DB *sql.DB
}

// Reset wipes ledger data, keeping the schema and the rule table so the
// tool can keep running.
func (s *MaintenanceService) Reset(ctx context.Context, includeShared bool) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	tables := []string{
		"sync_log",
		"import_issues",
		"import_files",
		"ledger_records",
	}
	if includeShared {
		tables = append(tables, "shared_records")
	}
	if err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, t := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("reset table %s: %w", t, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	return nil
}
