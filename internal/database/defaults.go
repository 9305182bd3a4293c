package database

import (
	"context"
	"database/sql"

	"github.com/jask/ledgersync/internal/database/repository"
	"github.com/jask/ledgersync/internal/rules"
)

// SeedDefaults loads the starter tag rules into an empty rule table.
// It is idempotent and safe to run on every startup.
func SeedDefaults(ctx context.Context, db *sql.DB) error {
	ruleRepo := repository.NewRuleRepo(db)
	n, err := ruleRepo.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	defaults, err := rules.Defaults()
	if err != nil {
		return err
	}
	return ruleRepo.Replace(ctx, defaults)
}
