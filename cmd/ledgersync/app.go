package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/jask/ledgersync/internal/archive"
	"github.com/jask/ledgersync/internal/config"
	"github.com/jask/ledgersync/internal/database"
	"github.com/jask/ledgersync/internal/database/repository"
	"github.com/jask/ledgersync/internal/firestore"
	"github.com/jask/ledgersync/internal/service"
)

// cliEnv is shared by every command.
type cliEnv struct {
	in      io.Reader
	out     io.Writer
	verbose *bool
}

// app holds the opened stores and the services built on them.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	db     *sql.DB
	shared service.SharedStore
	close  []func() error

	ingest      *service.IngestService
	tagging     *service.TaggingService
	sync        *service.SyncService
	edit        *service.EditService
	dedup       *service.DedupService
	maintenance *service.MaintenanceService
	automation  *service.AutomationRunner
}

// open loads and validates configuration, migrates the local ledger and
// connects the shared store and the archive.
func (e *cliEnv) open(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s:\n%w", config.Path(), err)
	}
	opts, err := cfg.SyncOptions()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	opts.Location = loc

	a := &app{cfg: cfg, logger: newLogger(cfg.Log, cmd.ErrOrStderr())}
	if a.db, err = openSQLite(ctx, cfg.Database.Path); err != nil {
		return nil, err
	}
	a.close = append(a.close, a.db.Close)

	if a.shared, err = a.openShared(ctx); err != nil {
		a.Close()
		return nil, err
	}
	store, err := a.openArchive(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	ledgerRepo := repository.NewLedgerRepo(a.db)
	logRepo := repository.NewSyncLogRepo(a.db)
	locker := &service.Locker{Path: cfg.Lock.Path, Timeout: cfg.Lock.Timeout}
	a.ingest = &service.IngestService{
		Ledger:   ledgerRepo,
		Files:    repository.NewImportFileRepo(a.db),
		Issues:   repository.NewIssueRepo(a.db),
		Archive:  store,
		Lock:     locker,
		Account:  cfg.Ingest.Account,
		Location: loc,
		Logger:   a.logger,
	}
	a.tagging = &service.TaggingService{
		Ledger:   ledgerRepo,
		Rules:    repository.NewRuleRepo(a.db),
		Lock:     locker,
		RuleFile: cfg.Rules.File,
		MaxLog:   cfg.Rules.MaxLog,
		Logger:   a.logger,
	}
	a.sync = &service.SyncService{
		Ledger:  ledgerRepo,
		Shared:  a.shared,
		Log:     logRepo,
		Lock:    locker,
		Options: opts,
		Logger:  a.logger,
	}
	a.edit = &service.EditService{
		Ledger:             ledgerRepo,
		Log:                logRepo,
		Lock:               locker,
		DefaultRemoteShare: decimal.NewNullDecimal(opts.DefaultRemoteShare),
		Logger:             a.logger,
	}
	a.dedup = &service.DedupService{Ledger: ledgerRepo, Log: logRepo, Lock: locker, Logger: a.logger}
	a.maintenance = &service.MaintenanceService{DB: a.db}
	a.automation = &service.AutomationRunner{
		Funcs:   a.stepFuncs(),
		Backoff: cfg.Automation.Backoff,
		Log:     logRepo,
		Logger:  a.logger,
	}
	return a, nil
}

// Close releases everything open in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.close) - 1; i >= 0; i-- {
		errs = append(errs, a.close[i]())
	}
	a.close = nil
	return errors.Join(errs...)
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := database.RunMigrationsWithDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	if err := database.SeedDefaults(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed defaults: %w", err)
	}
	return db, nil
}

func (a *app) openShared(ctx context.Context) (service.SharedStore, error) {
	r := a.cfg.Remote
	if r.Driver == config.DriverFirestore {
		client, err := firestore.NewClient(ctx, r.Project, r.Credentials)
		if err != nil {
			return nil, err
		}
		store := firestore.NewStore(client, r.Collection)
		store.Logger = a.logger
		a.close = append(a.close, store.Close)
		return store, nil
	}
	db, err := openSQLite(ctx, r.Path)
	if err != nil {
		return nil, fmt.Errorf("shared ledger: %w", err)
	}
	a.close = append(a.close, db.Close)
	return repository.NewSharedRepo(db), nil
}

func (a *app) openArchive(ctx context.Context) (archive.Store, error) {
	in := a.cfg.Ingest
	if in.ArchiveBucket == "" {
		return archive.NewLocalStore(in.ArchiveDir), nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	a.close = append(a.close, client.Close)
	store := archive.NewGCSStore(client, in.ArchiveBucket, in.ArchivePrefix)
	store.Logger = a.logger
	return store, nil
}

// steps converts the configured automation steps.
func (a *app) steps() []service.Step {
	steps := make([]service.Step, 0, len(a.cfg.Automation.Steps))
	for _, s := range a.cfg.Automation.Steps {
		steps = append(steps, service.Step{Name: s.Name, Func: s.Func, Order: s.Order, Retries: s.Retries})
	}
	return steps
}

// stepFuncs registers the operations an automation step may name.
func (a *app) stepFuncs() map[string]service.StepFunc {
	return map[string]service.StepFunc{
		"ingest": func(ctx context.Context) (string, error) {
			results, err := a.ingest.ProcessInbox(ctx, a.cfg.Ingest.Inbox, false)
			if err != nil {
				return "", err
			}
			var added, skipped int
			for _, r := range results {
				added += r.Imported
				skipped += r.Skipped
			}
			return fmt.Sprintf("%d files, added %d, skipped %d", len(results), added, skipped), nil
		},
		"tag": func(ctx context.Context) (string, error) {
			sum, err := a.tagging.Apply(ctx)
			return sum.String(), err
		},
		"import": func(ctx context.Context) (string, error) {
			sum, err := a.sync.Import(ctx)
			return sum.String(), err
		},
		"export": func(ctx context.Context) (string, error) {
			sum, err := a.sync.Export(ctx)
			return sum.String(), err
		},
		"sync": func(ctx context.Context) (string, error) {
			sums, err := a.sync.Sync(ctx)
			parts := make([]string, 0, len(sums))
			for _, s := range sums {
				parts = append(parts, s.String())
			}
			return fmt.Sprint(parts), err
		},
		"dedup": func(ctx context.Context) (string, error) {
			res, err := a.dedup.TagDuplicates(ctx, a.cfg.Ingest.Account, service.DefaultDuplicateWindow)
			return fmt.Sprintf("duplicates %d, invalid dates %d", res.Duplicates, res.InvalidDates), err
		},
	}
}
