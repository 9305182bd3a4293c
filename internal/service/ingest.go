package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jask/ledgersync/internal/archive"
	"github.com/jask/ledgersync/internal/database/repository"
	"github.com/jask/ledgersync/internal/ingest"
	"github.com/jask/ledgersync/internal/ledger"
)

// DefaultAccount is booked on rows from card statement exports.
const DefaultAccount = "Apple Card"

// RunLogName is the archive log that collects one line per processed file.
const RunLogName = "ingest.log"

// IngestService imports statement files into the local ledger.
type IngestService struct {
	Ledger  *repository.LedgerRepo
	Files   *repository.ImportFileRepo
	Issues  *repository.IssueRepo
	Archive archive.Store
	Lock    *Locker

	Account string
	// Location is the statement timezone used to read row dates.
	Location *time.Location
	Logger   *slog.Logger
	Now      func() time.Time
}

type IngestResult struct {
	File     string
	Imported int
	Skipped  int
	Archived string
	Errors   []error
}

// ImportRows appends the rows whose fingerprint occurrence count is not yet
// reached. Skipped rows and row errors are written to the issue log.
func (s *IngestService) ImportRows(ctx context.Context, rows []ingest.Row, rowErrs []error, file string) (IngestResult, error) {
	res := IngestResult{File: file, Errors: rowErrs}
	existing, err := s.Ledger.List(ctx)
	if err != nil {
		return res, fmt.Errorf("read ledger: %w", err)
	}
	now := clockOr(s.Now)()
	plan := ingest.Plan(existing, rows, time.UTC)

	account := s.Account
	if account == "" {
		account = DefaultAccount
	}
	recs := make([]ledger.Record, 0, len(plan.Accepted))
	for _, row := range plan.Accepted {
		recs = append(recs, row.Record(account, now))
	}
	if err := s.Ledger.Append(ctx, recs); err != nil {
		return res, fmt.Errorf("append %s: %w", file, err)
	}
	res.Imported = len(recs)
	res.Skipped = len(plan.Skipped)

	if s.Issues != nil {
		issues := make([]repository.ImportIssue, 0, len(plan.Skipped)+len(rowErrs))
		for _, sk := range plan.Skipped {
			issues = append(issues, repository.ImportIssue{
				Date:        ledger.DayKey(sk.Row.Date, time.UTC),
				Description: sk.Row.Description,
				Amount:      sk.Row.Amount,
				Reason:      sk.Reason,
				File:        file,
				CreatedAt:   now,
			})
		}
		for _, e := range rowErrs {
			issues = append(issues, repository.ImportIssue{Reason: e.Error(), File: file, CreatedAt: now})
		}
		if err := s.Issues.Add(ctx, issues); err != nil {
			loggerOr(s.Logger).Warn("write import issues", "file", file, "err", err)
		}
	}
	return res, nil
}

// ImportCSV reads a card statement CSV.
func (s *IngestService) ImportCSV(ctx context.Context, r io.Reader, file string) (IngestResult, error) {
	rows, rowErrs, err := ingest.ParseCSV(r, file, s.Location)
	if err != nil {
		return IngestResult{File: file}, err
	}
	return s.ImportRows(ctx, rows, rowErrs, file)
}

// ImportOFX reads an OFX or QFX statement.
func (s *IngestService) ImportOFX(ctx context.Context, r io.Reader, file string) (IngestResult, error) {
	rows, err := ingest.ParseOFX(r, file, s.Location)
	if err != nil {
		return IngestResult{File: file}, err
	}
	return s.ImportRows(ctx, rows, nil, file)
}

// ImportFile picks a reader from the file extension.
func (s *IngestService) ImportFile(ctx context.Context, path string) (IngestResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return IngestResult{File: filepath.Base(path)}, err
	}
	defer f.Close()
	name := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return s.ImportCSV(ctx, f, name)
	case ".ofx", ".qfx":
		return s.ImportOFX(ctx, f, name)
	default:
		return IngestResult{File: name}, ledger.Invalid("file", "unsupported statement type %q", filepath.Ext(path))
	}
}

// IsStatement reports whether path has a supported statement extension.
func IsStatement(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".ofx", ".qfx":
		return true
	}
	return false
}

// ProcessInbox imports every statement file in dir that was not already
// processed. With reset, earlier statuses are forgotten first.
func (s *IngestService) ProcessInbox(ctx context.Context, dir string, reset bool) ([]IngestResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsStatement(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return s.Process(ctx, paths, reset)
}

// Process imports the given files under the ledger lock. A failing file is
// marked failed and the remaining files still run. Files already marked
// processed are skipped unless reset is set.
func (s *IngestService) Process(ctx context.Context, paths []string, reset bool) ([]IngestResult, error) {
	log := loggerOr(s.Logger)
	var results []IngestResult
	err := s.Lock.Run(ctx, func(ctx context.Context) error {
		if reset && s.Files != nil {
			names := make([]string, len(paths))
			for i, p := range paths {
				names[i] = filepath.Base(p)
			}
			if _, err := s.Files.Reset(ctx, names...); err != nil {
				return fmt.Errorf("reset file status: %w", err)
			}
		}
		var logLines []string
		for _, path := range paths {
			if err := ctx.Err(); err != nil {
				return err
			}
			name := filepath.Base(path)
			if s.Files != nil {
				status, err := s.Files.Status(ctx, name)
				if err != nil {
					return err
				}
				if status == repository.FileProcessed {
					log.Info("skip processed file", "file", name)
					continue
				}
			}
			res, err := s.ImportFile(ctx, path)
			now := clockOr(s.Now)()
			mark := repository.ImportFile{Name: name, Status: repository.FileProcessed, Added: res.Imported, Skipped: res.Skipped, UpdatedAt: now}
			if err != nil {
				log.Error("import file", "file", name, "err", err)
				res.Errors = append(res.Errors, err)
				mark.Status = repository.FileFailed
				mark.Error = err.Error()
			} else if s.Archive != nil {
				dest, aerr := s.Archive.Archive(ctx, path)
				if aerr != nil {
					aerr = ledger.External("archive", aerr)
					log.Warn("archive file", "file", name, "err", aerr)
					res.Errors = append(res.Errors, aerr)
				}
				res.Archived = dest
				mark.Archived = dest
			}
			if s.Files != nil {
				if err := s.Files.Mark(ctx, mark); err != nil {
					return fmt.Errorf("mark %s: %w", name, err)
				}
			}
			log.Info("imported file", "file", name, "imported", res.Imported, "skipped", res.Skipped, "errors", len(res.Errors))
			logLines = append(logLines, runLogLine(now, res, mark.Status))
			results = append(results, res)
		}
		if s.Archive != nil && len(logLines) > 0 {
			if err := s.Archive.AppendLog(ctx, RunLogName, logLines); err != nil {
				log.Warn("append run log", "err", ledger.External("archive", err))
			}
		}
		return nil
	})
	return results, err
}

func runLogLine(at time.Time, res IngestResult, status string) string {
	line := fmt.Sprintf("%s %s %s: Added %d | Skipped %d", at.Format("2006-01-02 15:04:05"), res.File, status, res.Imported, res.Skipped)
	if len(res.Errors) > 0 {
		line += fmt.Sprintf(" | Errors %d: %v", len(res.Errors), errors.Join(res.Errors...))
	}
	return strings.ReplaceAll(line, "\n", "; ")
}
