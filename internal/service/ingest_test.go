package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/ledgersync/internal/archive"
	"github.com/jask/ledgersync/internal/database/repository"
	"github.com/jask/ledgersync/internal/ingest"
	"github.com/jask/ledgersync/internal/ledger"
	"github.com/jask/ledgersync/internal/testdata"
)

const cardHeader = testdata.CardHeader

func cardCSV(lines ...string) string {
	return strings.Join(append([]string{cardHeader}, lines...), "\n") + "\n"
}

var marchRows = []string{
	"03/01/2025,03/02/2025,COFFEE SHOP,Coffee Shop,Restaurants,Purchase,5.00,Jo",
	"03/01/2025,03/02/2025,COFFEE SHOP,Coffee Shop,Restaurants,Purchase,5.00,Jo",
	"03/02/2025,03/03/2025,BAKERY,Bakery,Food,Purchase,3.25,Jo",
}

func TestImportCSVIsIdempotent(t *testing.T) {
	t.Parallel()
	db, ctx := setupServiceTest(t)
	clock := newClock(time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC))
	issues := repository.NewIssueRepo(db)
	svc := &IngestService{
		Ledger:   repository.NewLedgerRepo(db),
		Issues:   issues,
		Location: time.UTC,
		Now:      clock.Now,
	}

	res, err := svc.ImportCSV(ctx, strings.NewReader(cardCSV(marchRows...)), "march.csv")
	require.NoError(t, err)
	require.Equal(t, 3, res.Imported)
	require.Equal(t, 0, res.Skipped)

	recs, err := svc.Ledger.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for _, r := range recs {
		require.Empty(t, r.ID)
		require.NotZero(t, r.Key)
		require.Equal(t, DefaultAccount, r.Account)
		require.Equal(t, clock.Now(), r.DateAdded)
	}
	require.Equal(t, "2025-03-01", recs[0].DayKey(nil))
	require.Equal(t, "-5", recs[0].Amount.String())

	clock.Advance(time.Hour)
	res, err = svc.ImportCSV(ctx, strings.NewReader(cardCSV(marchRows...)), "march-again.csv")
	require.NoError(t, err)
	require.Equal(t, 0, res.Imported)
	require.Equal(t, 3, res.Skipped)

	logged, err := issues.List(ctx, "march-again.csv")
	require.NoError(t, err)
	require.Len(t, logged, 3)
	for _, is := range logged {
		require.Equal(t, ingest.ReasonLimitReached, is.Reason)
	}
	require.Equal(t, "2025-03-01", logged[0].Date)

	// a statement with a third identical purchase adds exactly one row
	three := append([]string{marchRows[0]}, marchRows...)
	res, err = svc.ImportCSV(ctx, strings.NewReader(cardCSV(three...)), "march-three.csv")
	require.NoError(t, err)
	require.Equal(t, 1, res.Imported)
	require.Equal(t, 3, res.Skipped)

	recs, err = svc.Ledger.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 4)
}

func TestImportGeneratedStatements(t *testing.T) {
	t.Parallel()
	db, ctx := setupServiceTest(t)
	svc := &IngestService{Ledger: repository.NewLedgerRepo(db), Location: time.UTC}

	april := testdata.Rows(7, 150, 29, day(2025, 4, 30))
	res, err := svc.ImportCSV(ctx, strings.NewReader(testdata.CardCSV(april)), "april.csv")
	require.NoError(t, err)
	require.Equal(t, 150, res.Imported)

	res, err = svc.ImportCSV(ctx, strings.NewReader(testdata.CardCSV(april)), "april-again.csv")
	require.NoError(t, err)
	require.Equal(t, 0, res.Imported)
	require.Equal(t, 150, res.Skipped)

	// a later export repeating half of April adds only the May rows
	may := testdata.Rows(8, 20, 5, day(2025, 5, 10))
	overlap := append(append([]testdata.Row(nil), april[:75]...), may...)
	res, err = svc.ImportCSV(ctx, strings.NewReader(testdata.CardCSV(overlap)), "may.csv")
	require.NoError(t, err)
	require.Equal(t, 20, res.Imported)
	require.Equal(t, 75, res.Skipped)

	recs, err := svc.Ledger.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 170)
}

func TestImportCSVLogsRowErrors(t *testing.T) {
	t.Parallel()
	db, ctx := setupServiceTest(t)
	issues := repository.NewIssueRepo(db)
	svc := &IngestService{Ledger: repository.NewLedgerRepo(db), Issues: issues}

	data := cardCSV(marchRows[2], "not-a-date,03/03/2025,X,X,X,Purchase,1.00,Jo")
	res, err := svc.ImportCSV(ctx, strings.NewReader(data), "mixed.csv")
	require.NoError(t, err)
	require.Equal(t, 1, res.Imported)
	require.Len(t, res.Errors, 1)

	logged, err := issues.List(ctx, "mixed.csv")
	require.NoError(t, err)
	require.Len(t, logged, 1)
	require.Contains(t, logged[0].Reason, "date")
}

func TestImportFileRejectsUnknownType(t *testing.T) {
	t.Parallel()
	db, ctx := setupServiceTest(t)
	svc := &IngestService{Ledger: repository.NewLedgerRepo(db)}

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	_, err := svc.ImportFile(ctx, path)
	require.True(t, ledger.IsValidation(err))
	require.False(t, IsStatement(path))
	require.True(t, IsStatement("x.QFX"))
}

func TestProcessInbox(t *testing.T) {
	t.Parallel()
	db, ctx := setupServiceTest(t)
	root := t.TempDir()
	inbox := filepath.Join(root, "inbox")
	archiveDir := filepath.Join(root, "archive")
	require.NoError(t, os.MkdirAll(inbox, 0o755))

	writeInbox := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(inbox, name), []byte(body), 0o644))
	}
	writeInbox("march.csv", cardCSV(marchRows...))
	writeInbox("bad.csv", "Date,Description,Amount\n03/01/2025,X,1.00\n")
	writeInbox("notes.txt", "ignored")

	files := repository.NewImportFileRepo(db)
	svc := &IngestService{
		Ledger:  repository.NewLedgerRepo(db),
		Files:   files,
		Issues:  repository.NewIssueRepo(db),
		Archive: archive.NewLocalStore(archiveDir),
		Lock:    &Locker{Path: filepath.Join(root, "ledger.lock"), Timeout: time.Second},
	}

	results, err := svc.ProcessInbox(ctx, inbox, false)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "bad.csv", results[0].File)
	require.NotEmpty(t, results[0].Errors)
	require.Equal(t, "march.csv", results[1].File)
	require.Equal(t, 3, results[1].Imported)
	require.Equal(t, filepath.Join(archiveDir, "march.csv"), results[1].Archived)

	require.FileExists(t, filepath.Join(archiveDir, "march.csv"))
	require.NoFileExists(t, filepath.Join(inbox, "march.csv"))
	require.FileExists(t, filepath.Join(inbox, "bad.csv"))
	require.FileExists(t, filepath.Join(inbox, "notes.txt"))

	status, err := files.Status(ctx, "march.csv")
	require.NoError(t, err)
	require.Equal(t, repository.FileProcessed, status)
	status, err = files.Status(ctx, "bad.csv")
	require.NoError(t, err)
	require.Equal(t, repository.FileFailed, status)

	runLog, err := os.ReadFile(filepath.Join(archiveDir, RunLogName))
	require.NoError(t, err)
	require.Contains(t, string(runLog), "march.csv processed: Added 3 | Skipped 0")
	require.Contains(t, string(runLog), "bad.csv failed")

	// the same statement dropped in again is skipped by status
	writeInbox("march.csv", cardCSV(marchRows...))
	results, err = svc.ProcessInbox(ctx, inbox, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "bad.csv", results[0].File)
	require.FileExists(t, filepath.Join(inbox, "march.csv"))

	// reset reads it again; the fingerprints keep it from adding rows
	results, err = svc.Process(ctx, []string{filepath.Join(inbox, "march.csv")}, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 0, results[0].Imported)
	require.Equal(t, 3, results[0].Skipped)
	require.NotEqual(t, filepath.Join(archiveDir, "march.csv"), results[0].Archived)
	require.FileExists(t, results[0].Archived)

	recs, err := svc.Ledger.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
}
