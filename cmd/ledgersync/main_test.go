package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/ledgersync/internal/database"
	"github.com/jask/ledgersync/internal/database/repository"
	"github.com/jask/ledgersync/internal/ledger"
)

const statement = `Transaction Date,Clearing Date,Description,Merchant,Category,Type,Amount (USD),Purchased By
03/10/2025,03/11/2025,GROCER,Grocer,Grocery,Purchase,42.00,Jo
03/12/2025,03/13/2025,BOOKSHOP,Books,Shopping,Purchase,18.50,Jo
`

type cliFixture struct {
	dir    string
	inbox  string
	dbPath string
	shared string
}

func newCLIFixture(t *testing.T) cliFixture {
	t.Helper()
	dir := t.TempDir()
	f := cliFixture{
		dir:    dir,
		inbox:  filepath.Join(dir, "inbox"),
		dbPath: filepath.Join(dir, "ledger.db"),
		shared: filepath.Join(dir, "shared.db"),
	}
	cfg := fmt.Sprintf(`[database]
path = %q

[remote]
driver = "sqlite"
path = %q

[ingest]
inbox = %q
archive_dir = %q

[lock]
path = %q
timeout = "5s"

[log]
level = "error"
`, f.dbPath, f.shared, f.inbox, filepath.Join(dir, "archive"), filepath.Join(dir, "ledger.lock"))
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	require.NoError(t, os.MkdirAll(f.inbox, 0o755))
	t.Setenv("HOME", dir)
	t.Setenv("LEDGERSYNC_CONFIG", cfgPath)
	return f
}

func execute(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(strings.NewReader(input), &out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func (f cliFixture) records(t *testing.T) []ledger.Record {
	t.Helper()
	db, err := database.Open(f.dbPath)
	require.NoError(t, err)
	defer db.Close()
	recs, err := repository.NewLedgerRepo(db).List(context.Background())
	require.NoError(t, err)
	return recs
}

func (f cliFixture) sharedRecords(t *testing.T) []ledger.SharedRecord {
	t.Helper()
	db, err := database.Open(f.shared)
	require.NoError(t, err)
	defer db.Close()
	recs, bad, err := repository.NewSharedRepo(db).ReadAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, bad)
	return recs
}

func TestCLIIngestTagAndExport(t *testing.T) {
	f := newCLIFixture(t)

	out, err := execute(t, "", "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "Migrated")

	require.NoError(t, os.WriteFile(filepath.Join(f.inbox, "march.csv"), []byte(statement), 0o644))
	out, err = execute(t, "", "ingest")
	require.NoError(t, err)
	require.Contains(t, out, "march.csv")

	recs := f.records(t)
	require.Len(t, recs, 2)
	grocer := recs[0]
	require.Equal(t, "GROCER", grocer.Description)
	require.Empty(t, grocer.ID)

	_, err = execute(t, "", "annotate", grocer.Ref(), "--tags", "RJ-Food", "--comment", "weekly shop")
	require.NoError(t, err)
	grocer = f.records(t)[0]
	require.NotEmpty(t, grocer.ID)
	require.Empty(t, f.records(t)[1].ID)

	_, err = execute(t, "", "export")
	require.NoError(t, err)
	shared := f.sharedRecords(t)
	require.Len(t, shared, 1)
	require.Equal(t, grocer.ID, shared[0].ID)

	out, err = execute(t, "", "conflicts")
	require.NoError(t, err)
	require.Contains(t, out, "No conflicts.")

	out, err = execute(t, "", "split", grocer.ID, "remote", "70")
	require.NoError(t, err)
	require.Contains(t, out, "30/70")
}

func TestCLIDedupAndReset(t *testing.T) {
	f := newCLIFixture(t)

	out, err := execute(t, "", "ingest", writeStatement(t, f.dir, "a.csv"))
	require.NoError(t, err)
	require.Contains(t, out, "a.csv")

	out, err = execute(t, "", "dedup", "scan")
	require.NoError(t, err)
	require.Contains(t, out, "Tagged 0 duplicates")

	out, err = execute(t, "", "dedup", "delete")
	require.NoError(t, err)
	require.Contains(t, out, "No tagged duplicates.")

	out, err = execute(t, "", "reset", "--yes")
	require.NoError(t, err)
	require.Contains(t, out, "Ledger reset.")
	require.Empty(t, f.records(t))
}

func TestCLIRejectsBadInput(t *testing.T) {
	newCLIFixture(t)

	_, err := execute(t, "", "amount", "tx-1", "lots")
	require.ErrorContains(t, err, "not a number")

	_, err = execute(t, "", "split", "tx-1", "sideways", "50")
	require.Error(t, err)
	require.True(t, ledger.IsValidation(err))

	_, err = execute(t, "", "mark")
	require.ErrorContains(t, err, "--all")
}

func TestCLIInvalidConfig(t *testing.T) {
	f := newCLIFixture(t)
	t.Setenv("LEDGERSYNC_REMOTE_PATH", f.dbPath)

	_, err := execute(t, "", "migrate")
	require.ErrorContains(t, err, "remote.path")
}

func writeStatement(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(statement), 0o644))
	return p
}
