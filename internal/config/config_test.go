package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/ledgersync/internal/ledger"
)

func useConfigFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "config.toml")
	if body != "" {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	t.Setenv("LEDGERSYNC_CONFIG", path)
	return path
}

func TestLoadDefaults(t *testing.T) {
	useConfigFile(t, "")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, DriverSQLite, cfg.Remote.Driver)
	require.Equal(t, 30*time.Second, cfg.Lock.Timeout)
	require.Len(t, cfg.Automation.Steps, 5)
	require.Equal(t, "ingest", cfg.Automation.Steps[0].Func)

	opts, err := cfg.SyncOptions()
	require.NoError(t, err)
	require.Equal(t, "RJ", opts.SharedTagPrefix)
	require.Equal(t, "2025-03-01", opts.Cutoff.Format(ledger.DayLayout))
	require.True(t, opts.SkipUnchangedPushed)
	require.Equal(t, "50", opts.DefaultRemoteShare.String())
}

func TestLoadFileAndEnv(t *testing.T) {
	useConfigFile(t, `
[remote]
driver = "firestore"
project = "household"

[sync]
cutoff = "2025-01-01"
default_remote_share = "40"
skip_unchanged_pushed = false

[lock]
timeout = "5s"

[[automation.steps]]
name = "Sync"
func = "sync"
order = 1
retries = 3
`)
	t.Setenv("LEDGERSYNC_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, DriverFirestore, cfg.Remote.Driver)
	require.Equal(t, "household", cfg.Remote.Project)
	require.Equal(t, 5*time.Second, cfg.Lock.Timeout)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, []StepConfig{{Name: "Sync", Func: "sync", Order: 1, Retries: 3}}, cfg.Automation.Steps)

	opts, err := cfg.SyncOptions()
	require.NoError(t, err)
	require.False(t, opts.SkipUnchangedPushed)
	require.Equal(t, "40", opts.DefaultRemoteShare.String())
	require.Equal(t, 2025, opts.Cutoff.Year())
	require.Equal(t, time.January, opts.Cutoff.Month())
}

func TestLoadMalformedFile(t *testing.T) {
	useConfigFile(t, "[remote\ndriver =")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	useConfigFile(t, "")
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Remote.Driver = "ftp"
	cfg.Ingest.Timezone = "Mars/Olympus"
	cfg.Sync.DefaultRemoteShare = "120"
	cfg.Log.Format = "xml"
	cfg.Automation.Steps = append(cfg.Automation.Steps, StepConfig{Name: "broken"})

	err = cfg.Validate()
	require.Error(t, err)
	require.True(t, ledger.IsValidation(err))
	for _, field := range []string{"remote.driver", "ingest.timezone", "sync.default_remote_share", "log.format", "automation.steps[5].func"} {
		require.Contains(t, err.Error(), field)
	}

	cfg, err = Load()
	require.NoError(t, err)
	cfg.Remote.Path = cfg.Database.Path
	require.ErrorContains(t, cfg.Validate(), "must differ")
}

func TestSaveRoundTrip(t *testing.T) {
	path := useConfigFile(t, "")

	cfg, err := Load()
	require.NoError(t, err)
	cfg.Ingest.Account = "Chase"
	cfg.Rules.MaxLog = 5
	cfg.Lock.Timeout = 10 * time.Second
	require.NoError(t, Save(cfg))
	require.FileExists(t, path)

	again, err := Load()
	require.NoError(t, err)
	require.Equal(t, "Chase", again.Ingest.Account)
	require.Equal(t, 5, again.Rules.MaxLog)
	require.Equal(t, 10*time.Second, again.Lock.Timeout)
	require.Equal(t, cfg.Automation.Steps, again.Automation.Steps)
}
