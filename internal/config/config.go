// Package config loads ledgersync settings from a TOML file and LEDGERSYNC_*
// environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/jask/ledgersync/internal/ledger"
	"github.com/jask/ledgersync/internal/reconcile"
)

// EnvPrefix prefixes every environment override, e.g. LEDGERSYNC_DATABASE_PATH.
const EnvPrefix = "LEDGERSYNC"

// Remote drivers.
const (
	DriverSQLite    = "sqlite"
	DriverFirestore = "firestore"
)

// Config holds application configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database" toml:"database"`
	Remote     RemoteConfig     `mapstructure:"remote" toml:"remote"`
	Sync       SyncConfig       `mapstructure:"sync" toml:"sync"`
	Ingest     IngestConfig     `mapstructure:"ingest" toml:"ingest"`
	Rules      RulesConfig      `mapstructure:"rules" toml:"rules"`
	Lock       LockConfig       `mapstructure:"lock" toml:"lock"`
	Automation AutomationConfig `mapstructure:"automation" toml:"automation"`
	Log        LogConfig        `mapstructure:"log" toml:"log"`
}

// DatabaseConfig holds the local ledger sqlite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// RemoteConfig selects where the shared ledger lives. The sqlite driver keeps
// it in a second database file; the firestore driver uses a collection.
type RemoteConfig struct {
	Driver      string `mapstructure:"driver" toml:"driver"`
	Path        string `mapstructure:"path" toml:"path"`
	Project     string `mapstructure:"project" toml:"project"`
	Credentials string `mapstructure:"credentials" toml:"credentials"`
	Collection  string `mapstructure:"collection" toml:"collection"`
}

// SyncConfig mirrors reconcile.Options.
type SyncConfig struct {
	SharedTagPrefix        string `mapstructure:"shared_tag_prefix" toml:"shared_tag_prefix"`
	ImportedTag            string `mapstructure:"imported_tag" toml:"imported_tag"`
	RemoteMarker           string `mapstructure:"remote_marker" toml:"remote_marker"`
	Cutoff                 string `mapstructure:"cutoff" toml:"cutoff"`
	PassThrough            string `mapstructure:"pass_through" toml:"pass_through"`
	DefaultRemoteShare     string `mapstructure:"default_remote_share" toml:"default_remote_share"`
	SkipUnchangedPushed    bool   `mapstructure:"skip_unchanged_pushed" toml:"skip_unchanged_pushed"`
	ExportImportedMetadata bool   `mapstructure:"export_imported_metadata" toml:"export_imported_metadata"`
}

// IngestConfig holds statement import settings. ArchiveBucket, when set,
// archives to Google Cloud Storage instead of ArchiveDir.
type IngestConfig struct {
	Inbox         string `mapstructure:"inbox" toml:"inbox"`
	Account       string `mapstructure:"account" toml:"account"`
	Timezone      string `mapstructure:"timezone" toml:"timezone"`
	ArchiveDir    string `mapstructure:"archive_dir" toml:"archive_dir"`
	ArchiveBucket string `mapstructure:"archive_bucket" toml:"archive_bucket"`
	ArchivePrefix string `mapstructure:"archive_prefix" toml:"archive_prefix"`
}

// RulesConfig points at an optional YAML rule table.
type RulesConfig struct {
	File   string `mapstructure:"file" toml:"file"`
	MaxLog int    `mapstructure:"max_log" toml:"max_log"`
}

// LockConfig holds the ledger lock settings.
type LockConfig struct {
	Path    string        `mapstructure:"path" toml:"path"`
	Timeout time.Duration `mapstructure:"timeout" toml:"timeout"`
}

// AutomationConfig lists the steps of a scheduled run.
type AutomationConfig struct {
	Backoff time.Duration `mapstructure:"backoff" toml:"backoff"`
	Steps   []StepConfig  `mapstructure:"steps" toml:"steps"`
}

// StepConfig is one automation step. Func names a registered step function.
type StepConfig struct {
	Name    string `mapstructure:"name" toml:"name"`
	Func    string `mapstructure:"func" toml:"func"`
	Order   int    `mapstructure:"order" toml:"order"`
	Retries int    `mapstructure:"retries" toml:"retries"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" toml:"level"`
	Format string `mapstructure:"format" toml:"format"`
}

// Path returns the config file location: LEDGERSYNC_CONFIG when set,
// otherwise ~/.config/ledgersync/config.toml.
func Path() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "ledgersync", "config.toml")
}

func dataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "ledgersync")
}

func setDefaults(v *viper.Viper) {
	data := dataDir()
	opts := reconcile.DefaultOptions()
	v.SetDefault("database.path", filepath.Join(data, "ledger.db"))

	v.SetDefault("remote.driver", DriverSQLite)
	v.SetDefault("remote.path", filepath.Join(data, "shared.db"))
	v.SetDefault("remote.project", "")
	v.SetDefault("remote.credentials", "")
	v.SetDefault("remote.collection", "shared-ledger")

	v.SetDefault("sync.shared_tag_prefix", opts.SharedTagPrefix)
	v.SetDefault("sync.imported_tag", opts.ImportedTag)
	v.SetDefault("sync.remote_marker", opts.RemoteMarker)
	v.SetDefault("sync.cutoff", opts.Cutoff.Format(ledger.DayLayout))
	v.SetDefault("sync.pass_through", opts.PassThroughMatch)
	v.SetDefault("sync.default_remote_share", opts.DefaultRemoteShare.String())
	v.SetDefault("sync.skip_unchanged_pushed", opts.SkipUnchangedPushed)
	v.SetDefault("sync.export_imported_metadata", opts.ExportImportedMetadata)

	v.SetDefault("ingest.inbox", filepath.Join(data, "inbox"))
	v.SetDefault("ingest.account", "Apple Card")
	v.SetDefault("ingest.timezone", "UTC")
	v.SetDefault("ingest.archive_dir", filepath.Join(data, "archive"))
	v.SetDefault("ingest.archive_bucket", "")
	v.SetDefault("ingest.archive_prefix", "statements")

	v.SetDefault("rules.file", "")
	v.SetDefault("rules.max_log", 3)

	v.SetDefault("lock.path", filepath.Join(data, "ledger.lock"))
	v.SetDefault("lock.timeout", 30*time.Second)

	v.SetDefault("automation.backoff", 2*time.Second)
	v.SetDefault("automation.steps", []map[string]any{
		{"name": "Ingest statements", "func": "ingest", "order": 1, "retries": 2},
		{"name": "Apply tag rules", "func": "tag", "order": 2, "retries": 2},
		{"name": "Import shared", "func": "import", "order": 3, "retries": 2},
		{"name": "Export shared", "func": "export", "order": 4, "retries": 2},
		{"name": "Tag duplicates", "func": "dedup", "order": 5, "retries": 0},
	})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from file and env. A missing file is not an
// error; a malformed one is.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")
	v.SetConfigFile(Path())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", Path(), err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Save writes cfg as TOML to Path(), creating the directory if needed.
func Save(cfg Config) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate reports every impossible setting as a ValidationError.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, ledger.Invalid("database.path", "is required"))
	}
	switch c.Remote.Driver {
	case DriverSQLite:
		if c.Remote.Path == "" {
			errs = append(errs, ledger.Invalid("remote.path", "is required for the sqlite driver"))
		} else if c.Remote.Path == c.Database.Path {
			errs = append(errs, ledger.Invalid("remote.path", "must differ from database.path"))
		}
	case DriverFirestore:
		if c.Remote.Project == "" {
			errs = append(errs, ledger.Invalid("remote.project", "is required for the firestore driver"))
		}
	default:
		errs = append(errs, ledger.Invalid("remote.driver", "%q is not sqlite or firestore", c.Remote.Driver))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SyncOptions(); err != nil {
		errs = append(errs, err)
	}
	if c.Rules.MaxLog < 0 {
		errs = append(errs, ledger.Invalid("rules.max_log", "must not be negative"))
	}
	if c.Lock.Timeout < 0 {
		errs = append(errs, ledger.Invalid("lock.timeout", "must not be negative"))
	}
	if c.Automation.Backoff < 0 {
		errs = append(errs, ledger.Invalid("automation.backoff", "must not be negative"))
	}
	for i, s := range c.Automation.Steps {
		if s.Func == "" {
			errs = append(errs, ledger.Invalid(fmt.Sprintf("automation.steps[%d].func", i), "is required"))
		}
		if s.Retries < 0 {
			errs = append(errs, ledger.Invalid(fmt.Sprintf("automation.steps[%d].retries", i), "must not be negative"))
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ledger.Invalid("log.level", "%q is not debug, info, warn or error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, ledger.Invalid("log.format", "%q is not text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Location resolves the statement timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Ingest.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Ingest.Timezone)
	if err != nil {
		return nil, ledger.Invalid("ingest.timezone", "%v", err)
	}
	return loc, nil
}

// SyncOptions converts the sync section into reconcile options.
func (c Config) SyncOptions() (reconcile.Options, error) {
	opts := reconcile.DefaultOptions()
	s := c.Sync
	opts.SharedTagPrefix = s.SharedTagPrefix
	opts.ImportedTag = s.ImportedTag
	opts.RemoteMarker = s.RemoteMarker
	opts.PassThroughMatch = s.PassThrough
	opts.SkipUnchangedPushed = s.SkipUnchangedPushed
	opts.ExportImportedMetadata = s.ExportImportedMetadata

	if strings.TrimSpace(s.SharedTagPrefix) == "" {
		return opts, ledger.Invalid("sync.shared_tag_prefix", "is required")
	}
	opts.Cutoff = time.Time{}
	if s.Cutoff != "" {
		cutoff, err := ledger.ParseDay(s.Cutoff)
		if err != nil {
			return opts, ledger.Invalid("sync.cutoff", "%q is not yyyy-mm-dd", s.Cutoff)
		}
		opts.Cutoff = cutoff
	}
	if s.DefaultRemoteShare != "" {
		share, err := decimal.NewFromString(s.DefaultRemoteShare)
		if err != nil {
			return opts, ledger.Invalid("sync.default_remote_share", "%q is not a number", s.DefaultRemoteShare)
		}
		if share.IsNegative() || share.GreaterThan(decimal.NewFromInt(100)) {
			return opts, ledger.Invalid("sync.default_remote_share", "%s is outside [0, 100]", share)
		}
		opts.DefaultRemoteShare = share
	}
	return opts, nil
}
