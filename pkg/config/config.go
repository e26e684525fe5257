package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unowned-ai/keep/pkg/db"
	"github.com/unowned-ai/keep/pkg/utils"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	// Path is the database file. Empty means the per-OS default location.
	Path        string `yaml:"path"`
	Driver      string `yaml:"driver"` // "sqlite3" (cgo) or "sqlite" (pure Go)
	WAL         bool   `yaml:"wal"`
	Sync        string `yaml:"sync"`
	BusyTimeout string `yaml:"busy_timeout"`
	MaxRetries  int    `yaml:"max_retries"`
}

// ParseBusyTimeout returns the busy timeout as time.Duration.
func (d DatabaseConfig) ParseBusyTimeout() time.Duration {
	t, err := time.ParseDuration(d.BusyTimeout)
	if err != nil || t < 0 {
		return 5 * time.Second
	}
	return t
}

// Options converts the database section to connection options.
func (d DatabaseConfig) Options() db.Options {
	return db.Options{
		Driver:      d.Driver,
		WAL:         d.WAL,
		Sync:        d.Sync,
		BusyTimeout: d.ParseBusyTimeout(),
	}
}

// LogConfig configures diagnostic logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// ParseLevel converts the configured level to slog.Level.
func (l LogConfig) ParseLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// NewLogger builds a logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.ParseLevel()}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:      db.DriverCGO,
			WAL:         true,
			Sync:        "NORMAL",
			BusyTimeout: "5s",
			MaxRetries:  db.DefaultMaxRetries,
		},
		Log: LogConfig{Level: "warn", Format: "text"},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
// With an empty path the default config file is read if it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = utils.GetDefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise only fail when the database is opened.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "", db.DriverCGO, db.DriverPure:
	default:
		return fmt.Errorf("invalid database.driver %q: must be %q or %q", c.Database.Driver, db.DriverCGO, db.DriverPure)
	}
	if c.Database.BusyTimeout != "" {
		if _, err := time.ParseDuration(c.Database.BusyTimeout); err != nil {
			return fmt.Errorf("invalid database.busy_timeout %q: %w", c.Database.BusyTimeout, err)
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q: must be text or json", c.Log.Format)
	}
	return nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KEEP_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("KEEP_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("KEEP_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
