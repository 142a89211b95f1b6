// Package config loads Ledgerly's configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// RemoteConfig points at the CouchDB mirror.
type RemoteConfig struct {
	URL      string `mapstructure:"url"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// SyncConfig holds the periodic sync schedule settings.
type SyncConfig struct {
	IntervalHours    int  `mapstructure:"interval_hours"`
	RequireUnmetered bool `mapstructure:"require_unmetered"`
	RequireCharging  bool `mapstructure:"require_charging"`
}

// GCConfig holds tombstone retention settings.
type GCConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	Secret string `mapstructure:"secret"`
}

// LogConfig holds daemon log output settings.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// StatusConfig holds the status stream listen address.
type StatusConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config is the root configuration.
type Config struct {
	DataDir string       `mapstructure:"data_dir"`
	Remote  RemoteConfig `mapstructure:"remote"`
	Sync    SyncConfig   `mapstructure:"sync"`
	GC      GCConfig     `mapstructure:"gc"`
	Auth    AuthConfig   `mapstructure:"auth"`
	Log     LogConfig    `mapstructure:"log"`
	Status  StatusConfig `mapstructure:"status"`
}

// DBPath returns the SQLite database path under the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "ledgerly.db")
}

// Load reads configuration from the given file path. If path is empty it
// looks for ledgerly.yaml in the user config directory, falling back to
// built-in defaults when no file exists. Environment variables prefixed
// LEDGERLY_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("remote.url", "http://localhost:5984")
	v.SetDefault("remote.database", "ledgerly")
	v.SetDefault("sync.interval_hours", 6)
	v.SetDefault("sync.require_unmetered", true)
	v.SetDefault("sync.require_charging", false)
	v.SetDefault("gc.retention_days", 30)
	v.SetDefault("auth.secret", "ledgerly-local-secret")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("status.addr", "127.0.0.1:8791")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ledgerly")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "ledgerly"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("LEDGERLY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Defaults are a complete configuration; a missing file in the
		// search path is fine, a present-but-broken one is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "ledgerly")
	}
	return ".ledgerly"
}
