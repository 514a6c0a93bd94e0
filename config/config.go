/*
Package config loads server configuration from environment variables with
an optional app.env file for local development.

PRECEDENCE:
  Environment variables win over the file; built-in defaults fill the rest.
  A missing file is fine - a malformed one is an error.
*/
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all server settings.
type Config struct {
	Port        int    `mapstructure:"PORT"`
	DBPath      string `mapstructure:"DB_PATH"`
	CatalogPath string `mapstructure:"CATALOG_PATH"` // empty = built-in catalog

	// RemoteBaseURL points at the completion API. Empty = local-only mode:
	// no remote writes, no reconciliation, no backups.
	RemoteBaseURL string `mapstructure:"REMOTE_BASE_URL"`

	RemoteRetries int           `mapstructure:"REMOTE_RETRIES"`
	RemoteBackoff time.Duration `mapstructure:"REMOTE_BACKOFF"`

	// BackupRetention bounds snapshots kept per learner.
	BackupRetention int `mapstructure:"BACKUP_RETENTION"`
}

// Load reads configuration from path/app.env and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("DB_PATH", "progress.db")
	v.SetDefault("CATALOG_PATH", "")
	v.SetDefault("REMOTE_BASE_URL", "")
	v.SetDefault("REMOTE_RETRIES", 3)
	v.SetDefault("REMOTE_BACKOFF", 250*time.Millisecond)
	v.SetDefault("BACKUP_RETENTION", 5)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
		// No file is fine; env and defaults carry it.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
