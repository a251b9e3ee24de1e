// Package config loads roleforge settings from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds runtime settings shared by the wasm bridge and the CLI.
type Config struct {
	// DSN selects the SQLite database. Empty selects the in-process map store,
	// which honors StorageQuota; ":memory:" is an in-process SQLite database.
	DSN string `env:"ROLEFORGE_DSN"`

	StorageKey string `env:"ROLEFORGE_STORAGE_KEY" envDefault:"roleforge-storage"`
	BackupKey  string `env:"ROLEFORGE_BACKUP_KEY" envDefault:"roleforge-auto-backup"`

	// StorageQuota caps the in-memory adapter in bytes; 0 disables the cap.
	StorageQuota int `env:"ROLEFORGE_STORAGE_QUOTA" envDefault:"0"`

	Reply ReplyConfig `envPrefix:"ROLEFORGE_REPLY_"`

	LogLevel string `env:"ROLEFORGE_LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"ROLEFORGE_LOG_JSON" envDefault:"false"`
}

// ReplyConfig tunes the reply dispatcher.
type ReplyConfig struct {
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
	// Delay simulates typing latency in the mock generator.
	Delay   time.Duration `env:"DELAY" envDefault:"0s"`
	Workers int           `env:"WORKERS" envDefault:"1"`
	Seed    uint64        `env:"SEED" envDefault:"0"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Reply.Workers <= 0 {
		cfg.Reply.Workers = 1
	}
	return cfg, nil
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
