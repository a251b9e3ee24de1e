package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DSN != "" {
		t.Errorf("expected empty DSN, got %q", cfg.DSN)
	}
	if cfg.StorageKey != "roleforge-storage" || cfg.BackupKey != "roleforge-auto-backup" {
		t.Errorf("unexpected keys: %q %q", cfg.StorageKey, cfg.BackupKey)
	}
	if cfg.Reply.Timeout != 10*time.Second {
		t.Errorf("expected 10s reply timeout, got %v", cfg.Reply.Timeout)
	}
	if cfg.Reply.Workers != 1 {
		t.Errorf("expected 1 worker, got %d", cfg.Reply.Workers)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ROLEFORGE_DSN", "/tmp/roleforge.db")
	t.Setenv("ROLEFORGE_REPLY_TIMEOUT", "250ms")
	t.Setenv("ROLEFORGE_REPLY_WORKERS", "0")
	t.Setenv("ROLEFORGE_LOG_JSON", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DSN != "/tmp/roleforge.db" {
		t.Errorf("DSN override ignored: %q", cfg.DSN)
	}
	if cfg.Reply.Timeout != 250*time.Millisecond {
		t.Errorf("timeout override ignored: %v", cfg.Reply.Timeout)
	}
	if cfg.Reply.Workers != 1 {
		t.Errorf("non-positive workers should clamp to 1, got %d", cfg.Reply.Workers)
	}
	if !cfg.LogJSON {
		t.Error("expected JSON logging")
	}
}

func TestLoadError(t *testing.T) {
	t.Setenv("ROLEFORGE_REPLY_TIMEOUT", "soon")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
