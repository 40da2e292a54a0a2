package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Limits.RateLimit != 60 || cfg.Limits.RateWindowSec != 60 {
		t.Errorf("limits = %+v, want 60/60s", cfg.Limits)
	}
	if cfg.Auth.AdminPasswordHash != "" {
		t.Error("admin console should be disabled by default")
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Database.Path != "data/clawnet.db" {
		t.Errorf("db path = %q, want default", cfg.Database.Path)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":9000"

[database]
path = "/tmp/other.db"

[limits]
rate_limit = 5

[instance]
name = "testnet"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr = %q, want :9000", cfg.Server.Addr)
	}
	if cfg.Database.Path != "/tmp/other.db" {
		t.Errorf("path = %q", cfg.Database.Path)
	}
	if cfg.Limits.RateLimit != 5 {
		t.Errorf("rate_limit = %d, want 5", cfg.Limits.RateLimit)
	}
	// Unset keys keep their defaults.
	if cfg.Limits.RateWindowSec != 60 {
		t.Errorf("rate_window_sec = %d, want default 60", cfg.Limits.RateWindowSec)
	}
	if cfg.Instance.Name != "testnet" {
		t.Errorf("instance name = %q, want testnet", cfg.Instance.Name)
	}

	bad := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(bad, []byte("not [valid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("malformed config should error")
	}
}
