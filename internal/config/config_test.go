package config_test

import (
	"testing"
	"time"

	"github.com/craftboard/platform/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	// Unset any env vars that might be set.
	t.Setenv("PLATFORM_ADDR", "")
	t.Setenv("PLATFORM_DB_PATH", "")
	t.Setenv("PLATFORM_AUTH_TOKEN", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want %q", cfg.Addr, ":8080")
	}
	if cfg.DBPath != "platform.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "platform.db")
	}
	if cfg.DBBusyTimeout != 5*time.Second {
		t.Errorf("DBBusyTimeout = %v, want 5s", cfg.DBBusyTimeout)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout = %v, want 15s", cfg.RequestTimeout)
	}
	if cfg.BulkTimeout != 60*time.Second {
		t.Errorf("BulkTimeout = %v, want 60s", cfg.BulkTimeout)
	}
	if cfg.AuditRetentionMonths != 24 {
		t.Errorf("AuditRetentionMonths = %d, want 24", cfg.AuditRetentionMonths)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PLATFORM_ADDR", ":9090")
	t.Setenv("PLATFORM_DB_PATH", "/tmp/test.db")
	t.Setenv("PLATFORM_AUTH_TOKEN", "secret-token")
	t.Setenv("PLATFORM_SWEEP_INTERVAL", "30s")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want %q", cfg.Addr, ":9090")
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/test.db")
	}
	if cfg.AuthToken != "secret-token" {
		t.Errorf("AuthToken = %q, want %q", cfg.AuthToken, "secret-token")
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("SweepInterval = %v, want 30s", cfg.SweepInterval)
	}
}
