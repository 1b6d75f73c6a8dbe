package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: \"9090\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port 9090, got %q", cfg.Server.Port)
	}
	if cfg.Storage.Backend != BackendMemory || cfg.Catalog.ID != "onboarding" || cfg.Storage.RetryAttempts != 3 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.LogLevel() != slog.LevelInfo {
		t.Fatalf("expected info level")
	}
}

func TestLoadInfersBackend(t *testing.T) {
	cfg, err := Load(writeConfig(t, "postgres:\n  url: postgres://localhost/progress\nredis:\n  addr: localhost:6379\nlog:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Backend != BackendPostgres {
		t.Fatalf("expected postgres backend, got %q", cfg.Storage.Backend)
	}
	if cfg.LogLevel() != slog.LevelDebug {
		t.Fatalf("expected debug level")
	}
}

func TestLoadRejectsIncompleteBackend(t *testing.T) {
	if _, err := Load(writeConfig(t, "storage:\n  backend: sqlite\n")); err == nil {
		t.Fatalf("expected error for sqlite without path")
	}
	if _, err := Load(writeConfig(t, "storage:\n  backend: mongo\n")); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestTTLDuration(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{"", time.Minute},
		{"90s", 90 * time.Second},
		{"bogus", time.Minute},
	}
	for _, tc := range cases {
		if got := TTLDuration(tc.raw, time.Minute); got != tc.want {
			t.Fatalf("TTLDuration(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
