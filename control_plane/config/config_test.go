package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("Unexpected default addr: %s", cfg.HTTPAddr)
	}
	if cfg.StoreBackend != "memory" {
		t.Errorf("Unexpected default backend: %s", cfg.StoreBackend)
	}
	if cfg.SchedulerTick != time.Second {
		t.Errorf("Unexpected default tick: %v", cfg.SchedulerTick)
	}
	if !cfg.ReplayPendingSchedules {
		t.Error("Expected schedule replay enabled by default")
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
http_addr: ":9090"
store_backend: redis
redis_addr: "redis.internal:6379"
scheduler_tick: 500ms
auth_disabled: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("Expected :9090, got %s", cfg.HTTPAddr)
	}
	if cfg.StoreBackend != "redis" || cfg.RedisAddr != "redis.internal:6379" {
		t.Errorf("Unexpected store config: %+v", cfg)
	}
	if cfg.SchedulerTick != 500*time.Millisecond {
		t.Errorf("Expected 500ms tick, got %v", cfg.SchedulerTick)
	}
	if !cfg.AuthDisabled {
		t.Error("Expected auth disabled")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("http_addr: \":9090\"\n"), 0o600); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/pa")
	t.Setenv("SCHEDULER_TICK", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPAddr != ":7070" {
		t.Errorf("Expected env to win, got %s", cfg.HTTPAddr)
	}
	if cfg.StoreBackend != "postgres" || cfg.PostgresDSN != "postgres://localhost/pa" {
		t.Errorf("Unexpected store config: %+v", cfg)
	}
	if cfg.SchedulerTick != 2*time.Second {
		t.Errorf("Expected 2s tick, got %v", cfg.SchedulerTick)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	if _, err := Load(); err == nil {
		t.Error("Expected an error for a missing config file")
	}
}

func TestInvalidDurationsFallBack(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SCHEDULER_TICK", "banana")
	t.Setenv("STORE_WRITE_TIMEOUT", "-5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SchedulerTick != time.Second {
		t.Errorf("Expected default tick on bad value, got %v", cfg.SchedulerTick)
	}
	if cfg.StoreWriteTimeout != 3*time.Second {
		t.Errorf("Expected default write timeout on bad value, got %v", cfg.StoreWriteTimeout)
	}
}
