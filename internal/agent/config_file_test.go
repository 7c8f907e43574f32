package agent

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileConfig(t *testing.T) {
	path := writeConfigFile(t, `
db_path = "/var/lib/app/app.db"
api_key = "secret"
poll_interval = "2s"
checkpoint_interval = "1m"
once = true
`)

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig returned error: %v", err)
	}

	cfg := DefaultConfig()
	if err := ApplyFileConfig(&cfg, fc, nil); err != nil {
		t.Fatalf("ApplyFileConfig returned error: %v", err)
	}

	if cfg.DBPath != "/var/lib/app/app.db" {
		t.Fatalf("expected db path applied, got %s", cfg.DBPath)
	}
	if cfg.AuthKey != "secret" {
		t.Fatalf("expected auth key applied, got %s", cfg.AuthKey)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("expected poll interval 2s, got %v", cfg.PollInterval)
	}
	if cfg.CheckpointInterval != time.Minute {
		t.Fatalf("expected checkpoint interval 1m, got %v", cfg.CheckpointInterval)
	}
	if !cfg.Once {
		t.Fatal("expected once applied")
	}
}

func TestApplyFileConfigRespectsFlags(t *testing.T) {
	path := writeConfigFile(t, `
db_path = "/from/file.db"
poll_interval = "9s"
`)

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig returned error: %v", err)
	}

	cfg := DefaultConfig()
	cfg.DBPath = "/from/flag.db"
	changed := map[string]bool{"db": true}
	if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
		t.Fatalf("ApplyFileConfig returned error: %v", err)
	}

	if cfg.DBPath != "/from/flag.db" {
		t.Fatalf("flag value should win, got %s", cfg.DBPath)
	}
	if cfg.PollInterval != 9*time.Second {
		t.Fatalf("unflagged value should apply, got %v", cfg.PollInterval)
	}
}

func TestLoadFileConfigBadDuration(t *testing.T) {
	path := writeConfigFile(t, `poll_interval = "not-a-duration"`)

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig returned error: %v", err)
	}

	cfg := DefaultConfig()
	if err := ApplyFileConfig(&cfg, fc, nil); err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("WALSYNC_DB_PATH", "/from/env.db")
	t.Setenv("WALSYNC_POLL_INTERVAL", "3s")
	t.Setenv("WALSYNC_ONCE", "1")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err != nil {
		t.Fatalf("ApplyEnvConfig returned error: %v", err)
	}

	if cfg.DBPath != "/from/env.db" {
		t.Fatalf("expected db path from env, got %s", cfg.DBPath)
	}
	if cfg.PollInterval != 3*time.Second {
		t.Fatalf("expected poll interval 3s, got %v", cfg.PollInterval)
	}
	if !cfg.Once {
		t.Fatal("expected once from env")
	}
}
