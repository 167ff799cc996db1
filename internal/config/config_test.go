package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CAPNOTE_CONFIG", "API_ADDR", "CAPNOTE_STORE", "DATABASE_URL", "CAPNOTE_SQLITE_PATH",
		"CAPNOTE_ACCESS_TTL_SECONDS", "REDIS_URL", "CAPNOTE_DRAFT_TTL_SECONDS",
		"CAPNOTE_AI_MODEL", "CAPNOTE_AI_TIMEOUT_SECONDS", "CAPNOTE_BLOB_USE_SSL", "CAPNOTE_BLOB_BUCKET",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8787" || cfg.StoreDriver != DriverPostgres {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.AccessTTL != time.Hour || cfg.DraftTTL != 24*time.Hour || cfg.AITimeout != 2*time.Minute {
		t.Errorf("unexpected durations %v %v %v", cfg.AccessTTL, cfg.DraftTTL, cfg.AITimeout)
	}
	if cfg.RedisURL != "" || cfg.BlobBucket != "capnote-exports" || cfg.PandocPath != "pandoc" {
		t.Errorf("unexpected optional settings %+v", cfg)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "capnote.toml")
	content := `
addr = ":9000"
store_driver = "sqlite"
sqlite_path = "/tmp/notes.db"

[drafts]
redis_url = "redis://cache:6379/1"
ttl_seconds = 60

[ai]
model = "small"
timeout_seconds = 5

[blob]
use_ssl = true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CAPNOTE_CONFIG", path)
	t.Setenv("CAPNOTE_AI_MODEL", "large")
	t.Setenv("CAPNOTE_BLOB_USE_SSL", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.StoreDriver != DriverSQLite || cfg.SQLitePath != "/tmp/notes.db" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.RedisURL != "redis://cache:6379/1" || cfg.DraftTTL != time.Minute || cfg.AITimeout != 5*time.Second {
		t.Errorf("nested file values not applied: %+v", cfg)
	}
	if cfg.AIModel != "large" {
		t.Errorf("env should override file, got model %q", cfg.AIModel)
	}
	if cfg.BlobUseSSL {
		t.Errorf("env should override file bool")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("CAPNOTE_STORE", "mongo")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("addr = "), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CAPNOTE_CONFIG", path)
	if _, err := Load(); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestGetenvIntFallsBack(t *testing.T) {
	t.Setenv("CAPNOTE_TEST_INT", "nope")
	if got := getenvInt("CAPNOTE_TEST_INT", 7); got != 7 {
		t.Errorf("expected fallback, got %d", got)
	}
}
