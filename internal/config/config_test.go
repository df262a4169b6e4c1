package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Server.Listen != "localhost:8787" {
		t.Fatalf("unexpected listen %q", cfg.Server.Listen)
	}
	if cfg.Fetch.Timeout != 30*time.Second || cfg.Fetch.MaxBytes != 5<<20 || cfg.Fetch.MaxRedirects != 3 {
		t.Fatalf("unexpected fetch defaults: %+v", cfg.Fetch)
	}
	if cfg.RateLimit.FetchPerMinute != 30 || cfg.RateLimit.FetchPerHour != 600 {
		t.Fatalf("unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.Database != "~/.yasp/yasp.db" {
		t.Fatalf("unexpected database %q", cfg.Storage.Database)
	}
}

func TestLoadFromBytes(t *testing.T) {
	t.Setenv("YASP_TEST_DB", "/var/lib/yasp/specs.db")
	data := []byte(`
server:
  listen: "0.0.0.0:9000"
fetch:
  timeout: 5s
  blockedHostKeywords: [metadata, "169.254.169.254"]
storage:
  database: "${YASP_TEST_DB}"
rateLimit:
  fetchPerMinute: 0
logging:
  format: json
`)
	cfg, err := LoadFromBytes(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Listen != "0.0.0.0:9000" || cfg.Server.WriteTimeout != 60*time.Second {
		t.Fatalf("unexpected server section: %+v", cfg.Server)
	}
	if cfg.Fetch.Timeout != 5*time.Second || len(cfg.Fetch.BlockedHostKeywords) != 2 {
		t.Fatalf("unexpected fetch section: %+v", cfg.Fetch)
	}
	if cfg.Storage.Database != "/var/lib/yasp/specs.db" {
		t.Fatalf("env not expanded: %q", cfg.Storage.Database)
	}
	if cfg.RateLimit.FetchPerMinute != 0 || cfg.RateLimit.FetchPerHour != 600 {
		t.Fatalf("unexpected rate limit: %+v", cfg.RateLimit)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging: %+v", cfg.Logging)
	}
}

func TestLoadFromBytesEmptyBlockListDisablesBlocking(t *testing.T) {
	cfg, err := LoadFromBytes([]byte("fetch:\n  blockedHostKeywords: []\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Fetch.BlockedHostKeywords) != 0 {
		t.Fatalf("expected explicit empty list to stay empty, got %v", cfg.Fetch.BlockedHostKeywords)
	}
}

func TestLoadFromBytesMissingEnv(t *testing.T) {
	_, err := LoadFromBytes([]byte(`storage: {database: "${YASP_SURELY_UNSET_VAR}"}`))
	if err == nil || !strings.Contains(err.Error(), "YASP_SURELY_UNSET_VAR") {
		t.Fatalf("expected missing env error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"file scheme", func(c *Config) { c.Fetch.AllowedSchemes = []string{"https", "file"} }, "unsupported scheme"},
		{"empty keyword", func(c *Config) { c.Fetch.BlockedHostKeywords = []string{" "} }, "keyword cannot be empty"},
		{"negative redirects", func(c *Config) { c.Fetch.MaxRedirects = -1 }, "maxRedirects"},
		{"negative rate", func(c *Config) { c.RateLimit.FetchPerHour = -5 }, "rateLimit"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Fatalf("expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestGenerateDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := GenerateDefault(path); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load generated config: %v", err)
	}
	def := Default()
	if cfg.Server != def.Server || cfg.Storage != def.Storage || cfg.RateLimit != def.RateLimit || cfg.Logging != def.Logging {
		t.Fatalf("generated config differs from defaults: %+v", cfg)
	}
	if cfg.Fetch.Timeout != def.Fetch.Timeout || strings.Join(cfg.Fetch.BlockedHostKeywords, ",") != "metadata,instance-data" {
		t.Fatalf("unexpected fetch section: %+v", cfg.Fetch)
	}
}
