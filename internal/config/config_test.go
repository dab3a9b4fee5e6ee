package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Hub.URL != "https://hub.liquibase.com" {
		t.Fatalf("Hub.URL = %q, want %q", cfg.Hub.URL, "https://hub.liquibase.com")
	}
	if got := cfg.TimeoutDuration(); got != 30*time.Second {
		t.Fatalf("TimeoutDuration() = %v, want 30s", got)
	}
	if cfg.Hub.Mode != ModeAll {
		t.Fatalf("Hub.Mode = %q, want %q", cfg.Hub.Mode, ModeAll)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Log.Format != "json" {
		t.Fatalf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}
	if cfg.Telemetry.MetricsAddr != "" {
		t.Fatalf("Telemetry.MetricsAddr = %q, want empty", cfg.Telemetry.MetricsAddr)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("HUBSYNC_HUB_URL", "http://localhost:8888")
	t.Setenv("HUBSYNC_HUB_API_KEY", "  env-key  ")
	t.Setenv("HUBSYNC_HUB_TIMEOUT", "5s")
	t.Setenv("HUBSYNC_HUB_MODE", "META")
	t.Setenv("HUBSYNC_LOG_LEVEL", "debug")
	t.Setenv("HUBSYNC_LOG_FORMAT", "text")
	t.Setenv("HUBSYNC_METRICS_ADDR", "127.0.0.1:9464")
	t.Setenv("HUBSYNC_OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	t.Setenv("HUBSYNC_OTEL_SERVICE_NAME", "hubsync-ci")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Hub.URL != "http://localhost:8888" {
		t.Fatalf("Hub.URL = %q, want %q", cfg.Hub.URL, "http://localhost:8888")
	}
	if cfg.Hub.APIKey != "env-key" {
		t.Fatalf("Hub.APIKey = %q, want %q", cfg.Hub.APIKey, "env-key")
	}
	if got := cfg.TimeoutDuration(); got != 5*time.Second {
		t.Fatalf("TimeoutDuration() = %v, want 5s", got)
	}
	if cfg.Hub.Mode != ModeMeta {
		t.Fatalf("Hub.Mode = %q, want %q", cfg.Hub.Mode, ModeMeta)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Log.Format != "text" {
		t.Fatalf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}
	if cfg.Telemetry.MetricsAddr != "127.0.0.1:9464" {
		t.Fatalf("Telemetry.MetricsAddr = %q, want %q", cfg.Telemetry.MetricsAddr, "127.0.0.1:9464")
	}
	if cfg.Telemetry.OTLPEndpoint != "localhost:4318" {
		t.Fatalf("Telemetry.OTLPEndpoint = %q, want %q", cfg.Telemetry.OTLPEndpoint, "localhost:4318")
	}
	if cfg.Telemetry.ServiceName != "hubsync-ci" {
		t.Fatalf("Telemetry.ServiceName = %q, want %q", cfg.Telemetry.ServiceName, "hubsync-ci")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hubsync.yaml")
	data := []byte("hub:\n  url: https://hub.example.com\n  api_key: file-key\n  mode: off\nlog:\n  level: warn\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HUBSYNC_LOG_LEVEL", "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Hub.URL != "https://hub.example.com" {
		t.Fatalf("Hub.URL = %q, want %q", cfg.Hub.URL, "https://hub.example.com")
	}
	if cfg.Hub.APIKey != "file-key" {
		t.Fatalf("Hub.APIKey = %q, want %q", cfg.Hub.APIKey, "file-key")
	}
	if cfg.Hub.Mode != ModeOff {
		t.Fatalf("Hub.Mode = %q, want %q", cfg.Hub.Mode, ModeOff)
	}
	if cfg.Log.Level != "error" {
		t.Fatalf("Log.Level = %q, want env override %q", cfg.Log.Level, "error")
	}
	if cfg.Hub.Timeout != "30s" {
		t.Fatalf("Hub.Timeout = %q, want default %q", cfg.Hub.Timeout, "30s")
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("Load(missing) error = %v, want read config error", err)
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("hub: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err = Load(path)
	if err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load(bad) error = %v, want parse config error", err)
	}
}

func TestSessionAPIKey(t *testing.T) {
	cfg := Default()
	cfg.Hub.APIKey = " key "
	if got := cfg.SessionAPIKey(); got != "key" {
		t.Fatalf("SessionAPIKey() = %q, want %q", got, "key")
	}

	cfg.Hub.Mode = ModeOff
	if got := cfg.SessionAPIKey(); got != "" {
		t.Fatalf("SessionAPIKey() in off mode = %q, want empty", got)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"url":     func(c *Config) { c.Hub.URL = "hub.liquibase.com" },
		"timeout": func(c *Config) { c.Hub.Timeout = "soon" },
		"zero":    func(c *Config) { c.Hub.Timeout = "0s" },
		"mode":    func(c *Config) { c.Hub.Mode = "sometimes" },
		"level":   func(c *Config) { c.Log.Level = "loud" },
		"format":  func(c *Config) { c.Log.Format = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("Validate() = nil, want error")
			}
		})
	}

	var nilCfg *Config
	if err := nilCfg.Validate(); err == nil {
		t.Fatal("nil Validate() = nil, want error")
	}
}
