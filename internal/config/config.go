package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Hub modes. ModeOff disables the Hub entirely; ModeMeta and ModeAll both
// connect, differing only in how much operation output the caller reports.
const (
	ModeAll  = "all"
	ModeMeta = "meta"
	ModeOff  = "off"
)

type Config struct {
	Hub       HubConfig       `yaml:"hub"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type HubConfig struct {
	URL     string `yaml:"url"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"` // e.g. "30s"
	Mode    string `yaml:"mode"`    // "all", "meta" or "off"
}

type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn" or "error"
	Format string `yaml:"format"` // "json" or "text"
}

type TelemetryConfig struct {
	MetricsAddr  string `yaml:"metrics_addr"`  // empty disables the metrics listener
	OTLPEndpoint string `yaml:"otlp_endpoint"` // empty disables trace export
	ServiceName  string `yaml:"service_name"`
}

// TimeoutDuration parses Hub.Timeout. Call Validate first.
func (c *Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Hub.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// SessionAPIKey is the key the Hub session is opened with. Mode off yields
// an empty key, which leaves the session unavailable without contacting
// the Hub.
func (c *Config) SessionAPIKey() string {
	if strings.EqualFold(c.Hub.Mode, ModeOff) {
		return ""
	}
	return strings.TrimSpace(c.Hub.APIKey)
}

func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is required")
	}
	u, err := url.Parse(c.Hub.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("hub.url must be an absolute http or https URL (current value: %q)", c.Hub.URL)
	}
	if d, err := time.ParseDuration(c.Hub.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("hub.timeout must be a positive duration such as 30s (current value: %q)", c.Hub.Timeout)
	}
	switch strings.ToLower(c.Hub.Mode) {
	case ModeAll, ModeMeta, ModeOff:
	default:
		return fmt.Errorf("hub.mode must be one of all, meta, off (current value: %q)", c.Hub.Mode)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error (current value: %q)", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text (current value: %q)", c.Log.Format)
	}
	return nil
}

func Default() *Config {
	return &Config{
		Hub: HubConfig{
			URL:     "https://hub.liquibase.com",
			Timeout: "30s",
			Mode:    ModeAll,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "hubsync",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HUBSYNC_HUB_URL"); v != "" {
		cfg.Hub.URL = strings.TrimSpace(v)
	}
	if v := os.Getenv("HUBSYNC_HUB_API_KEY"); v != "" {
		cfg.Hub.APIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("HUBSYNC_HUB_TIMEOUT"); v != "" {
		cfg.Hub.Timeout = v
	}
	if v := os.Getenv("HUBSYNC_HUB_MODE"); v != "" {
		cfg.Hub.Mode = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("HUBSYNC_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HUBSYNC_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("HUBSYNC_METRICS_ADDR"); v != "" {
		cfg.Telemetry.MetricsAddr = v
	}
	if v := os.Getenv("HUBSYNC_OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("HUBSYNC_OTEL_SERVICE_NAME"); v != "" {
		cfg.Telemetry.ServiceName = v
	}
}
