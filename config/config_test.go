package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTempConfig writes content to a config file inside a test temp dir
// and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

const minimalConfig = `app:
  name: "brokerboard"
  version: "1.0"
store:
  driver: sqlite
  dsn: "file::memory:"
`

func TestLoadConfigAppliesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ORDERLY_BASE_URL", "")
	path := writeTempConfig(t, minimalConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.App.Name != "brokerboard" {
		t.Errorf("unexpected name: %s", cfg.App.Name)
	}
	if cfg.Engine.PollInterval != 10*time.Second {
		t.Errorf("unexpected poll interval: %s", cfg.Engine.PollInterval)
	}
	if cfg.Engine.RegistryRefreshInterval != 5*time.Minute {
		t.Errorf("unexpected registry refresh interval: %s", cfg.Engine.RegistryRefreshInterval)
	}
	if cfg.Store.DemoBrokerID != "demo" {
		t.Errorf("unexpected demo broker id: %s", cfg.Store.DemoBrokerID)
	}
	if cfg.Orderly.BaseURL != defaultOrderlyBaseURL {
		t.Errorf("unexpected orderly base url: %s", cfg.Orderly.BaseURL)
	}
	if !cfg.Server.Enabled || !cfg.Metrics.Enabled {
		t.Errorf("server and metrics should default to enabled")
	}
}

func TestLoadConfigParsesDurations(t *testing.T) {
	path := writeTempConfig(t, minimalConfig+`engine:
  poll_interval: 2s
  registry_refresh_interval: 1m
gecko:
  rate_limit:
    requests_per_second: 0.5
    burst_size: 2
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Engine.PollInterval != 2*time.Second || cfg.Engine.RegistryRefreshInterval != time.Minute {
		t.Fatalf("durations not parsed: %+v", cfg.Engine)
	}
	if cfg.Gecko.RateLimit.RequestsPerSecond != 0.5 || cfg.Gecko.RateLimit.BurstSize != 2 {
		t.Fatalf("rate limit not parsed: %+v", cfg.Gecko.RateLimit)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://user:pass@db:5432/dex")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	path := writeTempConfig(t, minimalConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Store.DSN != "postgres://user:pass@db:5432/dex" {
		t.Errorf("DATABASE_URL not applied: %s", cfg.Store.DSN)
	}
	if len(cfg.Snapshots.Brokers) != 2 || cfg.Snapshots.Brokers[1] != "k2:9092" {
		t.Errorf("KAFKA_BROKERS not applied: %v", cfg.Snapshots.Brokers)
	}
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing name", `app: {version: "1"}
store: {driver: sqlite, dsn: x}`},
		{"bad driver", `app: {name: a, version: "1"}
store: {driver: mysql, dsn: x}`},
		{"missing dsn", `app: {name: a, version: "1"}
store: {driver: sqlite}`},
		{"bad orderly url", `app: {name: a, version: "1"}
store: {driver: sqlite, dsn: x}
orderly: {base_url: "ftp://x"}`},
		{"snapshots without brokers", `app: {name: a, version: "1"}
store: {driver: sqlite, dsn: x}
snapshots: {enabled: true}`},
	}
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ORDERLY_BASE_URL", "")
	t.Setenv("KAFKA_BROKERS", "")
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := LoadConfig(writeTempConfig(t, c.content)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestAppEnvironmentAliases(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	if got := AppEnvironment(); got != EnvironmentProduction {
		t.Fatalf("AppEnvironment() = %q, want %q", got, EnvironmentProduction)
	}
	if !IsProductionLike(AppEnvironment()) {
		t.Fatalf("production should be production-like")
	}

	t.Setenv("APP_ENV", "")
	if got := AppEnvironment(); got != EnvironmentDevelopment {
		t.Fatalf("AppEnvironment() = %q, want %q", got, EnvironmentDevelopment)
	}
}

func TestResolveEnvSpecificPathKeepsExplicitPath(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	envPath := writeTempConfig(t, minimalConfig)
	paths := map[string]string{EnvironmentProduction: envPath}

	if got := resolveEnvSpecificPath("custom.yml", DefaultConfigPath, paths); got != "custom.yml" {
		t.Fatalf("explicit path replaced: %s", got)
	}
	if got := resolveEnvSpecificPath("", DefaultConfigPath, paths); got != envPath {
		t.Fatalf("env path not selected: %s", got)
	}
}
