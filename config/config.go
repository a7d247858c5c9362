package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "config/config.yml"

	defaultPollInterval            = 10 * time.Second
	defaultRegistryRefreshInterval = 5 * time.Minute
	defaultStatsWindowDays         = 30
	defaultDemoBrokerID            = "demo"
	defaultOrderlyBaseURL          = "https://api-evm.orderly.org"
	defaultGeckoBaseURL            = "https://api.geckoterminal.com/api/v2"
	defaultResponseCacheTTL        = 60 * time.Second
	defaultSnapshotTopic           = "broker-daily-stats"
)

var envConfigPaths = map[string]string{
	EnvironmentProduction: "config/config.production.yml",
	EnvironmentStaging:    "config/config.staging.yml",
}

type Config struct {
	App       AppConfig       `yaml:"app"`
	Engine    EngineConfig    `yaml:"engine"`
	Orderly   OrderlyConfig   `yaml:"orderly"`
	Gecko     GeckoConfig     `yaml:"gecko"`
	Store     StoreConfig     `yaml:"store"`
	Server    ServerConfig    `yaml:"server"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Snapshots SnapshotsConfig `yaml:"snapshots"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type EngineConfig struct {
	PollInterval            time.Duration `yaml:"poll_interval"`
	RegistryRefreshInterval time.Duration `yaml:"registry_refresh_interval"`
	StatsWindowDays         int           `yaml:"stats_window_days"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

type OrderlyConfig struct {
	BaseURL        string               `yaml:"base_url"`
	Timeout        time.Duration        `yaml:"timeout"`
	UserAgent      string               `yaml:"user_agent"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
}

type GeckoConfig struct {
	BaseURL        string               `yaml:"base_url"`
	Timeout        time.Duration        `yaml:"timeout"`
	UserAgent      string               `yaml:"user_agent"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
}

type StoreConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	DemoBrokerID string `yaml:"demo_broker_id"`
}

type ServerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Address          string        `yaml:"address"`
	ResponseCacheTTL time.Duration `yaml:"response_cache_ttl"`
	Redis            RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MetricsConfig struct {
	Enabled    bool             `yaml:"enabled"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Namespace       string `yaml:"namespace"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type SnapshotsConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Brokers    []string `yaml:"brokers"`
	Topic      string   `yaml:"topic"`
	BufferSize int      `yaml:"buffer_size"`
}

type LoggingConfig struct {
	Level          string        `yaml:"level"`
	Format         string        `yaml:"format"`
	Output         string        `yaml:"output"`
	MaxAge         int           `yaml:"max_age"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

// LoadConfig reads the YAML file at path. When APP_ENV names an environment with
// its own file and path is the default, that file is used instead.
func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, DefaultConfigPath, envConfigPaths)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Metrics: MetricsConfig{Enabled: true},
		Server:  ServerConfig{Enabled: true},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)
	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.DSN = strings.TrimSpace(v)
	}
	if v := os.Getenv("ORDERLY_BASE_URL"); v != "" {
		cfg.Orderly.BaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Server.Redis.Addr = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Server.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Server.Redis.DB = db
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Snapshots.Brokers = splitList(v)
	}
	if cfg.Metrics.CloudWatch.Enabled {
		if v := os.Getenv("AWS_REGION"); v != "" {
			cfg.Metrics.CloudWatch.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			cfg.Metrics.CloudWatch.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			cfg.Metrics.CloudWatch.SecretAccessKey = strings.TrimSpace(v)
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Engine.PollInterval == 0 {
		cfg.Engine.PollInterval = defaultPollInterval
	}
	if cfg.Engine.RegistryRefreshInterval == 0 {
		cfg.Engine.RegistryRefreshInterval = defaultRegistryRefreshInterval
	}
	if cfg.Engine.StatsWindowDays == 0 {
		cfg.Engine.StatsWindowDays = defaultStatsWindowDays
	}
	if cfg.Orderly.BaseURL == "" {
		cfg.Orderly.BaseURL = defaultOrderlyBaseURL
	}
	if cfg.Orderly.Timeout == 0 {
		cfg.Orderly.Timeout = 15 * time.Second
	}
	if cfg.Gecko.BaseURL == "" {
		cfg.Gecko.BaseURL = defaultGeckoBaseURL
	}
	if cfg.Gecko.Timeout == 0 {
		cfg.Gecko.Timeout = 15 * time.Second
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "postgres"
	}
	if cfg.Store.DemoBrokerID == "" {
		cfg.Store.DemoBrokerID = defaultDemoBrokerID
	}
	if cfg.Server.ResponseCacheTTL == 0 {
		cfg.Server.ResponseCacheTTL = defaultResponseCacheTTL
	}
	if cfg.Snapshots.Topic == "" {
		cfg.Snapshots.Topic = defaultSnapshotTopic
	}
	if cfg.Snapshots.BufferSize <= 0 {
		cfg.Snapshots.BufferSize = 256
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.ReportInterval == 0 {
		cfg.Logging.ReportInterval = 30 * time.Second
	}
}

func validateConfig(cfg *Config) error {
	if cfg.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	if cfg.App.Version == "" {
		return fmt.Errorf("app.version is required")
	}

	if cfg.Engine.PollInterval <= 0 {
		return fmt.Errorf("engine.poll_interval must be greater than 0")
	}
	if cfg.Engine.RegistryRefreshInterval <= 0 {
		return fmt.Errorf("engine.registry_refresh_interval must be greater than 0")
	}
	if cfg.Engine.StatsWindowDays <= 0 {
		return fmt.Errorf("engine.stats_window_days must be greater than 0")
	}

	if !isValidBaseURL(cfg.Orderly.BaseURL) {
		return fmt.Errorf("orderly.base_url '%s' is invalid", cfg.Orderly.BaseURL)
	}
	if !isValidBaseURL(cfg.Gecko.BaseURL) {
		return fmt.Errorf("gecko.base_url '%s' is invalid", cfg.Gecko.BaseURL)
	}

	switch cfg.Store.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("store.driver '%s' is not supported", cfg.Store.Driver)
	}
	if cfg.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}

	if cfg.Snapshots.Enabled && len(cfg.Snapshots.Brokers) == 0 {
		return fmt.Errorf("snapshots.brokers is required when snapshots are enabled")
	}

	if cfg.Metrics.CloudWatch.Enabled && cfg.Metrics.CloudWatch.Region == "" {
		return fmt.Errorf("metrics.cloudwatch.region is required when CloudWatch is enabled")
	}

	return nil
}

func isValidBaseURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
