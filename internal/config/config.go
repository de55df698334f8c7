// Package config defines the immutable process configuration. A Config is
// constructed once at startup and handed to each component constructor; no
// component reads configuration ambiently afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Service identity reported in health and status documents.
const (
	ServiceName    = "market-predictor"
	ServiceVersion = "0.1.0"
)

// Config is the root configuration document.
type Config struct {
	Environment string          `yaml:"environment"`
	Server      ServerConfig    `yaml:"server"`
	Logging     LoggingConfig   `yaml:"logging"`
	Model       ModelConfig     `yaml:"model"`
	Cache       CacheConfig     `yaml:"cache"`
	Health      HealthConfig    `yaml:"health"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	RequestTimeout  int    `yaml:"request_timeout"`  // seconds
	ShutdownTimeout int    `yaml:"shutdown_timeout"` // seconds
}

// LoggingConfig controls log level, format and destination.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePrefix string `yaml:"file_prefix"`
}

// ModelConfig selects and parameterizes the prediction model.
type ModelConfig struct {
	Type           string  `yaml:"type"` // "dummy" or "moving-average"
	Seed           int64   `yaml:"seed"`
	Window         int     `yaml:"window"`
	BasePrice      float64 `yaml:"base_price"`
	HistoryFile    string  `yaml:"history_file"`
	HistoryPoints  int     `yaml:"history_points"`
	MaxDataPoints  int     `yaml:"max_data_points"`
	ComputeTimeout int     `yaml:"compute_timeout"` // seconds
}

// CacheConfig controls the prediction cache.
type CacheConfig struct {
	TTL           int    `yaml:"ttl"` // seconds
	MaxEntries    int    `yaml:"max_entries"`
	SweepSchedule string `yaml:"sweep_schedule"` // cron spec, e.g. "@every 1m"
}

// HealthConfig controls health aggregation.
type HealthConfig struct {
	GracePeriod   int `yaml:"grace_period"`   // seconds before a silent component counts as failed
	CheckInterval int `yaml:"check_interval"` // seconds between watchdog evaluations
}

// RateLimitConfig controls the per-client request budget.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second"`
	Burst             int  `yaml:"burst"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			RequestTimeout:  30,
			ShutdownTimeout: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Model: ModelConfig{
			Type:           "dummy",
			Seed:           42,
			Window:         20,
			BasePrice:      45000,
			HistoryPoints:  500,
			MaxDataPoints:  1000,
			ComputeTimeout: 10,
		},
		Cache: CacheConfig{
			TTL:           300,
			MaxEntries:    1024,
			SweepSchedule: "@every 1m",
		},
		Health: HealthConfig{
			GracePeriod:   30,
			CheckInterval: 5,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 100,
			Burst:             200,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file pointed
// at by PREDICTOR_CONFIG, and environment variable overrides, in that order.
// A .env file in the working directory is honored if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("PREDICTOR_CONFIG")); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads defaults overlaid with the given YAML file. Used by
// tests and tooling; environment overrides are not applied.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := loadFile(cfg, path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Environment, "ENVIRONMENT")
	setString(&cfg.Server.Host, "API_HOST")
	setInt(&cfg.Server.Port, "API_PORT")
	setInt(&cfg.Server.RequestTimeout, "REQUEST_TIMEOUT")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Model.Type, "MODEL_TYPE")
	setInt64(&cfg.Model.Seed, "MODEL_SEED")
	setString(&cfg.Model.HistoryFile, "MODEL_HISTORY_FILE")
	setInt(&cfg.Model.MaxDataPoints, "MODEL_MAX_DATA_POINTS")
	setInt(&cfg.Cache.TTL, "CACHE_TTL")
	setInt(&cfg.Cache.MaxEntries, "CACHE_MAX_ENTRIES")
	setInt(&cfg.Health.GracePeriod, "HEALTH_GRACE_PERIOD")
	setInt(&cfg.Health.CheckInterval, "HEALTH_CHECK_INTERVAL")
	setInt(&cfg.RateLimit.RequestsPerSecond, "MAX_CONCURRENT_REQUESTS")
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch c.Model.Type {
	case "dummy", "random-walk", "moving-average":
	default:
		return fmt.Errorf("unknown model type %q", c.Model.Type)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %d", c.Cache.TTL)
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max_entries must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Model.MaxDataPoints <= 0 {
		return fmt.Errorf("model max_data_points must be positive, got %d", c.Model.MaxDataPoints)
	}
	if c.Health.GracePeriod <= 0 {
		return fmt.Errorf("health grace_period must be positive, got %d", c.Health.GracePeriod)
	}
	return nil
}

// CacheTTL returns the cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration { return time.Duration(c.Cache.TTL) * time.Second }

// ComputeTimeout returns the per-call model timeout as a duration.
func (c *Config) ComputeTimeout() time.Duration {
	return time.Duration(c.Model.ComputeTimeout) * time.Second
}

// HealthGracePeriod returns the silent-component grace period as a duration.
func (c *Config) HealthGracePeriod() time.Duration {
	return time.Duration(c.Health.GracePeriod) * time.Second
}

// HealthCheckInterval returns the watchdog interval as a duration.
func (c *Config) HealthCheckInterval() time.Duration {
	return time.Duration(c.Health.CheckInterval) * time.Second
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
