package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Shutdown  ShutdownConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Breaker   BreakerConfig
	Plugin    PluginConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT"`
	Host string `envconfig:"HOST"`
}

// StorageConfig holds storage root configuration.
type StorageConfig struct {
	Root              string `envconfig:"STORAGE_ROOT"`
	MaxRecordSize     int    `envconfig:"STORAGE_MAX_RECORD_SIZE"`
	Compression       bool   `envconfig:"STORAGE_COMPRESSION"`
	CompressThreshold int    `envconfig:"STORAGE_COMPRESS_THRESHOLD"`
	Fsync             bool   `envconfig:"STORAGE_FSYNC"`
	QueueSize         int    `envconfig:"STORAGE_QUEUE_SIZE"`
}

// ShutdownConfig holds plugin shutdown configuration.
type ShutdownConfig struct {
	Timeout     time.Duration `envconfig:"SHUTDOWN_TIMEOUT"`
	StatsWindow int           `envconfig:"SHUTDOWN_STATS_WINDOW"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL"`
	Development bool   `envconfig:"LOG_DEV"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED"`
}

// BreakerConfig holds the disk circuit breaker configuration.
type BreakerConfig struct {
	ConsecutiveFailures uint32        `envconfig:"BREAKER_FAILURES"`
	OpenTimeout         time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT"`
}

// PluginConfig holds settings handed to attached plugins.
type PluginConfig struct {
	Voucher string `envconfig:"PLUGIN_VOUCHER"`
}

// Load loads configuration from defaults, an optional CONFIG_FILE, and
// environment variables, in that order of precedence.
func Load() (*Config, error) {
	cfg := Default()

	if path := configFilePath(); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8070",
			Host: "127.0.0.1",
		},
		Storage: StorageConfig{
			Root:              "/tmp/plugstore",
			MaxRecordSize:     16 * 1024 * 1024,
			Compression:       true,
			CompressThreshold: 4096,
			Fsync:             false,
			QueueSize:         256,
		},
		Shutdown: ShutdownConfig{
			Timeout:     3 * time.Second,
			StatsWindow: 256,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Breaker: BreakerConfig{
			ConsecutiveFailures: 5,
			OpenTimeout:         10 * time.Second,
		},
		Plugin: PluginConfig{
			Voucher: "gmp-fake placeholder voucher",
		},
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Storage.Root == "" {
		return fmt.Errorf("storage root must be set")
	}
	if c.Storage.MaxRecordSize <= 0 {
		return fmt.Errorf("storage max record size must be positive, got %d", c.Storage.MaxRecordSize)
	}
	if c.Storage.QueueSize <= 0 {
		return fmt.Errorf("storage queue size must be positive, got %d", c.Storage.QueueSize)
	}
	if c.Shutdown.Timeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.Shutdown.Timeout)
	}
	return nil
}
