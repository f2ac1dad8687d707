package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config for YAML/TOML files. Durations are strings
// ("3s") and booleans are pointers so unset keys keep their defaults.
type fileConfig struct {
	Server struct {
		Port string `yaml:"port" toml:"port"`
		Host string `yaml:"host" toml:"host"`
	} `yaml:"server" toml:"server"`

	Storage struct {
		Root              string `yaml:"root" toml:"root"`
		MaxRecordSize     int    `yaml:"max_record_size" toml:"max_record_size"`
		Compression       *bool  `yaml:"compression" toml:"compression"`
		CompressThreshold int    `yaml:"compress_threshold" toml:"compress_threshold"`
		Fsync             *bool  `yaml:"fsync" toml:"fsync"`
		QueueSize         int    `yaml:"queue_size" toml:"queue_size"`
	} `yaml:"storage" toml:"storage"`

	Shutdown struct {
		Timeout     string `yaml:"timeout" toml:"timeout"`
		StatsWindow int    `yaml:"stats_window" toml:"stats_window"`
	} `yaml:"shutdown" toml:"shutdown"`

	Logging struct {
		Level       string `yaml:"level" toml:"level"`
		Development *bool  `yaml:"development" toml:"development"`
	} `yaml:"logging" toml:"logging"`

	RateLimit struct {
		RequestsPerSecond int   `yaml:"rps" toml:"rps"`
		Burst             int   `yaml:"burst" toml:"burst"`
		Enabled           *bool `yaml:"enabled" toml:"enabled"`
	} `yaml:"rate_limit" toml:"rate_limit"`

	Breaker struct {
		ConsecutiveFailures uint32 `yaml:"consecutive_failures" toml:"consecutive_failures"`
		OpenTimeout         string `yaml:"open_timeout" toml:"open_timeout"`
	} `yaml:"breaker" toml:"breaker"`

	Plugin struct {
		Voucher string `yaml:"voucher" toml:"voucher"`
	} `yaml:"plugin" toml:"plugin"`
}

func configFilePath() string {
	return strings.TrimSpace(os.Getenv("CONFIG_FILE"))
}

// applyFile overlays a YAML or TOML file onto cfg, chosen by extension.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	case ".toml":
		err = toml.Unmarshal(data, &fc)
	default:
		return fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return fc.apply(cfg)
}

func (fc *fileConfig) apply(cfg *Config) error {
	setString(&cfg.Server.Port, fc.Server.Port)
	setString(&cfg.Server.Host, fc.Server.Host)

	setString(&cfg.Storage.Root, fc.Storage.Root)
	setInt(&cfg.Storage.MaxRecordSize, fc.Storage.MaxRecordSize)
	setBool(&cfg.Storage.Compression, fc.Storage.Compression)
	setInt(&cfg.Storage.CompressThreshold, fc.Storage.CompressThreshold)
	setBool(&cfg.Storage.Fsync, fc.Storage.Fsync)
	setInt(&cfg.Storage.QueueSize, fc.Storage.QueueSize)

	if err := setDuration(&cfg.Shutdown.Timeout, fc.Shutdown.Timeout); err != nil {
		return fmt.Errorf("shutdown.timeout: %w", err)
	}
	setInt(&cfg.Shutdown.StatsWindow, fc.Shutdown.StatsWindow)

	setString(&cfg.Logging.Level, fc.Logging.Level)
	setBool(&cfg.Logging.Development, fc.Logging.Development)

	setInt(&cfg.RateLimit.RequestsPerSecond, fc.RateLimit.RequestsPerSecond)
	setInt(&cfg.RateLimit.Burst, fc.RateLimit.Burst)
	setBool(&cfg.RateLimit.Enabled, fc.RateLimit.Enabled)

	if fc.Breaker.ConsecutiveFailures > 0 {
		cfg.Breaker.ConsecutiveFailures = fc.Breaker.ConsecutiveFailures
	}
	if err := setDuration(&cfg.Breaker.OpenTimeout, fc.Breaker.OpenTimeout); err != nil {
		return fmt.Errorf("breaker.open_timeout: %w", err)
	}

	setString(&cfg.Plugin.Voucher, fc.Plugin.Voucher)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
