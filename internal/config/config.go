package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level TOML structure for the bpmon daemon.
//
// Auth selects the upstream mode: a non-empty api_key means static bearer
// auth; otherwise username/password drive the form-login session flow.
type Config struct {
	BaseURL      string        `toml:"base_url" mapstructure:"base_url"`
	CheckTimeout time.Duration `toml:"check_timeout" mapstructure:"check_timeout"`
	Auth         AuthConfig    `toml:"auth" mapstructure:"auth"`
	TLS          TLSConfig     `toml:"tls" mapstructure:"tls"`
	Server       ServerConfig  `toml:"server" mapstructure:"server"`
	Store        StoreConfig   `toml:"store" mapstructure:"store"`
	Log          LogConfig     `toml:"log" mapstructure:"log"`
	Metrics      MetricsConfig `toml:"metrics" mapstructure:"metrics"`
}

type AuthConfig struct {
	Username string `toml:"username" mapstructure:"username"`
	Password string `toml:"password" mapstructure:"password"`
	APIKey   string `toml:"api_key" mapstructure:"api_key"`
}

type TLSConfig struct {
	VerifySSL bool   `toml:"verify_ssl" mapstructure:"verify_ssl"`
	CABundle  string `toml:"ca_bundle" mapstructure:"ca_bundle"`
}

type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

type StoreConfig struct {
	// DSN selects the backend: bare path or file:// for JSON file,
	// sqlite://, postgres://.
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	Path       string `toml:"path" mapstructure:"path"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"`
}

// Default returns the built-in defaults applied before file values.
func Default() Config {
	return Config{
		CheckTimeout: 30 * time.Second,
		TLS:          TLSConfig{VerifySSL: true},
		Server:       ServerConfig{Listen: ":8080", BasePath: "/api"},
		Store:        StoreConfig{DSN: "data/monitors.json"},
		Log:          LogConfig{Level: "info"},
		Metrics:      MetricsConfig{Enabled: true},
	}
}

// Load reads a TOML config file and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the daemon cannot run without.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	if c.Auth.APIKey == "" && (c.Auth.Username == "" || c.Auth.Password == "") {
		return errors.New("auth requires api_key or both username and password")
	}
	if c.CheckTimeout <= 0 {
		return errors.New("check_timeout must be positive")
	}
	return nil
}

// BearerMode reports whether the static bearer header is in use.
func (c *Config) BearerMode() bool { return c.Auth.APIKey != "" }
