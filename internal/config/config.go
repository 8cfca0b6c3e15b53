// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/dotandev/tabletd/internal/errors"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the daemon configuration for tabletd
type Config struct {
	AppDataDir  string `toml:"app_data_dir,omitempty"`
	ListenAddr  string `toml:"listen_addr,omitempty"`
	AuthToken   string `toml:"auth_token,omitempty"`
	LogLevel    string `toml:"log_level,omitempty"`
	LogJSON     bool   `toml:"log_json,omitempty"`
	Tracing     bool   `toml:"tracing,omitempty"`
	OTLPURL     string `toml:"otlp_url,omitempty"`
	RepoBaseURL string `toml:"repository_url,omitempty"`
	// CrashReporting enables opt-in crash reporting for daemon panics.
	CrashReporting bool   `toml:"crash_reporting,omitempty"`
	CrashEndpoint  string `toml:"crash_endpoint,omitempty"`
	CrashSentryDSN string `toml:"crash_sentry_dsn,omitempty"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		AppDataDir: defaultAppDataDir(),
		ListenAddr: "127.0.0.1:43701",
		LogLevel:   "info",
		OTLPURL:    "localhost:4318",
	}
}

func defaultAppDataDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "tabletd")
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "tabletd")
	}
	return filepath.Join(os.ExpandEnv("$HOME"), ".tabletd")
}

// GetConfigPath returns the path of tabletd.toml. TABLETD_CONFIG overrides
// the default location.
func GetConfigPath() string {
	if p := os.Getenv("TABLETD_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(defaultAppDataDir(), "tabletd.toml")
}

// Load reads the configuration file (if present), then applies TABLETD_*
// environment overrides and validates the result.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom is Load with an explicit file path.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadTOML(path); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadTOML(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.WrapConfigError("failed to read config file", err)
	}

	if err := toml.Unmarshal(data, c); err != nil {
		return errors.WrapConfigError("failed to parse config file", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.AppDataDir = getEnv("TABLETD_APPDATA", c.AppDataDir)
	c.ListenAddr = getEnv("TABLETD_LISTEN", c.ListenAddr)
	c.AuthToken = getEnv("TABLETD_AUTH_TOKEN", c.AuthToken)
	c.LogLevel = getEnv("TABLETD_LOG_LEVEL", c.LogLevel)
	c.OTLPURL = getEnv("TABLETD_OTLP_URL", c.OTLPURL)
	c.RepoBaseURL = getEnv("TABLETD_REPOSITORY_URL", c.RepoBaseURL)
	c.CrashEndpoint = getEnv("TABLETD_CRASH_ENDPOINT", c.CrashEndpoint)
	c.CrashSentryDSN = getEnv("TABLETD_SENTRY_DSN", c.CrashSentryDSN)

	if v, ok := getBool("TABLETD_LOG_JSON"); ok {
		c.LogJSON = v
	}
	if v, ok := getBool("TABLETD_TRACING"); ok {
		c.Tracing = v
	}
	if v, ok := getBool("TABLETD_CRASH_REPORTING"); ok {
		c.CrashReporting = v
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.AppDataDir == "" {
		return errors.WrapConfigError("app_data_dir must not be empty", nil)
	}
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return errors.WrapConfigError("invalid listen_addr "+c.ListenAddr, err)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.WrapConfigError("invalid log_level "+c.LogLevel, nil)
	}
	return nil
}

// Save writes the configuration as TOML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WrapConfigError("failed to create config directory", err)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return errors.WrapConfigError("failed to encode config", err)
	}
	return os.WriteFile(path, data, 0644)
}

// AppInfo derives the daemon's filesystem layout from the configuration.
func (c *Config) AppInfo() *AppInfo {
	return NewAppInfo(c.AppDataDir)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string) (bool, bool) {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	}
	return false, false
}
