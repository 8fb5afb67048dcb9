// Package config loads service configuration from an optional TOML file,
// environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	// DefaultConfigFile is read when no explicit path is given and it exists.
	DefaultConfigFile = "posture.toml"

	EnvLogLevel = "POSTURE_LOG_LEVEL"
	EnvTray     = "POSTURE_TRAY"
)

// Config is the root configuration for the posture service.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Store     StoreConfig     `toml:"store"`
	Detector  DetectorConfig  `toml:"detector"`
	Recorder  RecorderConfig  `toml:"recorder"`
	Smoothing SmoothingConfig `toml:"smoothing"`
	Training  TrainingConfig  `toml:"training"`
	Model     ModelConfig     `toml:"model"`
	MQTT      MQTTConfig      `toml:"mqtt"`
	Plugins   PluginsConfig   `toml:"plugins"`
	LogLevel  string          `toml:"log_level"`
	Tray      bool            `toml:"tray"`
}

// Load reads the config file at path, applies environment overrides and defaults,
// and validates the result. An empty path reads DefaultConfigFile if it exists;
// otherwise defaults and environment variables provide all configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}

	if path != "" {
		loaded, err := load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Default returns a finalized configuration built from defaults and the environment.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}
	return cfg, nil
}

// SlogLevel returns LogLevel as a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}

	sections := []struct {
		name string
		f    interface{ Finalize() error }
	}{
		{"server", &c.Server},
		{"store", &c.Store},
		{"detector", &c.Detector},
		{"recorder", &c.Recorder},
		{"smoothing", &c.Smoothing},
		{"training", &c.Training},
		{"model", &c.Model},
		{"mqtt", &c.MQTT},
		{"plugins", &c.Plugins},
	}
	for _, s := range sections {
		if err := s.f.Finalize(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvTray); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Tray = b
		}
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("invalid log_level: %q", c.LogLevel)
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("parse config %s:%d:%d: %w", path, row, col, err)
		}
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}
