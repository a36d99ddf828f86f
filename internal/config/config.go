// Package config loads the optional morph.yaml configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"morph/internal/converter"
)

// Config is the full configuration. Every section has usable defaults, so an
// empty or missing file is valid.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Stats    StatsConfig    `yaml:"stats"`
	Presets  PresetsConfig  `yaml:"presets"`
	Server   ServerConfig   `yaml:"server"`
	Sentry   SentryConfig   `yaml:"sentry"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File receives logs while the terminal UI owns the screen.
	File string `yaml:"file"`
}

// DefaultsConfig seeds the option flags of every command.
type DefaultsConfig struct {
	Format  string            `yaml:"format"`
	Options converter.Options `yaml:"options"`
}

type StatsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type PresetsConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// SentryConfig enables failed-item reporting when DSN is set.
type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// Dir returns the per-user directory holding morph's files.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		return ".morph"
	}
	return filepath.Join(base, "morph")
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

func Default() *Config {
	dir := Dir()
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Defaults: DefaultsConfig{
			Format:  string(converter.FormatPNG),
			Options: converter.DefaultOptions(),
		},
		Stats: StatsConfig{
			Enabled: true,
			Path:    filepath.Join(dir, "stats.db"),
		},
		Presets: PresetsConfig{
			Path: filepath.Join(dir, "presets.yaml"),
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Sentry: SentryConfig{
			Environment: "production",
		},
	}
}

// Load reads path on top of the defaults. An empty path means DefaultPath;
// a missing file yields the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := converter.ParseFormat(c.Defaults.Format); err != nil {
		return fmt.Errorf("defaults.format: %w", err)
	}
	if err := c.Defaults.Options.Validate(); err != nil {
		return fmt.Errorf("defaults.options: %w", err)
	}
	if c.Stats.Enabled && c.Stats.Path == "" {
		return errors.New("stats.path is required when stats are enabled")
	}
	return nil
}
