package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Layout   LayoutConfig   `toml:"layout"`
	Dispatch DispatchConfig `toml:"dispatch"`
	Sanitize SanitizeConfig `toml:"sanitize"`
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
}

// LayoutConfig describes the input tree naming conventions and file kinds.
type LayoutConfig struct {
	GroupPrefixes []string `toml:"group_prefixes"`
	DateLayout    string   `toml:"date_layout"`
	ArchiveExt    string   `toml:"archive_ext"`
	SidecarExt    string   `toml:"sidecar_ext"`
	FrameExt      string   `toml:"frame_ext"`
	VolumeExt     string   `toml:"volume_ext"`
}

// DispatchConfig contains worker pool settings.
type DispatchConfig struct {
	Workers            int     `toml:"workers"`
	RateLimit          float64 `toml:"rate_limit"`
	UnitTimeoutSeconds int     `toml:"unit_timeout_seconds"`
}

// UnitTimeout returns the per-unit deadline, zero when disabled.
func (d DispatchConfig) UnitTimeout() time.Duration {
	if d.UnitTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(d.UnitTimeoutSeconds) * time.Second
}

// SanitizeConfig contains the allow-list applied by the final sweep.
type SanitizeConfig struct {
	AllowedSuffixes []string `toml:"allowed_suffixes"`
	AllowedNames    []string `toml:"allowed_names"`
}

// DatabaseConfig contains run ledger connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, os.ErrExist)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the values that the pipeline cannot run without.
func (c *Config) Validate() error {
	l := c.Layout
	for name, ext := range map[string]string{
		"archive_ext": l.ArchiveExt,
		"sidecar_ext": l.SidecarExt,
		"frame_ext":   l.FrameExt,
		"volume_ext":  l.VolumeExt,
	} {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("%w: layout.%s must start with '.', got %q", ErrInvalidConfig, name, ext)
		}
	}

	if len(l.GroupPrefixes) == 0 {
		return fmt.Errorf("%w: layout.group_prefixes is empty", ErrInvalidConfig)
	}

	if l.DateLayout == "" {
		return fmt.Errorf("%w: layout.date_layout is empty", ErrInvalidConfig)
	}
	// A layout must round-trip a known date or every directory would be skipped.
	probe := time.Date(2021, time.March, 14, 0, 0, 0, 0, time.UTC)
	if _, err := time.Parse(l.DateLayout, probe.Format(l.DateLayout)); err != nil {
		return fmt.Errorf("%w: layout.date_layout %q: %v", ErrInvalidConfig, l.DateLayout, err)
	}

	if c.Dispatch.Workers < 1 {
		return fmt.Errorf("%w: dispatch.workers must be >= 1, got %d", ErrInvalidConfig, c.Dispatch.Workers)
	}
	if c.Dispatch.RateLimit < 0 {
		return fmt.Errorf("%w: dispatch.rate_limit must be >= 0", ErrInvalidConfig)
	}

	if _, err := ParseLogLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}
