package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./nifx.db" {
			t.Errorf("expected database path ./nifx.db, got %s", config.Database.Path)
		}
		if config.Dispatch.Workers != 1 {
			t.Errorf("expected 1 worker, got %d", config.Dispatch.Workers)
		}
		if config.Layout.DateLayout != "01-02-2006" {
			t.Errorf("expected date layout 01-02-2006, got %s", config.Layout.DateLayout)
		}
		if config.Layout.VolumeExt != ".nii.gz" {
			t.Errorf("expected volume ext .nii.gz, got %s", config.Layout.VolumeExt)
		}
		if len(config.Layout.GroupPrefixes) != 2 {
			t.Errorf("expected 2 group prefixes, got %v", config.Layout.GroupPrefixes)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); !errors.Is(err, os.ErrExist) {
			t.Errorf("creating config file again should fail with ErrExist, got %v", err)
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[layout]
group_prefixes = ["STUDY"]

[dispatch]
workers = 4
rate_limit = 2.5
unit_timeout_seconds = 90

[database]
path = "/custom/ledger.db"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Dispatch.Workers != 4 {
			t.Errorf("expected 4 workers, got %d", config.Dispatch.Workers)
		}
		if config.Dispatch.UnitTimeout() != 90*time.Second {
			t.Errorf("expected 90s timeout, got %v", config.Dispatch.UnitTimeout())
		}
		if len(config.Layout.GroupPrefixes) != 1 || config.Layout.GroupPrefixes[0] != "STUDY" {
			t.Errorf("expected group prefixes [STUDY], got %v", config.Layout.GroupPrefixes)
		}
		if config.Layout.ArchiveExt != ".zip" {
			t.Errorf("missing keys should keep defaults, got archive ext %q", config.Layout.ArchiveExt)
		}
		if config.Database.Path != "/custom/ledger.db" {
			t.Errorf("expected database path /custom/ledger.db, got %s", config.Database.Path)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing config file")
		}
	})
}

func TestConfigValidate(t *testing.T) {
	tt := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "zero workers", mutate: func(c *Config) { c.Dispatch.Workers = 0 }},
		{name: "negative rate", mutate: func(c *Config) { c.Dispatch.RateLimit = -1 }},
		{name: "extension without dot", mutate: func(c *Config) { c.Layout.ArchiveExt = "zip" }},
		{name: "empty volume extension", mutate: func(c *Config) { c.Layout.VolumeExt = "" }},
		{name: "no prefixes", mutate: func(c *Config) { c.Layout.GroupPrefixes = nil }},
		{name: "empty date layout", mutate: func(c *Config) { c.Layout.DateLayout = "" }},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(config)

			err := config.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
