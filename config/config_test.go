package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	// Create isolated viper instance without loading user/system config
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	if err != nil {
		t.Fatalf("LoadWithViper() failed: %v", err)
	}

	if cfg.Gate.ValueColumn != "value" {
		t.Errorf("expected default value column 'value', got %q", cfg.Gate.ValueColumn)
	}

	if cfg.Gate.RowLimit != 1000 {
		t.Errorf("expected default row limit 1000, got %d", cfg.Gate.RowLimit)
	}

	if cfg.Gate.EmptyColumnsAdvisory {
		t.Error("expected empty-column findings to be blocking by default")
	}

	if cfg.Review.TimeoutSeconds != 120 {
		t.Errorf("expected default review timeout 120, got %d", cfg.Review.TimeoutSeconds)
	}

	if cfg.Tool.Resolution != "LOCAL" {
		t.Errorf("expected default resolution LOCAL, got %q", cfg.Tool.Resolution)
	}
}

func defaultConfig(t *testing.T) Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	if err != nil {
		t.Fatalf("LoadWithViper() failed: %v", err)
	}
	return *cfg
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Gate: GateConfig{ValueColumn: "value", RowLimit: 1000},
			Tool: ToolConfig{Command: "dc-import"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid baseline",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "zero row limit is invalid",
			mutate:  func(c *Config) { c.Gate.RowLimit = 0 },
			wantErr: true,
		},
		{
			name:    "empty value column is invalid",
			mutate:  func(c *Config) { c.Gate.ValueColumn = "" },
			wantErr: true,
		},
		{
			name:    "negative timeout is invalid",
			mutate:  func(c *Config) { c.Gate.TimeoutSeconds = -1 },
			wantErr: true,
		},
		{
			name:    "review enabled without command is invalid",
			mutate:  func(c *Config) { c.Review.Enabled = true },
			wantErr: true,
		},
		{
			name: "review enabled with command is valid",
			mutate: func(c *Config) {
				c.Review.Enabled = true
				c.Review.Command = "schema-review --json"
			},
			wantErr: false,
		},
		{
			name: "no tool configured runs pre-generation checks only",
			mutate: func(c *Config) {
				c.Tool.Command = ""
				c.Tool.Source = ""
				c.Tool.Manifest = ""
			},
			wantErr: false,
		},
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) { *c = defaultConfig(t) },
			wantErr: false,
		},
		{
			name: "fetch source alone is valid",
			mutate: func(c *Config) {
				c.Tool.Command = ""
				c.Tool.Source = "https://example.com/dc-import?checksum=sha256:abcd"
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tablegate.toml")

	content := `
[gate]
value_column = "observation"
row_limit = 500

[tool]
command = "/usr/local/bin/dc-import"
resolution = "FULL"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() failed: %v", err)
	}

	if cfg.Gate.ValueColumn != "observation" {
		t.Errorf("expected value column 'observation', got %q", cfg.Gate.ValueColumn)
	}
	if cfg.Gate.RowLimit != 500 {
		t.Errorf("expected row limit 500, got %d", cfg.Gate.RowLimit)
	}
	if cfg.Tool.Resolution != "FULL" {
		t.Errorf("expected resolution FULL, got %q", cfg.Tool.Resolution)
	}

	// Defaults still apply for unset keys
	if cfg.Engine.TimeoutSeconds != 600 {
		t.Errorf("expected default engine timeout 600, got %d", cfg.Engine.TimeoutSeconds)
	}
}

func TestSave_RotatingBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	for i := 0; i < 3; i++ {
		settings := map[string]interface{}{
			"gate": map[string]interface{}{"row_limit": 1000 + i},
		}
		if err := Save(path, settings); err != nil {
			t.Fatalf("Save() iteration %d failed: %v", i, err)
		}
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file missing after save: %v", err)
	}
	if _, err := os.Stat(path + ".back1"); err != nil {
		t.Errorf(".back1 missing after repeated saves: %v", err)
	}
	if _, err := os.Stat(path + ".back2"); err != nil {
		t.Errorf(".back2 missing after repeated saves: %v", err)
	}
}

func TestWriteStarter_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tablegate.toml")

	if err := WriteStarter(path); err != nil {
		t.Fatalf("WriteStarter() failed: %v", err)
	}
	if err := WriteStarter(path); err == nil {
		t.Error("WriteStarter() should refuse to overwrite an existing config")
	}
}
