package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()

	// Paths defaults
	v.SetDefault("paths.output_dir", "tablegate-out")
	v.SetDefault("paths.cache_dir", filepath.Join(home, ".tablegate", "cache"))

	// Gate defaults
	v.SetDefault("gate.value_column", "value")
	v.SetDefault("gate.row_limit", 1000) // Sample-import ceiling, not a correctness bound
	v.SetDefault("gate.empty_columns_advisory", false)
	v.SetDefault("gate.timeout_seconds", 0) // 0 = no wall-clock limit
	v.SetDefault("gate.warn_only_path", "")

	// Review defaults
	v.SetDefault("review.enabled", false)
	v.SetDefault("review.advisory", false)
	v.SetDefault("review.timeout_seconds", 120)

	// Tool defaults
	v.SetDefault("tool.resolution", "LOCAL")
	v.SetDefault("tool.existence_checks", false)

	// Engine defaults
	v.SetDefault("engine.timeout_seconds", 600)

	// Store defaults
	v.SetDefault("store.path", filepath.Join(home, ".tablegate", "runs.db"))

	// Watch defaults
	v.SetDefault("watch.min_interval_seconds", 10)
	v.SetDefault("watch.debounce_ms", 2000)
}
