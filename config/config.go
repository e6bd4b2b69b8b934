package config

// Config represents the core tablegate configuration
type Config struct {
	Paths  PathsConfig  `mapstructure:"paths"`
	Gate   GateConfig   `mapstructure:"gate"`
	Review ReviewConfig `mapstructure:"review"`
	Tool   ToolConfig   `mapstructure:"tool"`
	Engine EngineConfig `mapstructure:"engine"`
	Store  StoreConfig  `mapstructure:"store"`
	Watch  WatchConfig  `mapstructure:"watch"`
}

// PathsConfig configures where run artifacts and cached binaries live
type PathsConfig struct {
	OutputDir string `mapstructure:"output_dir"` // Per-run output directories are created under here
	CacheDir  string `mapstructure:"cache_dir"`  // Fetched tool binaries (default: ~/.tablegate/cache)
}

// GateConfig configures the validation pipeline itself
type GateConfig struct {
	ValueColumn          string `mapstructure:"value_column"`           // Measurement column for the numeric check (default: value)
	RowLimit             int    `mapstructure:"row_limit"`              // Max data rows for sample imports (default: 1000)
	EmptyColumnsAdvisory bool   `mapstructure:"empty_columns_advisory"` // Downgrade empty-column findings to advisory
	TimeoutSeconds       int    `mapstructure:"timeout_seconds"`        // Wall-clock limit per run: 0 = no timeout
	WarnOnlyPath         string `mapstructure:"warn_only_path"`         // Warn-only override document (YAML or JSON)
}

// ReviewConfig configures the schema review stage
type ReviewConfig struct {
	Enabled        bool   `mapstructure:"enabled"`         // Invoke the external advisory reviewer
	Advisory       bool   `mapstructure:"advisory"`        // Downgrade all reviewer findings to advisory
	Command        string `mapstructure:"command"`         // Reviewer command line (shell-quoted)
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // Reviewer timeout (default: 120)
}

// ToolConfig configures the external graph-generation tool
type ToolConfig struct {
	Command           string `mapstructure:"command"`            // Tool binary path; empty = fetch from source into cache
	Source            string `mapstructure:"source"`             // go-getter URL, supports ?checksum=sha256:...
	VersionConstraint string `mapstructure:"version_constraint"` // Semver constraint checked against `<tool> --version`
	Manifest          string `mapstructure:"manifest"`           // Optional TOML manifest overriding the fields above
	Resolution        string `mapstructure:"resolution"`         // Resolution mode flag, passed through verbatim
	ExistenceChecks   bool   `mapstructure:"existence_checks"`   // Existence-check flag, passed through verbatim
	ExtraArgs         string `mapstructure:"extra_args"`         // Extra arguments (shell-quoted string)
}

// EngineConfig configures the external rule-evaluation engine
type EngineConfig struct {
	Command        string `mapstructure:"command"`         // Engine command line (shell-quoted)
	ExtraArgs      string `mapstructure:"extra_args"`      // Extra arguments (shell-quoted string)
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // Engine timeout (default: 600)
}

// StoreConfig configures the run-history index
type StoreConfig struct {
	Path string `mapstructure:"path"` // SQLite database path (default: ~/.tablegate/runs.db)
}

// WatchConfig configures watch mode
type WatchConfig struct {
	MinIntervalSeconds int `mapstructure:"min_interval_seconds"` // Rate limit between triggered runs (default: 10)
	DebounceMS         int `mapstructure:"debounce_ms"`          // Quiet period after a change before re-running (default: 2000)
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
