package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tablegate/tablegate/config"
	"github.com/tablegate/tablegate/errors"
	"github.com/tablegate/tablegate/extproc"
	"github.com/tablegate/tablegate/gate/rules"
)

// loadConfig honors the global --config override, falling back to the
// standard cascade (system < user < project < environment). The loaded
// config is validated before any command acts on it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path, _ := cmd.Root().PersistentFlags().GetString("config"); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

// resolveTool produces the generation tool binary path: an explicit command
// wins, then a fetch from the configured source. A manifest overrides the
// inline fields before either. Empty return (nil error) means no tool is
// configured and generation is skipped.
func resolveTool(ctx context.Context, cfg *config.Config) (string, error) {
	tool := &cfg.Tool
	name := "import-tool"
	if tool.Manifest != "" {
		m, err := extproc.LoadManifest(tool.Manifest)
		if err != nil {
			return "", err
		}
		name = m.Name
		if m.Source != "" {
			tool.Source = m.Source
		}
		if m.VersionConstraint != "" {
			tool.VersionConstraint = m.VersionConstraint
		}
		if m.ExtraArgs != "" {
			tool.ExtraArgs = m.ExtraArgs
		}
	}

	var binary string
	switch {
	case tool.Command != "":
		expanded, err := extproc.ExpandPath(tool.Command)
		if err != nil {
			return "", err
		}
		binary = expanded
	case tool.Source != "":
		fetched, err := extproc.FetchTool(ctx, tool.Source, cfg.Paths.CacheDir, name)
		if err != nil {
			return "", err
		}
		binary = fetched
	default:
		return "", nil
	}

	if tool.VersionConstraint != "" {
		if err := extproc.CheckVersion(ctx, binary, tool.VersionConstraint); err != nil {
			return "", err
		}
	}
	return binary, nil
}

// loadFilteredRules loads the rule configuration and applies include/exclude
// selection. Empty path means no rule evaluation.
func loadFilteredRules(path string, include, exclude []string) (*rules.Config, error) {
	if path == "" {
		if len(include) > 0 || len(exclude) > 0 {
			return nil, errors.Wrap(errors.ErrUsage, "--include/--exclude require --rules")
		}
		return nil, nil
	}
	cfg, err := rules.Load(path)
	if err != nil {
		return nil, err
	}
	return rules.Filter(cfg, include, exclude)
}
