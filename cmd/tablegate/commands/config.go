package commands

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/tablegate/tablegate/config"
	"github.com/tablegate/tablegate/display"
	"github.com/tablegate/tablegate/errors"
)

var configShowFormat string

// ConfigCmd groups configuration inspection and bootstrap.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and bootstrap configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		switch configShowFormat {
		case "toml":
			data, err := toml.Marshal(cfg)
			if err != nil {
				return errors.Wrap(err, "marshaling config")
			}
			fmt.Print(string(data))
			return nil
		case "json":
			return display.OutputJSON(cfg)
		default:
			return errors.Wrapf(errors.ErrUsage, "unknown format %q (toml, json)", configShowFormat)
		}
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.UserConfigPath()
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return errors.Newf("config file already exists: %s", path)
		}
		if err := config.WriteStarter(path); err != nil {
			return err
		}
		pterm.Success.Printf("Wrote starter config to %s\n", path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the active configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		active := config.ActiveConfigPath()
		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(map[string]string{
				"active": active,
				"user":   config.UserConfigPath(),
			})
		}
		if active == "" {
			pterm.Info.Println("No config file found, using defaults")
			pterm.Info.Printf("  user config path: %s\n", config.UserConfigPath())
			return nil
		}
		fmt.Println(active)
		return nil
	},
}

func init() {
	configShowCmd.Flags().StringVar(&configShowFormat, "format", "toml", "Output format: toml or json")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configInitCmd)
	ConfigCmd.AddCommand(configPathCmd)
}
