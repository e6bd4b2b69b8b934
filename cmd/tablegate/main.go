package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tablegate/tablegate/cmd/tablegate/commands"
	"github.com/tablegate/tablegate/logger"
)

var rootCmd = &cobra.Command{
	Use:   "tablegate",
	Short: "tablegate - validation gate for tabular data imports",
	Long: `tablegate - validation gate for tabular knowledge-graph imports.

tablegate runs a staged pipeline over a mapping file and data table:
preflight checks, data quality, row volume, schema review, graph
generation, and rule validation. Every run produces a results.json
document; the process exits 0 only when the verdict is PASS.

Available commands:
  run     - Gate one dataset import
  watch   - Re-run the gate when input files change
  rules   - Inspect and filter rule configurations
  runs    - Browse recorded run history
  tool    - Manage the graph-generation tool binary
  config  - Manage tablegate configuration

Examples:
  tablegate run --dataset us_census --mapping data.tmcf --table data.csv
  tablegate run --dataset us_census --mapping data.tmcf --table data.csv --rules rules.json
  tablegate rules ls rules.json
  tablegate runs ls --dataset us_census`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
		jsonLogs, _ := cmd.Root().PersistentFlags().GetBool("json")
		if err := logger.Initialize(verbose, jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().Bool("json", false, "JSON output")
	rootCmd.PersistentFlags().String("config", "", "Config file path (overrides the config cascade)")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.RulesCmd)
	rootCmd.AddCommand(commands.RunsCmd)
	rootCmd.AddCommand(commands.ToolCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
