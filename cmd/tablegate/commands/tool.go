package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/tablegate/tablegate/display"
	"github.com/tablegate/tablegate/errors"
)

// ToolCmd groups generation-tool management.
var ToolCmd = &cobra.Command{
	Use:   "tool",
	Short: "Manage the external generation tool",
}

var toolFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the configured generation tool into the cache",
	Long: `Resolve the generation tool from configuration (or its manifest), fetch it
into the cache directory if needed, and verify any version constraint.
Fetching is idempotent: an already-cached binary is reused.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		binary, err := resolveTool(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if binary == "" {
			return errors.Wrap(errors.ErrInvalidConfig, "no tool command or source configured")
		}
		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(map[string]string{"binary": binary})
		}
		pterm.Success.Printf("Tool ready: %s\n", binary)
		return nil
	},
}

func init() {
	ToolCmd.AddCommand(toolFetchCmd)
}
