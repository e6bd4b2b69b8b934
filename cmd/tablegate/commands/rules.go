package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/tablegate/tablegate/display"
	"github.com/tablegate/tablegate/gate/rules"
)

var (
	rulesFilterInclude []string
	rulesFilterExclude []string
	rulesFilterOutput  string
)

// RulesCmd groups rule-configuration tooling.
var RulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Validate, inspect, and filter rule configurations",
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Validate a rule configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := rules.Load(args[0])
		if err != nil {
			return err
		}
		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(map[string]interface{}{
				"path":  args[0],
				"valid": true,
				"rules": len(cfg.Rules),
			})
		}
		pterm.Success.Printf("%s: valid (%d rules)\n", args[0], len(cfg.Rules))
		return nil
	},
}

var rulesLsCmd = &cobra.Command{
	Use:   "ls <path>",
	Short: "List the rules in a configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := rules.Load(args[0])
		if err != nil {
			return err
		}
		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(cfg)
		}
		rows := pterm.TableData{{"RULE ID", "VALIDATOR", "ENABLED", "DESCRIPTION"}}
		for _, r := range cfg.Rules {
			enabled := "yes"
			if !r.IsEnabled() {
				enabled = "no"
			}
			rows = append(rows, []string{r.RuleID, r.Validator, enabled, r.Description})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

var rulesFilterCmd = &cobra.Command{
	Use:   "filter <path>",
	Short: "Write a filtered copy of a rule configuration",
	Long: `Apply --include or --exclude selection to a rule configuration and write
the result. The two selection modes are mutually exclusive.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := rules.Load(args[0])
		if err != nil {
			return err
		}
		filtered, err := rules.Filter(cfg, rulesFilterInclude, rulesFilterExclude)
		if err != nil {
			return err
		}
		if rulesFilterOutput == "" {
			return display.OutputJSON(filtered)
		}
		if err := rules.Write(filtered, rulesFilterOutput); err != nil {
			return err
		}
		pterm.Success.Printf("Wrote %d rule(s) to %s\n", len(filtered.Rules), rulesFilterOutput)
		return nil
	},
}

func init() {
	rulesFilterCmd.Flags().StringSliceVar(&rulesFilterInclude, "include", nil, "Keep only these rule ids")
	rulesFilterCmd.Flags().StringSliceVar(&rulesFilterExclude, "exclude", nil, "Drop these rule ids")
	rulesFilterCmd.Flags().StringVar(&rulesFilterOutput, "output", "", "Destination file (default: stdout as JSON)")

	RulesCmd.AddCommand(rulesValidateCmd)
	RulesCmd.AddCommand(rulesLsCmd)
	RulesCmd.AddCommand(rulesFilterCmd)
}
