package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/tablegate/tablegate/display"
	"github.com/tablegate/tablegate/runstore"
)

var (
	runsLsDataset string
	runsLsLimit   int
)

// RunsCmd groups run-history queries.
var RunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Query the run-history index",
}

var runsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recorded runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := runstore.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.List(runsLsDataset, runsLsLimit)
		if err != nil {
			return err
		}
		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(runs)
		}
		if len(runs) == 0 {
			pterm.Info.Println("No recorded runs")
			return nil
		}
		rows := pterm.TableData{{"RUN ID", "DATASET", "VERDICT", "FAILURE", "RECORDS", "FINISHED"}}
		for _, r := range runs {
			rows = append(rows, []string{
				r.RunID,
				r.Dataset,
				r.Verdict,
				r.FailureCode,
				fmt.Sprintf("%d", r.RecordCount),
				r.FinishedAt.Format("2006-01-02 15:04:05"),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := runstore.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.Get(args[0])
		if err != nil {
			return err
		}
		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(run)
		}
		if run.Verdict == "PASS" {
			pterm.Success.Printf("%s: PASS\n", run.RunID)
		} else {
			pterm.Error.Printf("%s: %s", run.RunID, run.Verdict)
			if run.FailureCode != "" {
				pterm.Error.Printf(" (%s)", run.FailureCode)
			}
			pterm.Println()
		}
		pterm.Info.Printf("  dataset:   %s\n", run.Dataset)
		pterm.Info.Printf("  state:     %s\n", run.FinalState)
		pterm.Info.Printf("  records:   %d (%d blocking, %d advisory)\n",
			run.RecordCount, run.BlockingCount, run.AdvisoryCount)
		pterm.Info.Printf("  artifacts: %s\n", run.ResultPath)
		if run.SourceCommit != "" {
			pterm.Info.Printf("  commit:    %s\n", run.SourceCommit)
		}
		pterm.Info.Printf("  started:   %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
		pterm.Info.Printf("  finished:  %s\n", run.FinishedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	runsLsCmd.Flags().StringVar(&runsLsDataset, "dataset", "", "Filter by dataset")
	runsLsCmd.Flags().IntVar(&runsLsLimit, "limit", 20, "Maximum number of runs")

	RunsCmd.AddCommand(runsLsCmd)
	RunsCmd.AddCommand(runsShowCmd)
}
