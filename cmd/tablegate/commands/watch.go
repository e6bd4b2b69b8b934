package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/tablegate/tablegate/errors"
	"github.com/tablegate/tablegate/gate"
	"github.com/tablegate/tablegate/gate/overrides"
	"github.com/tablegate/tablegate/internal/gitinfo"
	"github.com/tablegate/tablegate/logger"
	"github.com/tablegate/tablegate/watch"
)

var (
	watchDataset  string
	watchMapping  string
	watchTable    string
	watchMetadata []string
	watchDiffer   string
	watchRules    string
	watchInclude  []string
	watchExclude  []string
)

// WatchCmd re-runs the gate whenever an input file changes.
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run the gate when input files change",
	Long: `Watch the mapping, table, metadata, and rules files and re-run the gate
on change. Rapid edit bursts are debounced, and runs are rate limited so a
busy editor cannot stack them up. Runs until interrupted.`,
	Example: `  tablegate watch --dataset us_census --mapping census.tmcf --table census.csv`,
	RunE:    runWatch,
}

func init() {
	WatchCmd.Flags().StringVar(&watchDataset, "dataset", "", "Dataset identifier (required)")
	WatchCmd.Flags().StringVar(&watchMapping, "mapping", "", "Template mapping file (required)")
	WatchCmd.Flags().StringVar(&watchTable, "table", "", "Tabular data file (required)")
	WatchCmd.Flags().StringSliceVar(&watchMetadata, "metadata", nil, "Metadata definition files (repeatable)")
	WatchCmd.Flags().StringVar(&watchDiffer, "differ", "", "Prior-vs-current differ artifact from an earlier import")
	WatchCmd.Flags().StringVar(&watchRules, "rules", "", "Rule configuration file")
	WatchCmd.Flags().StringSliceVar(&watchInclude, "include", nil, "Run only these rule ids")
	WatchCmd.Flags().StringSliceVar(&watchExclude, "exclude", nil, "Skip these rule ids")
	_ = WatchCmd.MarkFlagRequired("dataset")
	_ = WatchCmd.MarkFlagRequired("mapping")
	_ = WatchCmd.MarkFlagRequired("table")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	warnOnly, err := overrides.Load(cfg.Gate.WarnOnlyPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	binary, err := resolveTool(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "resolving generation tool")
	}
	runner := gate.NewRunner(cfg, warnOnly, binary)

	trigger := func(ctx context.Context) {
		// Rules and source commit are re-read per run so edits to the rule
		// file take effect without a restart.
		ruleCfg, err := loadFilteredRules(watchRules, watchInclude, watchExclude)
		if err != nil {
			pterm.Error.Printf("Skipping run, rule configuration invalid: %v\n", err)
			return
		}
		outcome, err := runner.Run(ctx, gate.Inputs{
			Dataset:      watchDataset,
			Mapping:      watchMapping,
			Table:        watchTable,
			Metadata:     watchMetadata,
			Differ:       watchDiffer,
			Rules:        ruleCfg,
			SourceCommit: gitinfo.SourceCommit(watchTable),
		})
		if err != nil {
			pterm.Error.Printf("Run failed: %v\n", err)
			return
		}
		recordRun(cfg.Store.Path, outcome)
		printRunSummary(outcome)
	}

	paths := append([]string{watchMapping, watchTable}, watchMetadata...)
	if watchRules != "" {
		paths = append(paths, watchRules)
	}
	minInterval := time.Duration(cfg.Watch.MinIntervalSeconds) * time.Second
	debounce := time.Duration(cfg.Watch.DebounceMS) * time.Millisecond
	watcher, err := watch.New(paths, minInterval, debounce, trigger)
	if err != nil {
		return err
	}

	pterm.Info.Printf("Watching %d file(s) for %s, Ctrl-C to stop\n", len(paths), watchDataset)
	logger.Infow("watch started",
		logger.FieldDataset, watchDataset,
		"paths", len(paths),
	)

	// Run once up front so a watch session always starts with a verdict.
	trigger(ctx)

	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
