package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/tablegate/tablegate/display"
	"github.com/tablegate/tablegate/errors"
	"github.com/tablegate/tablegate/gate"
	"github.com/tablegate/tablegate/gate/overrides"
	"github.com/tablegate/tablegate/gate/types"
	"github.com/tablegate/tablegate/internal/gitinfo"
	"github.com/tablegate/tablegate/logger"
	"github.com/tablegate/tablegate/runstore"
)

var (
	runDataset  string
	runMapping  string
	runTable    string
	runMetadata []string
	runDiffer   string
	runRules    string
	runInclude  []string
	runExclude  []string
	runWarnOnly string
	runTimeout  int
	runOutput   string
)

// RunCmd executes one gate run against a dataset's input files.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the validation gate against a dataset",
	Long: `Run the full validation pipeline against one dataset: preflight,
tabular quality checks, row-volume policy, schema review, graph generation,
rule validation, and counter reconciliation.

Artifacts land under <output_dir>/<dataset>/<run_id>/ with a latest/ mirror.
Exit status is 0 only when the verdict is PASS.`,
	Example: `  tablegate run --dataset us_census --mapping census.tmcf --table census.csv
  tablegate run --dataset us_census --mapping census.tmcf --table census.csv \
      --metadata vars.mcf --rules rules.json --include completeness_check`,
	RunE: runGate,
}

func init() {
	RunCmd.Flags().StringVar(&runDataset, "dataset", "", "Dataset identifier (required)")
	RunCmd.Flags().StringVar(&runMapping, "mapping", "", "Template mapping file (required)")
	RunCmd.Flags().StringVar(&runTable, "table", "", "Tabular data file (required)")
	RunCmd.Flags().StringSliceVar(&runMetadata, "metadata", nil, "Metadata definition files (repeatable)")
	RunCmd.Flags().StringVar(&runDiffer, "differ", "", "Prior-vs-current differ artifact from an earlier import")
	RunCmd.Flags().StringVar(&runRules, "rules", "", "Rule configuration file")
	RunCmd.Flags().StringSliceVar(&runInclude, "include", nil, "Run only these rule ids")
	RunCmd.Flags().StringSliceVar(&runExclude, "exclude", nil, "Skip these rule ids")
	RunCmd.Flags().StringVar(&runWarnOnly, "warn-only", "", "Warn-only override document (overrides config)")
	RunCmd.Flags().IntVar(&runTimeout, "timeout", 0, "Run timeout in seconds (overrides config)")
	RunCmd.Flags().StringVar(&runOutput, "output", "", "Artifact output directory (overrides config)")
	_ = RunCmd.MarkFlagRequired("dataset")
	_ = RunCmd.MarkFlagRequired("mapping")
	_ = RunCmd.MarkFlagRequired("table")
}

func runGate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if runTimeout > 0 {
		cfg.Gate.TimeoutSeconds = runTimeout
	}
	if runOutput != "" {
		cfg.Paths.OutputDir = runOutput
	}

	ruleCfg, err := loadFilteredRules(runRules, runInclude, runExclude)
	if err != nil {
		return err
	}

	warnOnlyPath := cfg.Gate.WarnOnlyPath
	if runWarnOnly != "" {
		warnOnlyPath = runWarnOnly
	}
	warnOnly, err := overrides.Load(warnOnlyPath)
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
	outcome, err := runner.Run(ctx, gate.Inputs{
		Dataset:      runDataset,
		Mapping:      runMapping,
		Table:        runTable,
		Metadata:     runMetadata,
		Differ:       runDiffer,
		Rules:        ruleCfg,
		SourceCommit: gitinfo.SourceCommit(runTable),
	})
	if err != nil {
		return err
	}

	recordRun(cfg.Store.Path, outcome)

	if display.ShouldOutputJSON(cmd) {
		if err := display.OutputJSON(outcome.Document); err != nil {
			return err
		}
	} else {
		printRunSummary(outcome)
	}

	if !outcome.Passed() {
		os.Exit(1)
	}
	return nil
}

// recordRun indexes the finished run. Index failures are logged, never
// fatal: the artifacts on disk are the source of truth.
func recordRun(storePath string, outcome *gate.Outcome) {
	store, err := runstore.Open(storePath)
	if err != nil {
		logger.Warnw("Run store unavailable, skipping index",
			logger.FieldError, err.Error(),
		)
		return
	}
	defer store.Close()

	if err := store.Record(storeRun(outcome)); err != nil {
		logger.Warnw("Failed to index run",
			logger.FieldRunID, outcome.RunID,
			logger.FieldError, err.Error(),
		)
	}
}

func storeRun(outcome *gate.Outcome) runstore.Run {
	doc := outcome.Document
	var blocking, advisory int
	for _, rec := range doc.Records {
		if rec.Blocking() {
			blocking++
		} else if rec.Status == string(types.StatusFailed) {
			advisory++
		}
	}
	var failureCode string
	if f := outcome.Failure; f != nil {
		failureCode = f.Code
	}
	return runstore.Run{
		RunID:         outcome.RunID,
		Dataset:       doc.Dataset,
		Verdict:       string(doc.Verdict),
		FinalState:    string(outcome.FinalState),
		FailureCode:   failureCode,
		RecordCount:   len(doc.Records),
		BlockingCount: blocking,
		AdvisoryCount: advisory,
		ResultPath:    outcome.RunDir,
		SourceCommit:  doc.SourceCommit,
		StartedAt:     doc.StartedAt,
		FinishedAt:    doc.FinishedAt,
	}
}

func printRunSummary(outcome *gate.Outcome) {
	doc := outcome.Document
	if outcome.Passed() {
		pterm.Success.Printf("Gate PASSED for %s (run %s)\n", doc.Dataset, outcome.RunID)
	} else {
		pterm.Error.Printf("Gate FAILED for %s (run %s)\n", doc.Dataset, outcome.RunID)
		if f := outcome.Failure; f != nil {
			pterm.Error.Printf("  %s at %s: %s\n", f.Code, f.Stage, f.Message)
		}
	}

	for _, rec := range doc.Records {
		if rec.Status != string(types.StatusFailed) {
			continue
		}
		switch rec.Kind {
		case types.RecordKindFinding:
			if rec.Finding == nil {
				continue
			}
			if rec.Severity == types.SeverityBlocking {
				pterm.Error.Printf("  [%s] %s: %s\n", rec.Stage, rec.Finding.Code, rec.Finding.Message)
			} else {
				pterm.Warning.Printf("  [%s] %s: %s\n", rec.Stage, rec.Finding.Code, rec.Finding.Message)
			}
		case types.RecordKindOutcome:
			if rec.Outcome == nil {
				continue
			}
			pterm.Error.Printf("  [rule] %s: %s\n", rec.Outcome.RuleID, rec.Outcome.Detail)
		}
	}

	elapsed := doc.FinishedAt.Sub(doc.StartedAt).Round(time.Millisecond)
	pterm.Info.Printf("Artifacts: %s (%d records, %s)\n", outcome.RunDir, len(doc.Records), elapsed)
}
