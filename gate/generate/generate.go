// Package generate runs the graph-generation tool over the mapping and data
// table, producing the summary and report artifacts the later stages consume.
// When metadata files are present a lint invocation runs first; its report,
// if produced, supersedes the generation report for rule evaluation.
package generate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tablegate/tablegate/extproc"
	"github.com/tablegate/tablegate/gate/types"
	"github.com/tablegate/tablegate/logger"
)

const StageName = "GENERATE"

// CodeGenerationFailed marks every generation failure other than timeout and
// cancellation.
const CodeGenerationFailed = types.CodeGenerationFailed

// Artifact names the tool writes into its output directory.
const (
	SummaryArtifact    = "summary_stats.csv"
	ReportArtifact     = "report.json"
	LintReportArtifact = "lint_report.json"
)

// Inputs are the files handed to the tool.
type Inputs struct {
	MappingPath   string
	TablePath     string
	MetadataPaths []string
}

// Options configures the tool invocation.
type Options struct {
	// Binary is the resolved tool executable.
	Binary string

	// RunDir receives all artifacts.
	RunDir string

	// Resolution and ExistenceChecks are passed through to the tool verbatim.
	Resolution      string
	ExistenceChecks bool

	// ExtraArgs are appended to every invocation.
	ExtraArgs []string

	// Timeout bounds each invocation separately. Zero defers to the caller's
	// context.
	Timeout time.Duration
}

// Artifacts locates the outputs a successful run produced.
type Artifacts struct {
	// SummaryPath is the summary statistics table.
	SummaryPath string

	// ReportPath is the generation report, always from the genmcf run.
	// Counter reconciliation must use this one.
	ReportPath string

	// RuleReportPath is the report rule evaluation should read: the lint
	// report when one was produced, otherwise the generation report.
	RuleReportPath string
}

// Run executes the stage. The lint invocation is best-effort: its failure is
// logged and the generation report stands in.
func Run(ctx context.Context, in Inputs, opts Options) (Artifacts, types.StageResult) {
	res := types.StageResult{
		Stage:    StageName,
		Status:   types.StatusPassed,
		Severity: types.SeverityBlocking,
	}
	var artifacts Artifacts

	if len(in.MetadataPaths) > 0 {
		if lintReport, ok := runLint(ctx, in, opts); ok {
			artifacts.RuleReportPath = lintReport
		}
	}

	step := extproc.Step{
		Name:    "generate",
		Command: opts.Binary,
		Args:    toolArgs("genmcf", in, opts, opts.RunDir),
		Timeout: opts.Timeout,
	}
	procRes, err := step.Run(ctx)
	if err != nil {
		res.Status = types.StatusFailed
		res.Findings = []types.Finding{{
			Code:     CodeGenerationFailed,
			Message:  err.Error(),
			Severity: types.SeverityBlocking,
		}}
		return artifacts, res
	}
	if !procRes.Ok() {
		res.Status = types.StatusFailed
		res.Findings = []types.Finding{failureFinding(procRes)}
		return artifacts, res
	}

	summary := filepath.Join(opts.RunDir, SummaryArtifact)
	if _, statErr := os.Stat(summary); statErr != nil {
		res.Status = types.StatusFailed
		res.Findings = []types.Finding{{
			Code:     CodeGenerationFailed,
			Message:  fmt.Sprintf("generation tool exited successfully but produced no %s", SummaryArtifact),
			Severity: types.SeverityBlocking,
		}}
		return artifacts, res
	}
	artifacts.SummaryPath = summary

	report := filepath.Join(opts.RunDir, ReportArtifact)
	if _, statErr := os.Stat(report); statErr == nil {
		artifacts.ReportPath = report
	}
	if artifacts.RuleReportPath == "" {
		artifacts.RuleReportPath = artifacts.ReportPath
	}

	logger.Infow("generation complete",
		logger.FieldStage, StageName,
		logger.FieldPath, summary,
		logger.FieldDurationMS, procRes.Duration.Milliseconds())
	return artifacts, res
}

// runLint performs the lint sub-invocation into its own directory so its
// report.json cannot clobber the generation one. Returns the lint report path
// and whether it was produced.
func runLint(ctx context.Context, in Inputs, opts Options) (string, bool) {
	lintDir := filepath.Join(opts.RunDir, "lint")
	if err := os.MkdirAll(lintDir, 0o755); err != nil {
		logger.Warnw("could not create lint output directory, skipping lint",
			logger.FieldPath, lintDir,
			logger.FieldError, err.Error())
		return "", false
	}

	step := extproc.Step{
		Name:    "lint",
		Command: opts.Binary,
		Args:    toolArgs("lint", in, opts, lintDir),
		Timeout: opts.Timeout,
	}
	procRes, err := step.Run(ctx)
	if err != nil || !procRes.Ok() {
		logger.Warnw("lint invocation failed, falling back to generation report",
			logger.FieldStage, StageName,
			logger.FieldExitCode, procRes.ExitCode)
		return "", false
	}

	lintReport := filepath.Join(lintDir, LintReportArtifact)
	if _, statErr := os.Stat(lintReport); statErr != nil {
		logger.Warnw("lint produced no report, falling back to generation report",
			logger.FieldStage, StageName,
			logger.FieldPath, lintReport)
		return "", false
	}
	return lintReport, true
}

// toolArgs builds the tool command line: subcommand, inputs, then flags.
func toolArgs(subcommand string, in Inputs, opts Options, outDir string) []string {
	args := []string{subcommand, in.MappingPath, in.TablePath}
	args = append(args, in.MetadataPaths...)
	args = append(args, "--output="+outDir)
	if opts.Resolution != "" {
		args = append(args, "--resolution="+opts.Resolution)
	}
	if opts.ExistenceChecks {
		args = append(args, "--existence-checks")
	}
	return append(args, opts.ExtraArgs...)
}

// failureFinding maps a failed process result to its stage finding. Timeouts
// and cancellation keep their own codes so the run report names the real
// cause.
func failureFinding(procRes extproc.Result) types.Finding {
	f := types.Finding{
		Code:     CodeGenerationFailed,
		Severity: types.SeverityBlocking,
	}
	switch {
	case procRes.TimedOut:
		f.Code = types.CodeRunTimeout
		f.Message = "generation tool timed out"
	case procRes.Cancelled:
		f.Code = types.CodeRunCancelled
		f.Message = "generation run was cancelled"
	default:
		f.Message = fmt.Sprintf("generation tool exited with code %d", procRes.ExitCode)
	}
	return f
}
