// Package validate invokes the rule-evaluation engine over the summary and
// report artifacts, evaluates local validators in-process, and combines both
// into a single ordered outcome list.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tablegate/tablegate/errors"
	"github.com/tablegate/tablegate/extproc"
	"github.com/tablegate/tablegate/gate/rules"
	"github.com/tablegate/tablegate/gate/types"
	"github.com/tablegate/tablegate/logger"
)

const StageName = "VALIDATE"

// Validator names with special handling.
const (
	// ValidatorStructuralLint is evaluated in-process against the structured
	// report rather than by the engine.
	ValidatorStructuralLint = "structural_lint_error_count"

	// ValidatorLintErrorCount is never sent to the engine; it belongs to the
	// lint tooling, not the statistical engine.
	ValidatorLintErrorCount = "lint_error_count"
)

// Artifacts written into the run dir before invoking the engine.
const (
	EngineConfigArtifact      = "validation_config.json"
	EngineOutputArtifact      = "validation_output.json"
	NormalizedSummaryArtifact = "summary_stats_normalized.csv"
	DifferPlaceholderArtifact = "differ_output.csv"
)

// differPlaceholderHeader is the canonical empty differ artifact: first-time
// imports have no prior data to diff against.
const differPlaceholderHeader = "diff_type,variable,entity,date,prior_value,current_value\n"

// Inputs for the validation stage.
type Inputs struct {
	// Rules is the filtered rule configuration, disabled rules included.
	Rules *rules.Config

	// SummaryPath is the summary statistics artifact.
	SummaryPath string

	// ReportPath is the structured report rule evaluation reads.
	ReportPath string

	// DifferPath is the prior-vs-current differ artifact; empty means absent
	// and triggers the placeholder.
	DifferPath string
}

// Options configures the engine invocation.
type Options struct {
	// EngineCommand is the shell-quoted engine command line.
	EngineCommand string

	// RunDir receives the engine config, normalized summary, placeholder,
	// and output document.
	RunDir string

	// Timeout bounds the invocation. Zero defers to the caller's context.
	Timeout time.Duration
}

// Run executes the stage. On success the returned outcomes hold the engine
// outcomes in engine order followed by local validator outcomes in config
// order.
func Run(ctx context.Context, in Inputs, opts Options) ([]types.RuleOutcome, types.StageResult) {
	res := types.StageResult{
		Stage:    StageName,
		Status:   types.StatusPassed,
		Severity: types.SeverityBlocking,
	}

	engineRules, localRules := splitRules(in.Rules)

	differPath := in.DifferPath
	if differPath == "" {
		placeholder := filepath.Join(opts.RunDir, DifferPlaceholderArtifact)
		if err := os.WriteFile(placeholder, []byte(differPlaceholderHeader), 0o644); err != nil {
			return nil, failed(res, types.CodeValidationFailed, fmt.Sprintf("writing differ placeholder: %v", err))
		}
		differPath = placeholder
	}

	summaryPath := in.SummaryPath
	if summaryPath != "" {
		normalized := filepath.Join(opts.RunDir, NormalizedSummaryArtifact)
		if err := normalizeSummaryDates(summaryPath, normalized); err != nil {
			return nil, failed(res, types.CodeValidationFailed, fmt.Sprintf("normalizing summary dates: %v", err))
		}
		summaryPath = normalized
	}

	var outcomes []types.RuleOutcome
	if len(engineRules.Rules) > 0 {
		engineOutcomes, finding := runEngine(ctx, engineRules, summaryPath, differPath, in.ReportPath, opts)
		if finding != nil {
			res.Status = types.StatusFailed
			res.Findings = []types.Finding{*finding}
			return nil, res
		}
		outcomes = engineOutcomes
	}

	for _, rule := range localRules {
		outcomes = append(outcomes, evaluateStructuralLint(rule, in.ReportPath))
	}

	logger.Infow("validation complete",
		logger.FieldStage, StageName,
		logger.FieldCount, len(outcomes))
	return outcomes, res
}

func failed(res types.StageResult, code, msg string) types.StageResult {
	res.Status = types.StatusFailed
	res.Findings = []types.Finding{{
		Code:     code,
		Message:  msg,
		Severity: types.SeverityBlocking,
	}}
	return res
}

// splitRules partitions the enabled rules: everything destined for the
// engine, and the locally evaluated structural lint rules. Disabled rules
// are dropped entirely. Lint-count rules bound for neither evaluator are
// logged and skipped.
func splitRules(cfg *rules.Config) (engine *rules.Config, local []rules.Rule) {
	engine = &rules.Config{SchemaVersion: cfg.SchemaVersion}
	for _, rule := range cfg.Rules {
		if !rule.IsEnabled() {
			continue
		}
		switch rule.Validator {
		case ValidatorStructuralLint:
			local = append(local, rule)
		case ValidatorLintErrorCount:
			logger.Debugw("skipping lint-count rule, not an engine validator",
				logger.FieldRuleID, rule.RuleID)
		default:
			engine.Rules = append(engine.Rules, rule)
		}
	}
	return engine, local
}

// runEngine writes the engine config, invokes the engine, and reads back its
// outcome document. A nil finding means success.
func runEngine(ctx context.Context, engineRules *rules.Config, summaryPath, differPath, reportPath string, opts Options) ([]types.RuleOutcome, *types.Finding) {
	configPath := filepath.Join(opts.RunDir, EngineConfigArtifact)
	if err := rules.Write(engineRules, configPath); err != nil {
		return nil, blockingFinding(types.CodeValidationFailed, fmt.Sprintf("writing engine config: %v", err))
	}

	binary, baseArgs, err := extproc.SplitCommand(opts.EngineCommand)
	if err != nil {
		return nil, blockingFinding(types.CodeValidationFailed, err.Error())
	}

	step := extproc.Step{
		Name:    "validation-engine",
		Command: binary,
		Args: append(baseArgs,
			"--config="+configPath,
			"--summary="+summaryPath,
			"--report="+reportPath,
			"--differ="+differPath,
			"--output="+opts.RunDir,
		),
		Timeout: opts.Timeout,
	}
	procRes, err := step.Run(ctx)
	if err != nil {
		return nil, blockingFinding(types.CodeValidationFailed, err.Error())
	}
	if !procRes.Ok() {
		switch {
		case procRes.TimedOut:
			return nil, blockingFinding(types.CodeRunTimeout, "validation engine timed out")
		case procRes.Cancelled:
			return nil, blockingFinding(types.CodeRunCancelled, "validation run was cancelled")
		}
		return nil, blockingFinding(types.CodeValidationFailed,
			fmt.Sprintf("validation engine exited with code %d", procRes.ExitCode))
	}

	outcomes, err := readOutcomes(filepath.Join(opts.RunDir, EngineOutputArtifact))
	if err != nil {
		return nil, blockingFinding(types.CodeValidationFailed, err.Error())
	}
	if len(outcomes) < len(engineRules.Rules) {
		return nil, blockingFinding(types.CodeValidationFailed,
			fmt.Sprintf("engine returned %d outcomes for %d rules", len(outcomes), len(engineRules.Rules)))
	}
	return outcomes, nil
}

func blockingFinding(code, msg string) *types.Finding {
	return &types.Finding{
		Code:     code,
		Message:  msg,
		Severity: types.SeverityBlocking,
	}
}

// readOutcomes reads the engine output document. Missing or empty files read
// as an empty list; the rule-count check catches a silent engine.
func readOutcomes(path string) ([]types.RuleOutcome, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading engine output")
	}
	if len(data) == 0 {
		return nil, nil
	}
	var outcomes []types.RuleOutcome
	if err := json.Unmarshal(data, &outcomes); err != nil {
		return nil, errors.Wrapf(err, "parsing engine output %s", path)
	}
	return outcomes, nil
}
