// Package gate is the pipeline controller: it walks a fixed stage sequence
// over one dataset import, commits each stage's result exactly once, and
// guarantees a result document whatever happens. Stage semantics live in the
// stage packages; this package owns only ordering, abort, and the run dir.
package gate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"

	"github.com/tablegate/tablegate/config"
	"github.com/tablegate/tablegate/errors"
	"github.com/tablegate/tablegate/gate/generate"
	"github.com/tablegate/tablegate/gate/overrides"
	"github.com/tablegate/tablegate/gate/preflight"
	"github.com/tablegate/tablegate/gate/reconcile"
	"github.com/tablegate/tablegate/gate/report"
	"github.com/tablegate/tablegate/gate/review"
	"github.com/tablegate/tablegate/gate/rules"
	"github.com/tablegate/tablegate/gate/tabular"
	"github.com/tablegate/tablegate/gate/types"
	"github.com/tablegate/tablegate/gate/validate"
	"github.com/tablegate/tablegate/logger"
)

// Inputs identifies one import to gate.
type Inputs struct {
	Dataset string

	// Mapping, Table, Metadata are the files under review.
	Mapping  string
	Table    string
	Metadata []string

	// Differ is an optional prior-vs-current differ artifact from an earlier
	// import; empty means first-import mode and the engine receives the
	// canonical empty placeholder instead.
	Differ string

	// Rules is the filtered rule configuration; nil skips rule evaluation.
	Rules *rules.Config

	// SourceCommit records the input repository commit, when known.
	SourceCommit string
}

// RunContext accumulates everything a run produces. Stages receive narrow
// inputs; only the controller reads and writes this.
type RunContext struct {
	Dataset   string
	RunID     string
	RunDir    string
	Inputs    Inputs
	StartedAt time.Time

	Results  []types.StageResult
	Outcomes []types.RuleOutcome
	Failure  *report.Failure

	// Table is parsed once at QUALITY and shared with SCHEMA_REVIEW.
	Table *tabular.Table

	// Artifacts are populated at GENERATE.
	Artifacts generate.Artifacts
}

// commit appends a stage result and, for the first blocking failure, derives
// the failure sidecar. Later failures never overwrite it: the sidecar names
// the root cause.
func (rc *RunContext) commit(res types.StageResult) {
	rc.Results = append(rc.Results, res)
	if res.Blocking() && rc.Failure == nil {
		f := report.FailureFor(res)
		rc.Failure = &f
	}
}

// Outcome is what a finished run reports back to the caller.
type Outcome struct {
	RunID      string
	RunDir     string
	Verdict    types.Verdict
	Document   types.ResultDocument
	FinalState State

	// Failure is the root-cause sidecar, nil when the run passed.
	Failure *report.Failure
}

// Passed reports whether the run's verdict allows the import through.
func (o *Outcome) Passed() bool {
	return o.Verdict == types.VerdictPass
}

type stageFunc func(ctx context.Context, rc *RunContext) types.StageResult

// Runner executes gate runs against one configuration.
type Runner struct {
	cfg      *config.Config
	warnOnly *overrides.Table

	// toolBinary is the resolved generation tool; empty skips generation and
	// everything downstream of it.
	toolBinary string

	stages map[State]stageFunc
}

// NewRunner wires the standard stage implementations. toolBinary is the
// already-fetched generation tool path (see extproc.FetchTool); pass empty
// to run only the pre-generation checks.
func NewRunner(cfg *config.Config, warnOnly *overrides.Table, toolBinary string) *Runner {
	r := &Runner{
		cfg:        cfg,
		warnOnly:   warnOnly,
		toolBinary: toolBinary,
	}
	r.stages = map[State]stageFunc{
		StatePreflight:    r.runPreflight,
		StateQuality:      r.runQuality,
		StateRowVolume:    r.runRowVolume,
		StateSchemaReview: r.runSchemaReview,
		StateGenerate:     r.runGenerate,
		StateValidate:     r.runValidate,
		StateReconcile:    r.runReconcile,
		StateReclassify:   r.runReclassify,
	}
	return r
}

// NewRunID builds a sortable, collision-safe run identifier.
func NewRunID() string {
	return time.Now().UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
}

// Run executes the full pipeline for one import. The returned error covers
// infrastructure problems only (run dir, report write); gate failures are
// expressed through the Outcome's verdict.
func (r *Runner) Run(ctx context.Context, in Inputs) (*Outcome, error) {
	runID := NewRunID()
	runDir := filepath.Join(r.cfg.Paths.OutputDir, in.Dataset, runID)
	if err := os.MkdirAll(runDir, config.DefaultDirPermissions); err != nil {
		return nil, errors.Wrapf(err, "creating run dir %s", runDir)
	}

	rc := &RunContext{
		Dataset:   in.Dataset,
		RunID:     runID,
		RunDir:    runDir,
		Inputs:    in,
		StartedAt: time.Now(),
	}
	if err := report.Seed(runDir, in.Dataset, runID, rc.StartedAt); err != nil {
		return nil, err
	}

	if r.cfg.Gate.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(r.cfg.Gate.TimeoutSeconds)*time.Second)
		defer cancel()
	}
	ctx = logger.WithRunID(logger.WithDataset(ctx, in.Dataset), runID)

	state := nextState[StateInit]
	for state != StateReport {
		if err := ctx.Err(); err != nil {
			res := interruptedResult(state, err)
			rc.commit(res)
			state = StateReport
			break
		}

		logger.FromContext(ctx).Infow("entering stage", logger.FieldState, string(state))
		res := r.stages[state](ctx, rc)
		rc.commit(res)
		state = transition(state, res)
	}

	return r.finish(rc)
}

// finish aggregates, emits, and mirrors. Always runs, even for aborts.
func (r *Runner) finish(rc *RunContext) (*Outcome, error) {
	doc := report.Aggregate(rc.Dataset, rc.RunID, rc.Inputs.SourceCommit,
		rc.StartedAt, time.Now(), rc.Results, rc.Outcomes)
	if err := report.Emit(doc, rc.RunDir); err != nil {
		return nil, err
	}

	if rc.Failure == nil && doc.Verdict == types.VerdictFail {
		rc.Failure = rulesFailure(rc.Outcomes)
	}
	if rc.Failure != nil {
		if err := report.EmitFailure(*rc.Failure, rc.RunDir); err != nil {
			return nil, err
		}
	}

	datasetDir := filepath.Join(r.cfg.Paths.OutputDir, rc.Dataset)
	if err := report.MirrorLatest(rc.RunDir, datasetDir); err != nil {
		logger.Warnw("could not update latest mirror",
			logger.FieldPath, datasetDir,
			logger.FieldError, err.Error())
	}

	logger.Infow("run finished",
		logger.FieldRunID, rc.RunID,
		logger.FieldDataset, rc.Dataset,
		logger.FieldVerdict, string(doc.Verdict))
	return &Outcome{
		RunID:      rc.RunID,
		RunDir:     rc.RunDir,
		Verdict:    doc.Verdict,
		Document:   doc,
		FinalState: StateDone,
		Failure:    rc.Failure,
	}, nil
}

// rulesFailure derives the sidecar when the verdict failed on rule outcomes
// alone, without any blocking stage result.
func rulesFailure(outcomes []types.RuleOutcome) *report.Failure {
	f := &report.Failure{
		Code:  types.CodeRulesFailed,
		Stage: validate.StageName,
	}
	for _, o := range outcomes {
		if o.Status == types.OutcomeFailed {
			f.Message = fmt.Sprintf("rule %s failed: %s", o.RuleID, o.Detail)
			break
		}
	}
	return f
}

// interruptedResult maps a dead context to a blocking result for the stage
// that never got to run.
func interruptedResult(state State, err error) types.StageResult {
	code := types.CodeRunCancelled
	msg := "run was cancelled"
	if errors.Is(err, context.DeadlineExceeded) {
		code = types.CodeRunTimeout
		msg = "run exceeded its wall-clock timeout"
	}
	return types.StageResult{
		Stage:    string(state),
		Status:   types.StatusFailed,
		Severity: types.SeverityBlocking,
		Findings: []types.Finding{{
			Code:     code,
			Message:  msg,
			Severity: types.SeverityBlocking,
		}},
	}
}

func (r *Runner) runPreflight(_ context.Context, rc *RunContext) types.StageResult {
	return preflight.Check(preflight.Inputs{
		Mapping:  rc.Inputs.Mapping,
		Table:    rc.Inputs.Table,
		Metadata: rc.Inputs.Metadata,
	})
}

func (r *Runner) runQuality(_ context.Context, rc *RunContext) types.StageResult {
	table, err := tabular.ReadTable(rc.Inputs.Table)
	if err != nil {
		return types.StageResult{
			Stage:    tabular.QualityStageName,
			Status:   types.StatusFailed,
			Severity: types.SeverityBlocking,
			Err:      err.Error(),
		}
	}
	rc.Table = table
	return tabular.CheckQuality(table, tabular.QualityOptions{
		ValueColumn:          r.cfg.Gate.ValueColumn,
		EmptyColumnsAdvisory: r.cfg.Gate.EmptyColumnsAdvisory,
	})
}

// runRowVolume pre-consults the warn-only table: a listed dataset keeps the
// finding but the breach no longer aborts the run.
func (r *Runner) runRowVolume(_ context.Context, rc *RunContext) types.StageResult {
	res := tabular.CheckRowVolume(rc.Inputs.Table, r.cfg.Gate.RowLimit)
	if res.Blocking() && r.warnOnly.Contains(rc.Dataset, tabular.RowCountRuleID) {
		res.ReclassifiedFrom = string(res.Severity)
		res.Severity = types.SeverityAdvisory
		logger.Infow("row volume breach downgraded by warn-only override",
			logger.FieldDataset, rc.Dataset,
			logger.FieldRuleID, tabular.RowCountRuleID)
	}
	return res
}

func (r *Runner) runSchemaReview(ctx context.Context, rc *RunContext) types.StageResult {
	var reviewer review.Reviewer
	if r.cfg.Review.Enabled && r.cfg.Review.Command != "" {
		reviewer = &review.CommandReviewer{
			Command: r.cfg.Review.Command,
			Timeout: time.Duration(r.cfg.Review.TimeoutSeconds) * time.Second,
		}
	}
	return review.Run(ctx, review.Inputs{
		MappingPath:   rc.Inputs.Mapping,
		MetadataPaths: rc.Inputs.Metadata,
		Table:         rc.Table,
	}, review.Options{
		Reviewer: reviewer,
		Advisory: r.cfg.Review.Advisory,
	})
}

func (r *Runner) runGenerate(ctx context.Context, rc *RunContext) types.StageResult {
	if r.toolBinary == "" {
		logger.Infow("no generation tool configured, skipping generation and validation",
			logger.FieldStage, generate.StageName)
		return types.StageResult{
			Stage:    generate.StageName,
			Status:   types.StatusSkipped,
			Severity: types.SeverityBlocking,
		}
	}

	extraArgs, err := splitExtraArgs(r.cfg.Tool.ExtraArgs)
	if err != nil {
		return types.StageResult{
			Stage:    generate.StageName,
			Status:   types.StatusFailed,
			Severity: types.SeverityBlocking,
			Err:      err.Error(),
		}
	}

	artifacts, res := generate.Run(ctx, generate.Inputs{
		MappingPath:   rc.Inputs.Mapping,
		TablePath:     rc.Inputs.Table,
		MetadataPaths: rc.Inputs.Metadata,
	}, generate.Options{
		Binary:          r.toolBinary,
		RunDir:          rc.RunDir,
		Resolution:      r.cfg.Tool.Resolution,
		ExistenceChecks: r.cfg.Tool.ExistenceChecks,
		ExtraArgs:       extraArgs,
	})
	rc.Artifacts = artifacts
	return res
}

func (r *Runner) runValidate(ctx context.Context, rc *RunContext) types.StageResult {
	if rc.Inputs.Rules == nil || len(rc.Inputs.Rules.Rules) == 0 || rc.Artifacts.SummaryPath == "" {
		return types.StageResult{
			Stage:    validate.StageName,
			Status:   types.StatusSkipped,
			Severity: types.SeverityBlocking,
		}
	}

	engineCommand := strings.TrimSpace(r.cfg.Engine.Command + " " + r.cfg.Engine.ExtraArgs)
	outcomes, res := validate.Run(ctx, validate.Inputs{
		Rules:       rc.Inputs.Rules,
		SummaryPath: rc.Artifacts.SummaryPath,
		ReportPath:  rc.Artifacts.RuleReportPath,
		DifferPath:  rc.Inputs.Differ,
	}, validate.Options{
		EngineCommand: engineCommand,
		RunDir:        rc.RunDir,
		Timeout:       time.Duration(r.cfg.Engine.TimeoutSeconds) * time.Second,
	})
	rc.Outcomes = outcomes
	return res
}

func (r *Runner) runReconcile(_ context.Context, rc *RunContext) types.StageResult {
	return reconcile.Run(rc.Artifacts.SummaryPath, rc.Artifacts.ReportPath)
}

// runReclassify is the single post-hoc rewrite point: after it, the verdict
// computation sees final statuses only.
func (r *Runner) runReclassify(_ context.Context, rc *RunContext) types.StageResult {
	rc.Outcomes = r.warnOnly.ReclassifyOutcomes(rc.Dataset, rc.Outcomes)
	rc.Results = r.warnOnly.ReclassifyResults(rc.Dataset, rc.Results)
	return types.StageResult{
		Stage:    overrides.StageName,
		Status:   types.StatusPassed,
		Severity: types.SeverityAdvisory,
	}
}

func splitExtraArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	args, err := shellquote.Split(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing extra arguments %q", raw)
	}
	return args, nil
}
