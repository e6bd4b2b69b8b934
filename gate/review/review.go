// Package review implements the schema review stage: deterministic checks
// over the mapping and metadata files, optionally augmented by an external
// reviewer process. Blocking findings stop the pipeline before any
// generation work runs.
package review

import (
	"context"
	"fmt"
	"os"

	"github.com/tablegate/tablegate/gate/tabular"
	"github.com/tablegate/tablegate/gate/types"
	"github.com/tablegate/tablegate/logger"
)

const StageName = "SCHEMA_REVIEW"

// Finding codes emitted by the deterministic checks.
const (
	CodeUnknownColumn      = "UNKNOWN_COLUMN"
	CodeUnusedColumn       = "UNUSED_COLUMN"
	CodeValueNotMapped     = "VALUE_NOT_MAPPED"
	CodeDateFormat         = "DATE_FORMAT"
	CodeVariableNaming     = "VARIABLE_NAMING"
	CodeMetadataIncomplete = "METADATA_INCOMPLETE"
	CodeMissingDenominator = "MISSING_DENOMINATOR"
	CodeUndefinedVariable  = "UNDEFINED_VARIABLE"
	CodeReviewerFailed     = "REVIEWER_FAILED"
)

// findingCap bounds the stage's total finding count so a pathological
// mapping cannot flood the result document.
const findingCap = 25

// Inputs carries everything schema review needs.
type Inputs struct {
	MappingPath   string
	MetadataPaths []string

	// Table is the parsed data table, used for header cross-checks. May be
	// nil when the table could not be read, in which case header-dependent
	// checks are skipped.
	Table *tabular.Table
}

// Options controls stage behavior.
type Options struct {
	// Reviewer is the optional external reviewer. Nil disables it.
	Reviewer Reviewer

	// Advisory downgrades reviewer findings to advisory. Deterministic
	// blockers and reviewer process failures stay blocking regardless.
	Advisory bool
}

// Run executes the schema review stage.
func Run(ctx context.Context, in Inputs, opts Options) types.StageResult {
	res := types.StageResult{
		Stage:    StageName,
		Status:   types.StatusPassed,
		Severity: types.SeverityBlocking,
	}

	mapping, err := os.ReadFile(in.MappingPath)
	if err != nil {
		res.Status = types.StatusFailed
		res.Err = fmt.Sprintf("reading mapping file: %v", err)
		return res
	}
	content := string(mapping)

	var header []string
	var rows [][]string
	if in.Table != nil {
		header = in.Table.Header
		rows = in.Table.Rows
	}

	var findings []types.Finding
	findings = append(findings, checkUnknownColumns(content, in.MappingPath, header)...)
	findings = append(findings, checkUnusedColumns(content, in.MappingPath, header)...)
	findings = append(findings, checkValueMapped(content, in.MappingPath)...)
	findings = append(findings, checkDateLiterals(content, in.MappingPath)...)
	findings = append(findings, checkVariableNaming(content, in.MappingPath, header, rows)...)

	var metadataContents []string
	for _, path := range in.MetadataPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			res.Status = types.StatusFailed
			res.Err = fmt.Sprintf("reading metadata file: %v", err)
			return res
		}
		metadataContents = append(metadataContents, string(data))
		findings = append(findings, checkMetadataCompleteness(string(data), path)...)
		findings = append(findings, checkMissingDenominator(string(data), path)...)
	}
	if len(in.MetadataPaths) > 0 {
		defined := definedVariableSet(metadataContents)
		findings = append(findings, checkUndefinedVariables(content, header, rows, defined, in.MetadataPaths[0])...)
	}

	if opts.Reviewer != nil {
		reviewerFindings, err := opts.Reviewer.Review(ctx, in)
		if err != nil {
			// A broken reviewer must not silently wave imports through.
			logger.Errorw("schema reviewer failed",
				logger.FieldStage, StageName,
				logger.FieldError, err.Error())
			findings = append(findings, types.Finding{
				Code:     CodeReviewerFailed,
				Message:  fmt.Sprintf("schema reviewer failed: %v", err),
				Severity: types.SeverityBlocking,
			})
		} else {
			if opts.Advisory {
				for i := range reviewerFindings {
					reviewerFindings[i].Severity = types.SeverityAdvisory
				}
			}
			findings = append(findings, reviewerFindings...)
		}
	}

	findings = capFindings(dedupe(findings))
	res.Findings = findings

	for _, f := range findings {
		if f.Severity == types.SeverityBlocking {
			res.Status = types.StatusFailed
			break
		}
	}

	logger.Infow("schema review complete",
		logger.FieldStage, StageName,
		logger.FieldCount, len(findings),
		"status", res.Status)
	return res
}

// capFindings bounds the finding list at findingCap without ever dropping a
// blocker: every blocking finding is kept, advisory findings fill whatever
// slots remain, in order. A list with more blockers than the cap keeps them
// all.
func capFindings(findings []types.Finding) []types.Finding {
	if len(findings) <= findingCap {
		return findings
	}
	blockers := 0
	for _, f := range findings {
		if f.Severity == types.SeverityBlocking {
			blockers++
		}
	}
	advisoryBudget := findingCap - blockers
	out := make([]types.Finding, 0, findingCap)
	for _, f := range findings {
		if f.Severity == types.SeverityBlocking {
			out = append(out, f)
			continue
		}
		if advisoryBudget > 0 {
			out = append(out, f)
			advisoryBudget--
		}
	}
	return out
}

// dedupe drops repeat findings, keyed by code, message, and file. Order is
// preserved so blockers from the deterministic checks stay first.
func dedupe(findings []types.Finding) []types.Finding {
	type key struct {
		code, message, file string
	}
	seen := make(map[key]bool, len(findings))
	out := findings[:0]
	for _, f := range findings {
		k := key{f.Code, f.Message, f.File}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, f)
	}
	return out
}
