// Package types holds the shared data model of the import gate: findings,
// stage results, rule outcomes, and the final result document. Values are
// created once and treated as immutable; the only sanctioned rewrite is the
// warn-only reclassification, which produces new values carrying an audit
// note of the original status.
package types

import "time"

// Status is the completion status of a pipeline stage.
type Status string

const (
	StatusPassed  Status = "PASSED"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
)

// Severity classifies how a failed stage affects the run: blocking failures
// abort the pipeline, advisory ones are surfaced and carried forward.
type Severity string

const (
	SeverityBlocking Severity = "BLOCKING"
	SeverityAdvisory Severity = "ADVISORY"
)

// OutcomeStatus is the status of a single rule outcome.
type OutcomeStatus string

const (
	OutcomePassed  OutcomeStatus = "PASSED"
	OutcomeFailed  OutcomeStatus = "FAILED"
	OutcomeWarning OutcomeStatus = "WARNING"
)

// Verdict is the overall pass/fail result of a run.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

// Finding is one concrete violation or observation reported by a stage.
type Finding struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	Limit    *int     `json:"limit,omitempty"`
	Severity Severity `json:"severity,omitempty"` // Per-finding severity where a stage mixes blocking and advisory findings
}

// StageResult is the committed outcome of one pipeline stage.
type StageResult struct {
	Stage    string    `json:"stage"`
	Status   Status    `json:"status"`
	Severity Severity  `json:"severity"`
	RuleID   string    `json:"rule_id,omitempty"` // Set when the stage is governed by a dataset-scoped override id
	Findings []Finding `json:"findings,omitempty"`
	Err      string    `json:"error,omitempty"`

	// ReclassifiedFrom records the original status when the warn-only
	// mechanism downgraded this result. Empty for untouched results.
	ReclassifiedFrom string `json:"reclassified_from,omitempty"`
}

// Blocking reports whether this result must abort the pipeline.
func (r StageResult) Blocking() bool {
	return r.Status == StatusFailed && r.Severity == SeverityBlocking
}

// RuleOutcome is one record produced by the rule-evaluation engine or a local
// validator.
type RuleOutcome struct {
	RuleID  string                 `json:"validation_name"`
	Status  OutcomeStatus          `json:"status"`
	Detail  string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Params  map[string]interface{} `json:"validation_params,omitempty"`

	// ReclassifiedFrom records the original status when the warn-only
	// mechanism downgraded this outcome. Empty for untouched outcomes.
	ReclassifiedFrom string `json:"reclassified_from,omitempty"`
}

// Record kinds in a ResultDocument.
const (
	RecordKindFinding = "finding"
	RecordKindOutcome = "rule_outcome"
)

// Record is one entry of the result document: either a stage finding or a
// rule outcome, in stage-execution order.
type Record struct {
	Kind     string       `json:"kind"`
	Stage    string       `json:"stage,omitempty"`
	Status   string       `json:"status"`
	Severity Severity     `json:"severity,omitempty"`
	Finding  *Finding     `json:"finding,omitempty"`
	Outcome  *RuleOutcome `json:"outcome,omitempty"`
}

// Blocking reports whether this record counts toward a FAIL verdict.
func (r Record) Blocking() bool {
	switch r.Kind {
	case RecordKindFinding:
		return r.Status == string(StatusFailed) && r.Severity == SeverityBlocking
	case RecordKindOutcome:
		return r.Status == string(OutcomeFailed)
	}
	return false
}

// ResultDocument is the persisted artifact of one run: every finding and rule
// outcome in stage-execution order plus the derived overall verdict.
type ResultDocument struct {
	SchemaVersion string    `json:"schema_version"`
	Dataset       string    `json:"dataset"`
	RunID         string    `json:"run_id"`
	Verdict       Verdict   `json:"verdict"`
	SourceCommit  string    `json:"source_commit,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Records       []Record  `json:"records"`
}

// ResultSchemaVersion identifies the results.json layout.
const ResultSchemaVersion = "1.0"

// Failure codes recorded when a run aborts. The first structured failure
// wins: the sidecar names the root cause, never a downstream symptom.
const (
	CodePreflightFailed      = "PREFLIGHT_FAILED"
	CodeCSVQualityFailed     = "CSV_QUALITY_FAILED"
	CodeRowCountExceeded     = "ROW_COUNT_EXCEEDED"
	CodeSchemaReviewBlocking = "SCHEMA_REVIEW_BLOCKING"
	CodeGenerationFailed     = "GENERATION_FAILED"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeRunTimeout           = "RUN_TIMEOUT"
	CodeRunCancelled         = "RUN_CANCELLED"
	CodeRulesFailed          = "RULES_FAILED"
)

// Counts returns the number of blocking and advisory records.
func (d ResultDocument) Counts() (blocking, advisory int) {
	for _, rec := range d.Records {
		if rec.Blocking() {
			blocking++
			continue
		}
		failed := rec.Status == string(StatusFailed) || rec.Status == string(OutcomeWarning)
		if failed {
			advisory++
		}
	}
	return blocking, advisory
}
