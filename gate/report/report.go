// Package report assembles and persists the result document: the ordered
// record of every finding and rule outcome a run produced, plus the overall
// verdict. The document exists from run start (seeded empty with verdict
// FAIL) so downstream consumers never see a run without an artifact.
package report

import (
	"time"

	"github.com/tablegate/tablegate/gate/types"
)

const StageName = "REPORT"

// Aggregate builds the result document from the accumulated stage results
// and rule outcomes, already reclassified. Records keep stage-execution
// order; the verdict is FAIL iff any record is blocking.
func Aggregate(dataset, runID, sourceCommit string, startedAt, finishedAt time.Time, results []types.StageResult, outcomes []types.RuleOutcome) types.ResultDocument {
	records := make([]types.Record, 0, len(results)+len(outcomes))
	for _, res := range results {
		records = append(records, stageRecords(res)...)
	}
	for i := range outcomes {
		outcome := outcomes[i]
		records = append(records, types.Record{
			Kind:    types.RecordKindOutcome,
			Stage:   "VALIDATE",
			Status:  string(outcome.Status),
			Outcome: &outcome,
		})
	}

	doc := types.ResultDocument{
		SchemaVersion: types.ResultSchemaVersion,
		Dataset:       dataset,
		RunID:         runID,
		Verdict:       types.VerdictPass,
		SourceCommit:  sourceCommit,
		StartedAt:     startedAt.UTC(),
		FinishedAt:    finishedAt.UTC(),
		Records:       records,
	}
	for _, rec := range records {
		if rec.Blocking() {
			doc.Verdict = types.VerdictFail
			break
		}
	}
	return doc
}

// stageRecords expands a stage result into records. Passed stages contribute
// only their findings (advisory observations); failed stages always
// contribute at least one record so the document names every failure.
func stageRecords(res types.StageResult) []types.Record {
	var records []types.Record
	for i := range res.Findings {
		finding := res.Findings[i]
		severity := finding.Severity
		if severity == "" {
			severity = res.Severity
		}
		status := string(res.Status)
		if res.Status == types.StatusFailed && severity == types.SeverityAdvisory && res.Severity == types.SeverityBlocking {
			// A blocking stage can carry advisory findings alongside its
			// blockers; those findings did not fail anything themselves.
			status = string(types.StatusPassed)
		}
		records = append(records, types.Record{
			Kind:     types.RecordKindFinding,
			Stage:    res.Stage,
			Status:   status,
			Severity: severity,
			Finding:  &finding,
		})
	}

	if res.Status == types.StatusFailed && len(res.Findings) == 0 {
		finding := types.Finding{
			Code:    "STAGE_ERROR",
			Message: res.Err,
		}
		records = append(records, types.Record{
			Kind:     types.RecordKindFinding,
			Stage:    res.Stage,
			Status:   string(res.Status),
			Severity: res.Severity,
			Finding:  &finding,
		})
	}
	return records
}
