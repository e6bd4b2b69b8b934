// Package reconcile cross-checks the summary artifact against the generation
// report: every observation row the summary counts should correspond to a
// successfully generated node. A mismatch means the tool silently dropped
// data, which is worth surfacing but never worth failing a run over.
package reconcile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tablegate/tablegate/gate/generate"
	"github.com/tablegate/tablegate/gate/types"
	"github.com/tablegate/tablegate/logger"
)

const StageName = "RECONCILE"

const CodeCounterMismatch = "COUNTER_MISMATCH"

// Counter names compared against each other.
const (
	summaryCounterColumn = "NumObservations"
	reportCounterName    = "NumNodeSuccesses"
)

// Run compares the summary's observation total with the generation report's
// node-success counter. The report must come from the same tool invocation
// as the summary; lint reports resolve nodes differently and would produce
// false mismatches.
func Run(summaryPath, reportPath string) types.StageResult {
	res := types.StageResult{
		Stage:    StageName,
		Status:   types.StatusPassed,
		Severity: types.SeverityAdvisory,
	}

	if summaryPath == "" || reportPath == "" {
		logger.Debugw("reconciliation inputs missing, skipping",
			logger.FieldStage, StageName)
		res.Status = types.StatusSkipped
		return res
	}

	report, err := generate.LoadReport(reportPath)
	if err != nil {
		res.Status = types.StatusFailed
		res.Err = err.Error()
		return res
	}
	expected, ok := report.Counter(generate.LevelInfo, reportCounterName)
	if !ok {
		// Older tool versions do not emit the counter; absence is not
		// evidence of a problem.
		logger.Infow("NumNodeSuccesses not in report (skip check)",
			logger.FieldStage, StageName)
		return res
	}

	actual, err := sumObservations(summaryPath)
	if err != nil {
		res.Status = types.StatusFailed
		res.Err = err.Error()
		return res
	}

	if actual != expected {
		res.Status = types.StatusFailed
		res.Findings = []types.Finding{{
			Code:     CodeCounterMismatch,
			Message:  fmt.Sprintf("NumObservations sum (%d) != NumNodeSuccesses (%d)", actual, expected),
			Severity: types.SeverityAdvisory,
		}}
		logger.Warnw("counter mismatch between summary and report",
			logger.FieldStage, StageName,
			"num_observations", actual,
			"num_node_successes", expected)
	}
	return res
}

// sumObservations totals the NumObservations column of the summary artifact.
// Cells that do not parse as integers are skipped.
func sumObservations(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	col := -1
	for i, name := range header {
		if strings.TrimSpace(name) == summaryCounterColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return 0, nil
	}

	var sum int64
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return sum, nil
		}
		if err != nil {
			return 0, err
		}
		if col >= len(row) {
			continue
		}
		if v, parseErr := strconv.ParseInt(strings.TrimSpace(row[col]), 10, 64); parseErr == nil {
			sum += v
		}
	}
}
