package tabular

import (
	"fmt"

	"github.com/tablegate/tablegate/gate/types"
)

// RowVolumeStageName identifies the row volume stage.
const RowVolumeStageName = "ROW_VOLUME"

// CodeRowCountExceeded is the finding code for a breached row limit.
const CodeRowCountExceeded = "ROW_COUNT_EXCEEDED"

// RowCountRuleID is the dataset-scoped override id of this check. Row-volume
// limits are deployment policy rather than a data-correctness property, so
// the controller resolves this stage's effective severity against the
// warn-only table instead of a fixed classification.
const RowCountRuleID = "check_row_count"

// CheckRowVolume counts non-blank data rows (header excluded) against limit.
// The returned result is published as blocking; the controller downgrades it
// to advisory when the dataset's warn-only set names RowCountRuleID.
func CheckRowVolume(path string, limit int) types.StageResult {
	count, err := CountDataRows(path)
	if err != nil {
		return types.StageResult{
			Stage:    RowVolumeStageName,
			Status:   types.StatusFailed,
			Severity: types.SeverityBlocking,
			RuleID:   RowCountRuleID,
			Err:      err.Error(),
		}
	}

	if count > limit {
		capped := limit
		return types.StageResult{
			Stage:    RowVolumeStageName,
			Status:   types.StatusFailed,
			Severity: types.SeverityBlocking,
			RuleID:   RowCountRuleID,
			Findings: []types.Finding{{
				Code: CodeRowCountExceeded,
				Message: fmt.Sprintf("input table has %d data rows, which exceeds the sample limit of %d",
					count, limit),
				File:  path,
				Limit: &capped,
			}},
		}
	}

	return types.StageResult{
		Stage:    RowVolumeStageName,
		Status:   types.StatusPassed,
		Severity: types.SeverityBlocking,
		RuleID:   RowCountRuleID,
	}
}
