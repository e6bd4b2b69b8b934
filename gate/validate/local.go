package validate

import (
	"fmt"

	"github.com/tablegate/tablegate/gate/generate"
	"github.com/tablegate/tablegate/gate/rules"
	"github.com/tablegate/tablegate/gate/types"
)

// existenceCheckPrefix marks counters from remote existence lookups. Those
// failures are environmental (endpoint availability), not structural problems
// with the import, so the structural count excludes them.
const existenceCheckPrefix = "Existence_FailedDcCall_"

// evaluateStructuralLint counts the structured report's error-level counters,
// excluding existence-check failures, and compares against the rule's
// threshold (default 0).
func evaluateStructuralLint(rule rules.Rule, reportPath string) types.RuleOutcome {
	outcome := types.RuleOutcome{
		RuleID: rule.RuleID,
		Status: types.OutcomePassed,
		Params: rule.Params,
	}

	if reportPath == "" {
		outcome.Detail = "no structured report available (skip check)"
		return outcome
	}
	report, err := generate.LoadReport(reportPath)
	if err != nil {
		outcome.Status = types.OutcomeFailed
		outcome.Detail = err.Error()
		return outcome
	}

	threshold := thresholdParam(rule.Params)
	count := report.SumCounters(generate.LevelError, existenceCheckPrefix)
	if count > threshold {
		outcome.Status = types.OutcomeFailed
		outcome.Detail = fmt.Sprintf("structural lint error count %d exceeds threshold %d", count, threshold)
	} else {
		outcome.Detail = fmt.Sprintf("structural lint error count %d within threshold %d", count, threshold)
	}
	return outcome
}

// thresholdParam reads params.threshold, tolerating the numeric types JSON
// decoding produces.
func thresholdParam(params map[string]interface{}) int64 {
	switch v := params["threshold"].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	}
	return 0
}
