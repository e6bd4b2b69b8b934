// Package overrides implements the warn-only mechanism: a per-dataset
// document listing rule ids whose failures should be downgraded to warnings.
// Datasets with known, accepted quirks keep importing while the rules stay
// enabled everywhere else.
package overrides

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tablegate/tablegate/errors"
	"github.com/tablegate/tablegate/gate/types"
	"github.com/tablegate/tablegate/logger"
)

const StageName = "RECLASSIFY"

// Table maps dataset id to the set of warn-only rule ids, all normalized by
// trim and lowercase.
type Table struct {
	datasets map[string]map[string]bool
}

// Load reads a warn-only document: a mapping of dataset id to a list of rule
// ids. YAML and JSON both parse (JSON is a YAML subset). A missing path
// returns an empty table.
func Load(path string) (*Table, error) {
	if path == "" {
		return &Table{}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Debugw("warn-only document not found, no overrides active",
			logger.FieldPath, path)
		return &Table{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading warn-only document %s", path)
	}
	return Parse(data)
}

// Parse decodes and normalizes a warn-only document.
func Parse(data []byte) (*Table, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parsing warn-only document")
	}

	t := &Table{datasets: make(map[string]map[string]bool, len(raw))}
	for dataset, ids := range raw {
		set := make(map[string]bool, len(ids))
		for _, id := range ids {
			if norm := normalize(id); norm != "" {
				set[norm] = true
			}
		}
		t.datasets[normalize(dataset)] = set
	}
	return t, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IDs returns the warn-only rule ids for a dataset. Order is unspecified;
// use Contains for membership tests.
func (t *Table) IDs(dataset string) []string {
	if t == nil || t.datasets == nil {
		return nil
	}
	set := t.datasets[normalize(dataset)]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// Contains reports whether the rule id is warn-only for the dataset.
func (t *Table) Contains(dataset, ruleID string) bool {
	if t == nil || t.datasets == nil {
		return false
	}
	return t.datasets[normalize(dataset)][normalize(ruleID)]
}

// ReclassifyOutcomes rewrites FAILED outcomes whose rule id is warn-only for
// the dataset to WARNING, carrying an audit note of the original status. The
// input is not modified.
func (t *Table) ReclassifyOutcomes(dataset string, outcomes []types.RuleOutcome) []types.RuleOutcome {
	out := make([]types.RuleOutcome, len(outcomes))
	copy(out, outcomes)
	for i := range out {
		if out[i].Status == types.OutcomeFailed && t.Contains(dataset, out[i].RuleID) {
			out[i].ReclassifiedFrom = string(out[i].Status)
			out[i].Status = types.OutcomeWarning
			logger.Infow("reclassified rule outcome to warning",
				logger.FieldStage, StageName,
				logger.FieldDataset, dataset,
				logger.FieldRuleID, out[i].RuleID)
		}
	}
	return out
}

// ReclassifyResults downgrades blocking stage results governed by a
// warn-only rule id to advisory.
func (t *Table) ReclassifyResults(dataset string, results []types.StageResult) []types.StageResult {
	out := make([]types.StageResult, len(results))
	copy(out, results)
	for i := range out {
		r := &out[i]
		if r.RuleID != "" && r.Blocking() && t.Contains(dataset, r.RuleID) {
			r.ReclassifiedFrom = string(r.Severity)
			r.Severity = types.SeverityAdvisory
			logger.Infow("reclassified stage result to advisory",
				logger.FieldStage, StageName,
				logger.FieldDataset, dataset,
				logger.FieldRuleID, r.RuleID)
		}
	}
	return out
}
