// Package rules loads, validates, and filters the rule configuration document
// consumed by the rule-evaluation engine. Parsing is strict: unknown keys,
// malformed rule ids, duplicate ids, and unrecognized data sources are all
// rejected on load so a bad configuration never reaches the engine.
package rules

import (
	"encoding/json"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/tablegate/tablegate/errors"
)

// Recognized scope.data_source values.
const (
	SourceStats  = "stats"
	SourceLint   = "lint"
	SourceDiffer = "differ"
)

// ruleIDPattern is snake_case starting with a letter, e.g. check_min_value.
var ruleIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

var (
	requiredRuleKeys = []string{"rule_id", "description", "validator", "scope", "params"}
	optionalRuleKeys = []string{"enabled"}
)

// Scope names the data source a rule evaluates against.
type Scope struct {
	DataSource string `json:"data_source"`
}

// Rule is one entry of the rule configuration.
type Rule struct {
	RuleID      string                 `json:"rule_id"`
	Description string                 `json:"description"`
	Validator   string                 `json:"validator"`
	Scope       Scope                  `json:"scope"`
	Params      map[string]interface{} `json:"params"`
	Enabled     *bool                  `json:"enabled,omitempty"`
}

// IsEnabled reports whether the rule should be evaluated. Defaults to true
// when the enabled key is absent.
func (r Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Config is the full rule configuration document.
type Config struct {
	SchemaVersion string `json:"schema_version,omitempty"`
	Rules         []Rule `json:"rules"`
}

// IDs returns the rule ids in document order.
func (c *Config) IDs() []string {
	ids := make([]string, 0, len(c.Rules))
	for _, r := range c.Rules {
		ids = append(ids, r.RuleID)
	}
	return ids
}

// Load reads and validates a rule configuration from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read rule config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "rule config %s", path)
	}
	return cfg, nil
}

// Parse validates and decodes a rule configuration document. All violations
// are collected so one pass reports every problem.
func Parse(data []byte) (*Config, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "rule config must be a JSON object")
	}

	var problems []string

	if _, ok := raw["rules"]; !ok {
		problems = append(problems, "missing required key 'rules'")
	}
	for key := range raw {
		if key != "rules" && key != "schema_version" {
			problems = append(problems, "unknown top-level key '"+key+"' (allowed: rules, schema_version)")
		}
	}

	var cfg Config
	if v, ok := raw["schema_version"]; ok {
		if err := json.Unmarshal(v, &cfg.SchemaVersion); err != nil {
			problems = append(problems, "schema_version must be a string")
		}
	}

	var rawRules []map[string]json.RawMessage
	if v, ok := raw["rules"]; ok {
		if err := json.Unmarshal(v, &rawRules); err != nil {
			problems = append(problems, "'rules' must be an array of objects")
			rawRules = nil
		}
	}

	seen := make(map[string]bool)
	for i, rawRule := range rawRules {
		problems = append(problems, validateRuleKeys(i, rawRule)...)

		var rule Rule
		ruleData, _ := json.Marshal(rawRule)
		if err := json.Unmarshal(ruleData, &rule); err != nil {
			problems = append(problems, ruleProblem(i, "malformed rule: "+err.Error()))
			continue
		}

		switch {
		case rule.RuleID == "":
			problems = append(problems, ruleProblem(i, "rule_id must be a non-empty string"))
		case !ruleIDPattern.MatchString(rule.RuleID):
			problems = append(problems, ruleProblem(i, "rule_id should be snake_case (e.g. check_min_value): "+rule.RuleID))
		case seen[rule.RuleID]:
			problems = append(problems, ruleProblem(i, "duplicate rule_id '"+rule.RuleID+"' (rule_id must be unique)"))
		default:
			seen[rule.RuleID] = true
		}

		if rule.Validator == "" {
			problems = append(problems, ruleProblem(i, "validator must be a non-empty string"))
		}
		if ds := rule.Scope.DataSource; ds != "" && ds != SourceStats && ds != SourceLint && ds != SourceDiffer {
			problems = append(problems, ruleProblem(i, "scope.data_source must be one of stats, lint, differ: "+ds))
		}

		cfg.Rules = append(cfg.Rules, rule)
	}

	if len(problems) > 0 {
		return nil, errors.Wrap(errors.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return &cfg, nil
}

// Write serializes a configuration to disk with stable formatting.
func Write(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal rule config")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return errors.Wrapf(err, "write rule config %s", path)
	}
	return nil
}

func validateRuleKeys(i int, rawRule map[string]json.RawMessage) []string {
	var problems []string
	for _, key := range requiredRuleKeys {
		if _, ok := rawRule[key]; !ok {
			problems = append(problems, ruleProblem(i, "missing required key '"+key+"'"))
		}
	}
	for key := range rawRule {
		if !containsKey(requiredRuleKeys, key) && !containsKey(optionalRuleKeys, key) {
			problems = append(problems, ruleProblem(i, "unknown rule key '"+key+"'"))
		}
	}
	return problems
}

func ruleProblem(i int, msg string) string {
	return "rules[" + strconv.Itoa(i) + "]: " + msg
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
