package rules

import (
	"sort"
	"strings"

	"github.com/tablegate/tablegate/errors"
)

// ErrBothSets is returned when both an inclusion and an exclusion set are
// supplied to Filter.
var ErrBothSets = errors.Wrap(errors.ErrUsage, "cannot combine an inclusion set with an exclusion set")

// Filter produces a new Config containing only rules named by include, or all
// rules except those named by exclude. Supplying both sets is a usage error;
// supplying neither returns a copy of the input. Unknown ids in either set
// and an empty filtered result are validation errors.
func Filter(cfg *Config, include, exclude []string) (*Config, error) {
	include = cleanSet(include)
	exclude = cleanSet(exclude)

	if len(include) > 0 && len(exclude) > 0 {
		return nil, ErrBothSets
	}

	known := make(map[string]bool, len(cfg.Rules))
	for _, r := range cfg.Rules {
		known[r.RuleID] = true
	}

	for _, set := range [][]string{include, exclude} {
		for _, id := range set {
			if !known[id] {
				return nil, errors.Newf("unknown rule id %q (valid ids: %s)", id, strings.Join(sortedIDs(known), ", "))
			}
		}
	}

	out := &Config{SchemaVersion: cfg.SchemaVersion}
	switch {
	case len(include) > 0:
		want := toSet(include)
		for _, r := range cfg.Rules {
			if want[r.RuleID] {
				out.Rules = append(out.Rules, r)
			}
		}
	case len(exclude) > 0:
		drop := toSet(exclude)
		for _, r := range cfg.Rules {
			if !drop[r.RuleID] {
				out.Rules = append(out.Rules, r)
			}
		}
	default:
		out.Rules = append(out.Rules, cfg.Rules...)
	}

	if len(out.Rules) == 0 {
		return nil, errors.New("no rules left after filter")
	}
	return out, nil
}

func cleanSet(ids []string) []string {
	var out []string
	for _, id := range ids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func sortedIDs(known map[string]bool) []string {
	ids := make([]string, 0, len(known))
	for id := range known {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
