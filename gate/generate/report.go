package generate

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/tablegate/tablegate/errors"
)

// Report levels used by the pipeline.
const (
	LevelError = "LEVEL_ERROR"
	LevelInfo  = "LEVEL_INFO"
)

// Report is the structured report the tool writes alongside its artifacts:
// per-level counter maps summarizing what the run saw.
type Report struct {
	LevelSummary map[string]LevelCounters `json:"levelSummary"`
}

// LevelCounters holds the named counters of one report level.
type LevelCounters struct {
	Counters map[string]int64 `json:"counters"`
}

// LoadReport reads a structured report from disk.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading report %s", path)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(err, "parsing report %s", path)
	}
	return &r, nil
}

// Counter returns the named counter at the given level and whether it exists.
func (r *Report) Counter(level, name string) (int64, bool) {
	if r == nil {
		return 0, false
	}
	lvl, ok := r.LevelSummary[level]
	if !ok {
		return 0, false
	}
	v, ok := lvl.Counters[name]
	return v, ok
}

// SumCounters sums every counter at the given level whose name does not start
// with any of the excluded prefixes.
func (r *Report) SumCounters(level string, excludePrefixes ...string) int64 {
	if r == nil {
		return 0
	}
	var sum int64
	for name, v := range r.LevelSummary[level].Counters {
		excluded := false
		for _, prefix := range excludePrefixes {
			if strings.HasPrefix(name, prefix) {
				excluded = true
				break
			}
		}
		if !excluded {
			sum += v
		}
	}
	return sum
}
