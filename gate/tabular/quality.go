package tabular

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tablegate/tablegate/gate/types"
)

// QualityStageName identifies the data quality stage.
const QualityStageName = "QUALITY"

// Quality finding codes.
const (
	CodeDuplicateColumn = "DUPLICATE_COLUMN"
	CodeEmptyColumn     = "EMPTY_COLUMN"
	CodeDuplicateRow    = "DUPLICATE_ROW"
	CodeNonNumericValue = "NON_NUMERIC_VALUE"
)

// nonNumericSampleSize caps how many offending rows one finding names.
const nonNumericSampleSize = 5

// QualityOptions configure the quality scan.
type QualityOptions struct {
	// ValueColumn is the measurement column checked for numeric content.
	// Empty skips the numeric check.
	ValueColumn string

	// EmptyColumnsAdvisory downgrades empty-column findings from blocking
	// to finding-only advisory.
	EmptyColumnsAdvisory bool
}

// CheckQuality runs all four quality checks. The checks are independent and
// all evaluated, never short-circuited, so a single run reports every
// violation at once. Row numbers in messages are 1-based counting the header
// as row 1.
func CheckQuality(t *Table, opts QualityOptions) types.StageResult {
	var findings []types.Finding

	findings = append(findings, checkDuplicateColumns(t)...)
	findings = append(findings, checkEmptyColumns(t, opts.EmptyColumnsAdvisory)...)
	findings = append(findings, checkDuplicateRows(t)...)
	findings = append(findings, checkNonNumericValues(t, opts.ValueColumn)...)

	// Advisory findings alone do not fail the stage
	status := types.StatusPassed
	for _, f := range findings {
		if f.Severity != types.SeverityAdvisory {
			status = types.StatusFailed
			break
		}
	}

	return types.StageResult{
		Stage:    QualityStageName,
		Status:   status,
		Severity: types.SeverityBlocking,
		Findings: findings,
	}
}

func checkDuplicateColumns(t *Table) []types.Finding {
	seen := make(map[string]int)
	order := make([]string, 0, len(t.Header))
	for _, col := range t.Header {
		name := strings.TrimSpace(col)
		if seen[name] == 0 {
			order = append(order, name)
		}
		seen[name]++
	}

	var dupes []string
	for _, name := range order {
		if seen[name] > 1 {
			dupes = append(dupes, strconv.Quote(name))
		}
	}
	if len(dupes) == 0 {
		return nil
	}
	return []types.Finding{{
		Code:    CodeDuplicateColumn,
		Message: "duplicate column name(s): " + strings.Join(dupes, ", "),
		File:    t.Path,
	}}
}

func checkEmptyColumns(t *Table, advisory bool) []types.Finding {
	if len(t.Rows) == 0 {
		return nil
	}

	severity := types.Severity("")
	if advisory {
		severity = types.SeverityAdvisory
	}

	var findings []types.Finding
	for i, col := range t.Header {
		name := strings.TrimSpace(col)
		if name == "" {
			continue
		}
		empty := true
		for _, row := range t.Rows {
			if !isEmpty(t.Cell(row, i)) {
				empty = false
				break
			}
		}
		if empty {
			findings = append(findings, types.Finding{
				Code:     CodeEmptyColumn,
				Message:  fmt.Sprintf("column is entirely empty: %q", name),
				File:     t.Path,
				Severity: severity,
			})
		}
	}
	return findings
}

func checkDuplicateRows(t *Table) []types.Finding {
	seen := make(map[string]bool, len(t.Rows))
	var findings []types.Finding
	for i, row := range t.Rows {
		parts := make([]string, len(t.Header))
		for c := range t.Header {
			parts[c] = strings.TrimSpace(t.Cell(row, c))
		}
		key := strings.Join(parts, "\x1f")
		if seen[key] {
			findings = append(findings, types.Finding{
				Code:    CodeDuplicateRow,
				Message: fmt.Sprintf("duplicate row at 1-based row %d (header is row 1)", i+2),
				File:    t.Path,
				Line:    i + 2,
			})
			continue
		}
		seen[key] = true
	}
	return findings
}

func checkNonNumericValues(t *Table, valueColumn string) []types.Finding {
	if valueColumn == "" {
		return nil
	}
	col := -1
	for i, name := range t.Header {
		if strings.TrimSpace(name) == valueColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return nil // column absent; the mapping checks own that problem
	}

	var badRows []int
	var sampleValues []string
	for i, row := range t.Rows {
		cell := t.Cell(row, col)
		if isNumeric(cell) {
			continue
		}
		badRows = append(badRows, i+2)
		if len(sampleValues) < nonNumericSampleSize {
			sampleValues = append(sampleValues, strconv.Quote(strings.TrimSpace(cell)))
		}
	}
	if len(badRows) == 0 {
		return nil
	}

	sample := badRows
	more := ""
	if len(badRows) > nonNumericSampleSize {
		sample = badRows[:nonNumericSampleSize]
		more = fmt.Sprintf(" (and %d more)", len(badRows)-nonNumericSampleSize)
	}
	return []types.Finding{{
		Code: CodeNonNumericValue,
		Message: fmt.Sprintf("non-numeric value(s) in column %q at row(s) %v: %s%s",
			valueColumn, sample, strings.Join(sampleValues, ", "), more),
		File: t.Path,
		Line: sample[0],
	}}
}

// isNumeric treats empty/whitespace cells as numeric; missing observations
// are not a quality violation.
func isNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
