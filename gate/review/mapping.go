package review

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tablegate/tablegate/gate/types"
)

// Deterministic mapping-file checks. These parse the template mapping (TMCF)
// directly; they are cheap, always run, and blockers here fail the stage
// regardless of reviewer configuration.

var (
	// Column reference: C:tableName->columnId, value runs to end of line so
	// column ids with spaces survive.
	columnRefPattern = regexp.MustCompile(`C:[^>]+->([^\n\r]+)`)

	// variableMeasured value on the same line, literal or column ref.
	variableMeasuredPattern = regexp.MustCompile(`(?i)variableMeasured\s*:\s*([^\n\r#]+)`)

	// observationDate value on the same line.
	observationDatePattern = regexp.MustCompile(`(?i)observationDate\s*:\s*([^\n\r#]+)`)

	// ISO 8601 date literal: YYYY, YYYY-MM, or YYYY-MM-DD.
	isoDatePattern = regexp.MustCompile(`^\d{4}(-\d{2}(-\d{2})?)?$`)

	// Variable identifier: UpperCamelCase segments separated by underscores.
	variableIDPattern = regexp.MustCompile(`^[A-Z0-9][A-Za-z0-9]*(?:_[A-Z0-9][A-Za-z0-9]*)*$`)
)

const (
	unusedColumnCap      = 10
	undefinedVariableCap = 20
)

// columnRefs extracts column ids referenced in the mapping, in order of
// first appearance, with inline comments stripped.
func columnRefs(mapping string) []string {
	seen := make(map[string]bool)
	var ordered []string
	for _, line := range strings.Split(mapping, "\n") {
		line = stripComment(line)
		for _, m := range columnRefPattern.FindAllStringSubmatch(line, -1) {
			ref := strings.TrimSpace(m[1])
			if ref != "" && !seen[ref] {
				seen[ref] = true
				ordered = append(ordered, ref)
			}
		}
	}
	return ordered
}

// variableIDs extracts the variable identifiers the mapping generates:
// variableMeasured literals plus, when the literal is a column reference,
// the distinct values of that column in the data table.
func variableIDs(mapping string, header []string, rows [][]string) []string {
	seen := make(map[string]bool)
	var ordered []string
	add := func(raw string) {
		id := normalizeVariableID(raw)
		if id != "" && !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}

	var refCols []string
	for _, m := range variableMeasuredPattern.FindAllStringSubmatch(mapping, -1) {
		val := strings.TrimSpace(strings.SplitN(m[1], "\n", 2)[0])
		if val == "" {
			continue
		}
		if strings.HasPrefix(val, "C:") {
			if idx := strings.Index(val, "->"); idx >= 0 {
				if col := strings.TrimSpace(val[idx+2:]); col != "" {
					refCols = append(refCols, col)
				}
			}
			continue
		}
		add(val)
	}

	for _, col := range refCols {
		idx := -1
		for i, name := range header {
			if strings.TrimSpace(name) == col {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		for _, row := range rows {
			if idx < len(row) {
				add(row[idx])
			}
		}
	}
	return ordered
}

// normalizeVariableID strips dcid:/dcs: prefixes and whitespace.
func normalizeVariableID(raw string) string {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	for _, prefix := range []string{"dcid:", "dcs:"} {
		if strings.HasPrefix(lower, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}
	return s
}

func stripComment(line string) string {
	if idx := strings.Index(line, "#"); idx >= 0 {
		return line[:idx]
	}
	return line
}

// checkUnknownColumns flags mapping references to columns absent from the
// table header (case-sensitive). Blocker: the generation tool cannot resolve
// these.
func checkUnknownColumns(mapping, mappingPath string, header []string) []types.Finding {
	if len(header) == 0 {
		return nil
	}
	headerSet := make(map[string]bool, len(header))
	for _, col := range header {
		headerSet[strings.TrimSpace(col)] = true
	}

	var findings []types.Finding
	for _, ref := range columnRefs(mapping) {
		if !headerSet[ref] {
			findings = append(findings, types.Finding{
				Code:     CodeUnknownColumn,
				Message:  fmt.Sprintf("column reference %q does not exist in the table header (case-sensitive)", ref),
				File:     mappingPath,
				Severity: types.SeverityBlocking,
			})
		}
	}
	return findings
}

// checkUnusedColumns flags table columns the mapping never references.
func checkUnusedColumns(mapping, mappingPath string, header []string) []types.Finding {
	if len(header) == 0 {
		return nil
	}
	refs := make(map[string]bool)
	for _, ref := range columnRefs(mapping) {
		refs[ref] = true
	}

	var unused []string
	for _, col := range header {
		name := strings.TrimSpace(col)
		if name != "" && !refs[name] {
			unused = append(unused, name)
		}
	}
	if len(unused) == 0 {
		return nil
	}

	var findings []types.Finding
	shown := unused
	if len(shown) > unusedColumnCap {
		shown = shown[:unusedColumnCap]
	}
	for _, col := range shown {
		findings = append(findings, types.Finding{
			Code:     CodeUnusedColumn,
			Message:  fmt.Sprintf("table column %q is not referenced by the mapping", col),
			File:     mappingPath,
			Severity: types.SeverityAdvisory,
		})
	}
	if len(unused) > unusedColumnCap {
		findings = append(findings, types.Finding{
			Code:     CodeUnusedColumn,
			Message:  fmt.Sprintf("and %d more unreferenced table columns", len(unused)-unusedColumnCap),
			File:     mappingPath,
			Severity: types.SeverityAdvisory,
		})
	}
	return findings
}

// checkValueMapped requires observation nodes to map the measurement column.
func checkValueMapped(mapping, mappingPath string) []types.Finding {
	if !regexp.MustCompile(`(?i)typeOf\s*:\s*dcs:StatVarObservation`).MatchString(mapping) {
		return nil
	}
	for _, line := range strings.Split(mapping, "\n") {
		s := strings.TrimSpace(stripComment(line))
		if strings.HasPrefix(s, "value:") && strings.Contains(s, "C:") && strings.Contains(s, "->") {
			return nil
		}
	}
	return []types.Finding{{
		Code:     CodeValueNotMapped,
		Message:  "observation node(s) found but no 'value' property maps a table column (e.g. value: C:table->value)",
		File:     mappingPath,
		Severity: types.SeverityBlocking,
	}}
}

// checkDateLiterals validates observationDate literals against ISO 8601.
// Column-mapped dates are skipped.
func checkDateLiterals(mapping, mappingPath string) []types.Finding {
	var findings []types.Finding
	for lineNo, line := range strings.Split(mapping, "\n") {
		m := observationDatePattern.FindStringSubmatch(stripComment(line))
		if m == nil {
			continue
		}
		val := strings.TrimSpace(m[1])
		if val == "" || strings.HasPrefix(val, "C:") {
			continue
		}
		if !isoDatePattern.MatchString(val) {
			findings = append(findings, types.Finding{
				Code:     CodeDateFormat,
				Message:  fmt.Sprintf("observationDate literal %q is not ISO 8601 (use YYYY, YYYY-MM, or YYYY-MM-DD)", val),
				File:     mappingPath,
				Line:     lineNo + 1,
				Severity: types.SeverityAdvisory,
			})
		}
	}
	return findings
}

// checkVariableNaming validates generated variable identifiers against the
// UpperCamelCase-with-underscores convention.
func checkVariableNaming(mapping, mappingPath string, header []string, rows [][]string) []types.Finding {
	var findings []types.Finding
	for _, id := range variableIDs(mapping, header, rows) {
		if !variableIDPattern.MatchString(id) {
			findings = append(findings, types.Finding{
				Code:     CodeVariableNaming,
				Message:  fmt.Sprintf("variable identifier %q does not match the required format (UpperCamelCase segments separated by underscores, e.g. Count_Person)", id),
				File:     mappingPath,
				Severity: types.SeverityAdvisory,
			})
		}
	}
	return findings
}

// checkUndefinedVariables flags variables the mapping generates that have no
// definition node in the metadata files.
func checkUndefinedVariables(mapping string, header []string, rows [][]string, defined map[string]bool, metadataPath string) []types.Finding {
	if len(defined) == 0 {
		return nil
	}
	var missing []string
	for _, id := range variableIDs(mapping, header, rows) {
		if !defined[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var findings []types.Finding
	shown := missing
	if len(shown) > undefinedVariableCap {
		shown = shown[:undefinedVariableCap]
	}
	for _, id := range shown {
		findings = append(findings, types.Finding{
			Code:     CodeUndefinedVariable,
			Message:  fmt.Sprintf("variable %q is used by the mapping but not defined in the metadata files", id),
			File:     metadataPath,
			Severity: types.SeverityAdvisory,
		})
	}
	if len(missing) > undefinedVariableCap {
		findings = append(findings, types.Finding{
			Code:     CodeUndefinedVariable,
			Message:  fmt.Sprintf("and %d more variables used by the mapping but not defined in the metadata files", len(missing)-undefinedVariableCap),
			File:     metadataPath,
			Severity: types.SeverityAdvisory,
		})
	}
	return findings
}
