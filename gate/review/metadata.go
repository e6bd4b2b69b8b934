package review

import (
	"fmt"
	"strings"

	"github.com/tablegate/tablegate/gate/types"
)

// Deterministic metadata-file checks. Metadata files hold graph node
// definitions (MCF): blocks starting with "Node:" followed by
// "property: value" lines until the next blank line or Node.

// mcfNode is one definition block from a metadata file.
type mcfNode struct {
	Name  string
	Props map[string]string
	Line  int
}

// parseNodes splits MCF content into definition blocks. Properties that
// repeat within a node keep the first value; the checks here only ask
// whether a property is present.
func parseNodes(content string) []mcfNode {
	var nodes []mcfNode
	var cur *mcfNode
	flush := func() {
		if cur != nil {
			nodes = append(nodes, *cur)
			cur = nil
		}
	}
	for lineNo, line := range strings.Split(content, "\n") {
		s := strings.TrimSpace(stripComment(line))
		if s == "" {
			flush()
			continue
		}
		if strings.HasPrefix(s, "Node:") {
			flush()
			cur = &mcfNode{
				Name:  normalizeVariableID(strings.TrimPrefix(s, "Node:")),
				Props: make(map[string]string),
				Line:  lineNo + 1,
			}
			continue
		}
		if cur == nil {
			continue
		}
		if idx := strings.Index(s, ":"); idx > 0 {
			key := strings.TrimSpace(s[:idx])
			val := strings.TrimSpace(s[idx+1:])
			if _, ok := cur.Props[key]; !ok {
				cur.Props[key] = val
			}
		}
	}
	flush()
	return nodes
}

// statVarNodes filters definition blocks to statistical variable nodes.
func statVarNodes(nodes []mcfNode) []mcfNode {
	var out []mcfNode
	for _, n := range nodes {
		typeOf := normalizeVariableID(n.Props["typeOf"])
		if typeOf == "StatisticalVariable" {
			out = append(out, n)
		}
	}
	return out
}

// definedVariableSet maps variable name to true for every statistical
// variable node across all metadata files.
func definedVariableSet(contents []string) map[string]bool {
	defined := make(map[string]bool)
	for _, content := range contents {
		for _, n := range statVarNodes(parseNodes(content)) {
			if n.Name != "" {
				defined[n.Name] = true
			}
		}
	}
	return defined
}

// checkMetadataCompleteness flags statistical variable nodes missing the
// properties a reviewer needs to understand them.
func checkMetadataCompleteness(content, path string) []types.Finding {
	var findings []types.Finding
	for _, n := range statVarNodes(parseNodes(content)) {
		var missing []string
		for _, prop := range []string{"name", "description", "populationType", "measuredProperty"} {
			if strings.TrimSpace(n.Props[prop]) == "" {
				missing = append(missing, prop)
			}
		}
		if len(missing) > 0 {
			findings = append(findings, types.Finding{
				Code:     CodeMetadataIncomplete,
				Message:  fmt.Sprintf("variable definition %q is missing: %s", n.Name, strings.Join(missing, ", ")),
				File:     path,
				Line:     n.Line,
				Severity: types.SeverityAdvisory,
			})
		}
	}
	return findings
}

// checkMissingDenominator flags percent/rate variables without a
// measurementDenominator. Without one, a ratio cannot be interpreted.
func checkMissingDenominator(content, path string) []types.Finding {
	var findings []types.Finding
	for _, n := range statVarNodes(parseNodes(content)) {
		lower := strings.ToLower(n.Name + " " + n.Props["name"] + " " + n.Props["measuredProperty"])
		if !strings.Contains(lower, "percent") && !strings.Contains(lower, "rate") {
			continue
		}
		if strings.TrimSpace(n.Props["measurementDenominator"]) == "" {
			findings = append(findings, types.Finding{
				Code:     CodeMissingDenominator,
				Message:  fmt.Sprintf("variable %q looks like a percentage or rate but has no measurementDenominator", n.Name),
				File:     path,
				Line:     n.Line,
				Severity: types.SeverityAdvisory,
			})
		}
	}
	return findings
}
