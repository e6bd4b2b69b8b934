// Package preflight verifies that the input artifacts of a run exist and
// carry the expected file kinds before any expensive stage starts.
package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tablegate/tablegate/gate/types"
)

// StageName identifies this stage in results and logs.
const StageName = "PREFLIGHT"

// Finding codes.
const (
	CodeMissingFile    = "MISSING_FILE"
	CodeWrongExtension = "WRONG_EXTENSION"
)

// Inputs are the resolved paths to check. Metadata paths are optional and
// only checked when present.
type Inputs struct {
	Mapping  string
	Table    string
	Metadata []string
}

// Check validates every input path and reports all violations in one pass.
// The stage is always blocking: a missing or misnamed input invalidates
// everything downstream.
func Check(in Inputs) types.StageResult {
	var findings []types.Finding

	findings = append(findings, checkPath(in.Mapping, "mapping file", ".tmcf", ".mcf")...)
	findings = append(findings, checkPath(in.Table, "data table", ".csv")...)
	for _, meta := range in.Metadata {
		if strings.TrimSpace(meta) == "" {
			continue
		}
		findings = append(findings, checkPath(meta, "metadata file", ".mcf")...)
	}

	status := types.StatusPassed
	if len(findings) > 0 {
		status = types.StatusFailed
	}
	return types.StageResult{
		Stage:    StageName,
		Status:   status,
		Severity: types.SeverityBlocking,
		Findings: findings,
	}
}

func checkPath(path, label string, allowedSuffixes ...string) []types.Finding {
	if _, err := os.Stat(path); err != nil {
		return []types.Finding{{
			Code:    CodeMissingFile,
			Message: fmt.Sprintf("%s not found: %s", label, path),
			File:    path,
		}}
	}

	suffix := strings.ToLower(filepath.Ext(path))
	for _, allowed := range allowedSuffixes {
		if suffix == allowed {
			return nil
		}
	}
	return []types.Finding{{
		Code:    CodeWrongExtension,
		Message: fmt.Sprintf("%s must have %s extension: %s", label, orList(allowedSuffixes), path),
		File:    path,
	}}
}

func orList(suffixes []string) string {
	if len(suffixes) == 1 {
		return suffixes[0]
	}
	return strings.Join(suffixes[:len(suffixes)-1], ", ") + " or " + suffixes[len(suffixes)-1]
}
