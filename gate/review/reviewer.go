package review

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/tablegate/tablegate/errors"
	"github.com/tablegate/tablegate/extproc"
	"github.com/tablegate/tablegate/gate/types"
	"github.com/tablegate/tablegate/logger"
)

// Reviewer inspects the mapping and metadata and returns findings beyond
// what the deterministic checks cover. Implementations typically shell out
// to an external analysis tool.
type Reviewer interface {
	Review(ctx context.Context, in Inputs) ([]types.Finding, error)
}

// reviewerFinding is the wire format an external reviewer emits: a JSON
// array of these objects on stdout.
type reviewerFinding struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// blockingTypes are reviewer finding types that indicate the import would
// produce wrong data. Everything else is advisory.
var blockingTypes = map[string]bool{
	"typo":             true,
	"schema":           true,
	"unknown_variable": true,
	"duplicate":        true,
	"required":         true,
	"namespace":        true,
}

// CommandReviewer runs a configured external command. The command receives
// the mapping path and metadata paths as trailing arguments and must print
// a JSON array of findings to stdout.
type CommandReviewer struct {
	// Command is the full command line, split shell-style.
	Command string

	// Timeout bounds a single invocation. Zero means no per-step timeout
	// beyond the caller's context.
	Timeout time.Duration
}

func (r *CommandReviewer) Review(ctx context.Context, in Inputs) ([]types.Finding, error) {
	words, err := shellquote.Split(r.Command)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing reviewer command %q", r.Command)
	}
	if len(words) == 0 {
		return nil, errors.New("reviewer command is empty")
	}

	args := append(words[1:], in.MappingPath)
	args = append(args, in.MetadataPaths...)

	step := extproc.Step{
		Name:    "schema-review",
		Command: words[0],
		Args:    args,
		Timeout: r.Timeout,
	}
	res, err := step.Run(ctx)
	if err != nil {
		return nil, err
	}
	if !res.Ok() {
		stderr := strings.TrimSpace(string(res.Stderr))
		if len(stderr) > 512 {
			stderr = stderr[:512]
		}
		return nil, errors.Newf("reviewer exited with code %d: %s", res.ExitCode, stderr)
	}
	return parseReviewerOutput(string(res.Stdout))
}

// parseReviewerOutput decodes the reviewer's JSON findings and normalizes
// them into gate findings with severities assigned by type.
func parseReviewerOutput(stdout string) ([]types.Finding, error) {
	raw := strings.TrimSpace(stdout)
	if raw == "" {
		return nil, nil
	}
	var parsed []reviewerFinding
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, errors.Wrap(err, "parsing reviewer output")
	}

	var findings []types.Finding
	for _, f := range parsed {
		ftype := strings.ToLower(strings.TrimSpace(f.Type))
		msg := strings.TrimSpace(f.Message)
		if msg == "" {
			continue
		}
		severity := types.SeverityAdvisory
		if blockingTypes[ftype] {
			severity = types.SeverityBlocking
		} else if !knownAdvisoryType(ftype) {
			logger.Warnw("reviewer emitted unknown finding type, treating as advisory",
				logger.FieldCode, ftype)
		}
		findings = append(findings, types.Finding{
			Code:     reviewerCode(ftype),
			Message:  msg,
			File:     f.File,
			Line:     f.Line,
			Severity: severity,
		})
	}
	return findings, nil
}

func knownAdvisoryType(ftype string) bool {
	switch ftype {
	case "naming", "unused_column", "format":
		return true
	}
	return false
}

// reviewerCode maps a reviewer finding type to a result-document code.
func reviewerCode(ftype string) string {
	if ftype == "" {
		return "REVIEWER_FINDING"
	}
	return "REVIEWER_" + strings.ToUpper(ftype)
}
