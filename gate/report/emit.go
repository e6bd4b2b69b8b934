package report

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tablegate/tablegate/errors"
	"github.com/tablegate/tablegate/gate/types"
	"github.com/tablegate/tablegate/logger"
)

// Artifact names in the run dir.
const (
	ResultArtifact  = "results.json"
	FailureArtifact = "failure.json"
)

// LatestDirName is the per-dataset mirror of the most recent completed run.
const LatestDirName = "latest"

// Failure is the sidecar written next to the result document when a run
// aborts: machine-readable root cause for automation that does not want to
// walk the full record list.
type Failure struct {
	Code    string `json:"code"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Limit   *int   `json:"limit,omitempty"`
}

// Seed writes the empty-records result document at run start. Verdict FAIL:
// a run that dies before REPORT must not read as a pass.
func Seed(dir, dataset, runID string, startedAt time.Time) error {
	doc := types.ResultDocument{
		SchemaVersion: types.ResultSchemaVersion,
		Dataset:       dataset,
		RunID:         runID,
		Verdict:       types.VerdictFail,
		StartedAt:     startedAt.UTC(),
		FinishedAt:    startedAt.UTC(),
		Records:       []types.Record{},
	}
	return writeJSON(filepath.Join(dir, ResultArtifact), doc)
}

// Emit atomically replaces the seeded document with the final one.
func Emit(doc types.ResultDocument, dir string) error {
	if doc.Records == nil {
		doc.Records = []types.Record{}
	}
	return writeJSON(filepath.Join(dir, ResultArtifact), doc)
}

// EmitFailure writes the failure sidecar. The first failure of a run wins;
// callers must not overwrite an earlier sidecar with a downstream symptom.
func EmitFailure(f Failure, dir string) error {
	return writeJSON(filepath.Join(dir, FailureArtifact), f)
}

// FailureFor derives the sidecar from the aborting stage result: the finding
// code when it belongs to the failure taxonomy, otherwise the stage's
// default code.
func FailureFor(res types.StageResult) Failure {
	f := Failure{
		Code:  stageFailureCode(res.Stage),
		Stage: res.Stage,
	}
	for _, finding := range res.Findings {
		if finding.Severity == types.SeverityAdvisory {
			continue
		}
		if f.Message == "" {
			f.Message = finding.Message
		}
		if finding.Limit != nil && f.Limit == nil {
			f.Limit = finding.Limit
		}
		switch finding.Code {
		case types.CodeRunTimeout, types.CodeRunCancelled, types.CodeRowCountExceeded:
			f.Code = finding.Code
		}
	}
	if f.Message == "" {
		f.Message = res.Err
	}
	return f
}

func stageFailureCode(stage string) string {
	switch stage {
	case "PREFLIGHT":
		return types.CodePreflightFailed
	case "QUALITY":
		return types.CodeCSVQualityFailed
	case "ROW_VOLUME":
		return types.CodeRowCountExceeded
	case "SCHEMA_REVIEW":
		return types.CodeSchemaReviewBlocking
	case "GENERATE":
		return types.CodeGenerationFailed
	case "VALIDATE":
		return types.CodeValidationFailed
	}
	return types.CodeRulesFailed
}

// writeJSON writes via temp file + rename so readers never observe a partial
// document.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "marshaling %s", filepath.Base(path))
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "closing %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "replacing %s", path)
	}
	return nil
}

// MirrorLatest copies the run dir's files into <datasetDir>/latest, replacing
// the previous mirror. Skipped (with a log line, no error) when the run dir
// has no result document: half-finished runs never become "latest".
func MirrorLatest(runDir, datasetDir string) error {
	if _, err := os.Stat(filepath.Join(runDir, ResultArtifact)); err != nil {
		logger.Warnw("run dir has no result document, not mirroring",
			logger.FieldPath, runDir)
		return nil
	}

	latest := filepath.Join(datasetDir, LatestDirName)
	staging := latest + ".tmp"
	if err := os.RemoveAll(staging); err != nil {
		return errors.Wrap(err, "clearing mirror staging dir")
	}
	if err := copyDir(runDir, staging); err != nil {
		os.RemoveAll(staging)
		return errors.Wrap(err, "staging latest mirror")
	}
	if err := os.RemoveAll(latest); err != nil {
		os.RemoveAll(staging)
		return errors.Wrap(err, "removing previous latest mirror")
	}
	return os.Rename(staging, latest)
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
}
