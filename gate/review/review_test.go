package review

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablegate/tablegate/errors"
	"github.com/tablegate/tablegate/gate/tabular"
	"github.com/tablegate/tablegate/gate/types"
)

const sampleMapping = `Node: E:dataset->E0
typeOf: dcs:StatVarObservation
variableMeasured: dcid:Count_Person
observationAbout: C:dataset->geoId
observationDate: C:dataset->date
value: C:dataset->value
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func sampleTable() *tabular.Table {
	return &tabular.Table{
		Header: []string{"geoId", "date", "value"},
		Rows: [][]string{
			{"geoId/06", "2020", "100"},
		},
	}
}

func TestRunCleanMappingPasses(t *testing.T) {
	dir := t.TempDir()
	mapping := writeFile(t, dir, "dataset.tmcf", sampleMapping)

	res := Run(context.Background(), Inputs{MappingPath: mapping, Table: sampleTable()}, Options{})
	assert.Equal(t, types.StatusPassed, res.Status)
	assert.Empty(t, res.Findings)
}

func TestRunUnknownColumnBlocks(t *testing.T) {
	dir := t.TempDir()
	mapping := writeFile(t, dir, "dataset.tmcf", `Node: E:dataset->E0
typeOf: dcs:StatVarObservation
variableMeasured: dcid:Count_Person
observationAbout: C:dataset->GeoID
observationDate: C:dataset->date
value: C:dataset->value
`)

	res := Run(context.Background(), Inputs{MappingPath: mapping, Table: sampleTable()}, Options{})
	require.Equal(t, types.StatusFailed, res.Status)

	var codes []string
	for _, f := range res.Findings {
		codes = append(codes, f.Code)
	}
	assert.Contains(t, codes, CodeUnknownColumn)
	// geoId is now unused since the mapping references GeoID instead.
	assert.Contains(t, codes, CodeUnusedColumn)
}

func TestRunValueNotMappedBlocks(t *testing.T) {
	dir := t.TempDir()
	mapping := writeFile(t, dir, "dataset.tmcf", `Node: E:dataset->E0
typeOf: dcs:StatVarObservation
variableMeasured: dcid:Count_Person
observationAbout: C:dataset->geoId
observationDate: C:dataset->date
value: 42
`)

	res := Run(context.Background(), Inputs{MappingPath: mapping, Table: &tabular.Table{Header: []string{"geoId", "date"}}}, Options{})
	require.Equal(t, types.StatusFailed, res.Status)
	assert.Equal(t, CodeValueNotMapped, res.Findings[len(res.Findings)-1].Code)
}

func TestRunDateLiteralAdvisory(t *testing.T) {
	dir := t.TempDir()
	mapping := writeFile(t, dir, "dataset.tmcf", `Node: E:dataset->E0
typeOf: dcs:StatVarObservation
variableMeasured: dcid:Count_Person
observationAbout: C:dataset->geoId
observationDate: 03/2020
value: C:dataset->value
`)

	res := Run(context.Background(), Inputs{MappingPath: mapping, Table: &tabular.Table{Header: []string{"geoId", "value"}}}, Options{})
	// Advisory findings alone do not fail the stage.
	assert.Equal(t, types.StatusPassed, res.Status)

	found := false
	for _, f := range res.Findings {
		if f.Code == CodeDateFormat {
			found = true
			assert.Equal(t, types.SeverityAdvisory, f.Severity)
		}
	}
	assert.True(t, found)
}

func TestRunVariableNamingAdvisory(t *testing.T) {
	dir := t.TempDir()
	mapping := writeFile(t, dir, "dataset.tmcf", `Node: E:dataset->E0
typeOf: dcs:StatVarObservation
variableMeasured: dcid:count_person
observationAbout: C:dataset->geoId
observationDate: C:dataset->date
value: C:dataset->value
`)

	res := Run(context.Background(), Inputs{MappingPath: mapping, Table: sampleTable()}, Options{})
	assert.Equal(t, types.StatusPassed, res.Status)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, CodeVariableNaming, res.Findings[0].Code)
}

func TestRunColumnMappedVariables(t *testing.T) {
	dir := t.TempDir()
	mapping := writeFile(t, dir, "dataset.tmcf", `Node: E:dataset->E0
typeOf: dcs:StatVarObservation
variableMeasured: C:dataset->variable
observationAbout: C:dataset->geoId
observationDate: C:dataset->date
value: C:dataset->value
`)
	table := &tabular.Table{
		Header: []string{"geoId", "date", "value", "variable"},
		Rows: [][]string{
			{"geoId/06", "2020", "100", "Count_Person"},
			{"geoId/06", "2020", "12", "bad variable name"},
		},
	}

	res := Run(context.Background(), Inputs{MappingPath: mapping, Table: table}, Options{})
	assert.Equal(t, types.StatusPassed, res.Status)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, CodeVariableNaming, res.Findings[0].Code)
	assert.Contains(t, res.Findings[0].Message, "bad variable name")
}

func TestRunMetadataChecks(t *testing.T) {
	dir := t.TempDir()
	mapping := writeFile(t, dir, "dataset.tmcf", sampleMapping)
	metadata := writeFile(t, dir, "dataset.mcf", `Node: dcid:Percent_Person_Obese
typeOf: dcs:StatisticalVariable
populationType: dcs:Person
measuredProperty: dcs:count
`)

	res := Run(context.Background(), Inputs{
		MappingPath:   mapping,
		MetadataPaths: []string{metadata},
		Table:         sampleTable(),
	}, Options{})
	assert.Equal(t, types.StatusPassed, res.Status)

	var codes []string
	for _, f := range res.Findings {
		codes = append(codes, f.Code)
	}
	// Missing name/description, percent without denominator, and the
	// mapped Count_Person variable is not defined in the metadata.
	assert.Contains(t, codes, CodeMetadataIncomplete)
	assert.Contains(t, codes, CodeMissingDenominator)
	assert.Contains(t, codes, CodeUndefinedVariable)
}

func TestRunMissingMappingFails(t *testing.T) {
	res := Run(context.Background(), Inputs{MappingPath: "/nonexistent/dataset.tmcf"}, Options{})
	assert.Equal(t, types.StatusFailed, res.Status)
	assert.NotEmpty(t, res.Err)
}

type stubReviewer struct {
	findings []types.Finding
	err      error
}

func (s *stubReviewer) Review(_ context.Context, _ Inputs) ([]types.Finding, error) {
	return s.findings, s.err
}

func TestRunReviewerBlockingFinding(t *testing.T) {
	dir := t.TempDir()
	mapping := writeFile(t, dir, "dataset.tmcf", sampleMapping)
	reviewer := &stubReviewer{findings: []types.Finding{
		{Code: "REVIEWER_TYPO", Message: "geoId/06 should be geoId/06000", Severity: types.SeverityBlocking},
	}}

	res := Run(context.Background(), Inputs{MappingPath: mapping, Table: sampleTable()}, Options{Reviewer: reviewer})
	assert.Equal(t, types.StatusFailed, res.Status)
}

func TestRunAdvisoryModeDowngradesReviewerFindings(t *testing.T) {
	dir := t.TempDir()
	mapping := writeFile(t, dir, "dataset.tmcf", sampleMapping)
	reviewer := &stubReviewer{findings: []types.Finding{
		{Code: "REVIEWER_TYPO", Message: "geoId/06 should be geoId/06000", Severity: types.SeverityBlocking},
	}}

	res := Run(context.Background(), Inputs{MappingPath: mapping, Table: sampleTable()}, Options{
		Reviewer: reviewer,
		Advisory: true,
	})
	assert.Equal(t, types.StatusPassed, res.Status)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, types.SeverityAdvisory, res.Findings[0].Severity)
}

func TestRunReviewerFailureBlocksEvenInAdvisoryMode(t *testing.T) {
	dir := t.TempDir()
	mapping := writeFile(t, dir, "dataset.tmcf", sampleMapping)
	reviewer := &stubReviewer{err: errors.New("model unavailable")}

	res := Run(context.Background(), Inputs{MappingPath: mapping, Table: sampleTable()}, Options{
		Reviewer: reviewer,
		Advisory: true,
	})
	require.Equal(t, types.StatusFailed, res.Status)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, CodeReviewerFailed, res.Findings[0].Code)
	assert.Equal(t, types.SeverityBlocking, res.Findings[0].Severity)
}

func TestRunDedupesAndCaps(t *testing.T) {
	dir := t.TempDir()
	mapping := writeFile(t, dir, "dataset.tmcf", sampleMapping)

	var many []types.Finding
	for i := 0; i < 40; i++ {
		many = append(many, types.Finding{
			Code:     "REVIEWER_NAMING",
			Message:  "variable name is unclear " + string(rune('a'+i)),
			Severity: types.SeverityAdvisory,
		})
	}
	// Exact duplicate that must collapse to one.
	many = append(many, many[0])

	res := Run(context.Background(), Inputs{MappingPath: mapping, Table: sampleTable()}, Options{
		Reviewer: &stubReviewer{findings: many},
	})
	assert.Len(t, res.Findings, findingCap)
}

func TestRunBlockersSurviveFindingCap(t *testing.T) {
	dir := t.TempDir()

	// Enough malformed observationDate literals to fill the cap with
	// advisory findings on their own.
	var sb strings.Builder
	sb.WriteString(sampleMapping)
	for i := 0; i < findingCap+5; i++ {
		fmt.Fprintf(&sb, `Node: E:dataset->E%d
typeOf: dcs:StatVarObservation
variableMeasured: dcid:Count_Person
observationAbout: C:dataset->geoId
observationDate: %d/01
value: C:dataset->value
`, i+1, 1990+i)
	}
	mapping := writeFile(t, dir, "dataset.tmcf", sb.String())

	res := Run(context.Background(), Inputs{MappingPath: mapping, Table: sampleTable()}, Options{
		Advisory: true,
		Reviewer: &stubReviewer{err: errors.New("model unavailable")},
	})

	require.Equal(t, types.StatusFailed, res.Status)
	require.Len(t, res.Findings, findingCap)
	var failed *types.Finding
	for i := range res.Findings {
		if res.Findings[i].Code == CodeReviewerFailed {
			failed = &res.Findings[i]
		}
	}
	require.NotNil(t, failed, "reviewer failure must never be truncated away")
	assert.Equal(t, types.SeverityBlocking, failed.Severity)
}

func TestCapFindingsKeepsAllBlockers(t *testing.T) {
	var findings []types.Finding
	for i := 0; i < findingCap+10; i++ {
		findings = append(findings, types.Finding{
			Code:     CodeUnknownColumn,
			Message:  fmt.Sprintf("column c%d", i),
			Severity: types.SeverityBlocking,
		})
	}
	capped := capFindings(findings)
	assert.Len(t, capped, findingCap+10)

	capped = capFindings(findings[:5])
	assert.Len(t, capped, 5)
}

func TestParseReviewerOutput(t *testing.T) {
	findings, err := parseReviewerOutput(`[
		{"type": "typo", "message": "place id looks wrong", "file": "dataset.csv", "line": 3},
		{"type": "naming", "message": "variable name is unclear"},
		{"type": "mystery", "message": "something odd"},
		{"type": "schema", "message": ""}
	]`)
	require.NoError(t, err)
	require.Len(t, findings, 3)

	assert.Equal(t, "REVIEWER_TYPO", findings[0].Code)
	assert.Equal(t, types.SeverityBlocking, findings[0].Severity)
	assert.Equal(t, "dataset.csv", findings[0].File)
	assert.Equal(t, 3, findings[0].Line)

	assert.Equal(t, types.SeverityAdvisory, findings[1].Severity)
	// Unknown types degrade to advisory rather than guessing blocking.
	assert.Equal(t, types.SeverityAdvisory, findings[2].Severity)
}

func TestParseReviewerOutputEmpty(t *testing.T) {
	findings, err := parseReviewerOutput("  \n")
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestParseReviewerOutputMalformed(t *testing.T) {
	_, err := parseReviewerOutput("not json")
	assert.Error(t, err)
}

func TestCommandReviewer(t *testing.T) {
	dir := t.TempDir()
	mapping := writeFile(t, dir, "dataset.tmcf", sampleMapping)

	script := filepath.Join(dir, "reviewer.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho '[{\"type\":\"naming\",\"message\":\"unclear name\"}]'\n"), 0o755))

	r := &CommandReviewer{Command: script}
	findings, err := r.Review(context.Background(), Inputs{MappingPath: mapping})
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "REVIEWER_NAMING", findings[0].Code)
}

func TestCommandReviewerNonZeroExit(t *testing.T) {
	r := &CommandReviewer{Command: "false"}
	_, err := r.Review(context.Background(), Inputs{MappingPath: "dataset.tmcf"})
	assert.Error(t, err)
}
