package tabular

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablegate/tablegate/gate/types"
)

func writeCSV(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func readCSV(t *testing.T, lines ...string) *Table {
	t.Helper()
	table, err := ReadTable(writeCSV(t, lines...))
	require.NoError(t, err)
	return table
}

func findingCodes(findings []types.Finding) []string {
	codes := make([]string, 0, len(findings))
	for _, f := range findings {
		codes = append(codes, f.Code)
	}
	return codes
}

func TestCheckQuality_Clean(t *testing.T) {
	table := readCSV(t,
		"entity,date,value",
		"geoId/06,2020,39500000",
		"geoId/48,2020,29100000",
	)

	res := CheckQuality(table, QualityOptions{ValueColumn: "value"})
	assert.Equal(t, types.StatusPassed, res.Status)
	assert.Empty(t, res.Findings)
}

func TestCheckQuality_DuplicateColumns(t *testing.T) {
	table := readCSV(t,
		"entity,value,value",
		"geoId/06,1,2",
	)

	res := CheckQuality(table, QualityOptions{})
	require.Equal(t, types.StatusFailed, res.Status)
	assert.Contains(t, findingCodes(res.Findings), CodeDuplicateColumn)
	assert.Contains(t, res.Findings[0].Message, `"value"`)
}

func TestCheckQuality_EmptyColumn(t *testing.T) {
	table := readCSV(t,
		"entity,unit,value",
		"geoId/06,,1",
		"geoId/48, ,2",
	)

	res := CheckQuality(table, QualityOptions{})
	require.Equal(t, types.StatusFailed, res.Status)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, CodeEmptyColumn, res.Findings[0].Code)
	assert.Contains(t, res.Findings[0].Message, `"unit"`)
}

func TestCheckQuality_EmptyColumnAdvisoryMode(t *testing.T) {
	table := readCSV(t,
		"entity,unit,value",
		"geoId/06,,1",
	)

	res := CheckQuality(table, QualityOptions{EmptyColumnsAdvisory: true})
	// Advisory finding surfaces but does not fail the stage
	assert.Equal(t, types.StatusPassed, res.Status)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, types.SeverityAdvisory, res.Findings[0].Severity)
}

func TestCheckQuality_DuplicateRows(t *testing.T) {
	table := readCSV(t,
		"entity,date,value",
		"geoId/06,2020,1",
		"geoId/48,2020,2",
		"geoId/06,2020,1",
	)

	res := CheckQuality(table, QualityOptions{})
	require.Equal(t, types.StatusFailed, res.Status)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, CodeDuplicateRow, res.Findings[0].Code)
	// 1-based with header as row 1: the repeat is row 4
	assert.Equal(t, 4, res.Findings[0].Line)
}

func TestCheckQuality_NonNumericValues(t *testing.T) {
	table := readCSV(t,
		"entity,value",
		"geoId/06,12.5",
		"geoId/48,n/a",
		"geoId/36,",
		"geoId/12,-3",
	)

	res := CheckQuality(table, QualityOptions{ValueColumn: "value"})
	require.Equal(t, types.StatusFailed, res.Status)
	require.Len(t, res.Findings, 1)
	f := res.Findings[0]
	assert.Equal(t, CodeNonNumericValue, f.Code)
	assert.Contains(t, f.Message, `"n/a"`)
	assert.Equal(t, 3, f.Line)
}

func TestCheckQuality_NonNumericSampleCap(t *testing.T) {
	lines := []string{"entity,value"}
	for i := 0; i < 8; i++ {
		lines = append(lines, "geoId/06,bad")
	}
	// The rows are identical, so both duplicate-row and non-numeric fire;
	// every check runs, none short-circuits another.
	table := readCSV(t, lines...)

	res := CheckQuality(table, QualityOptions{ValueColumn: "value"})
	require.Equal(t, types.StatusFailed, res.Status)
	codes := findingCodes(res.Findings)
	assert.Contains(t, codes, CodeDuplicateRow)
	assert.Contains(t, codes, CodeNonNumericValue)

	for _, f := range res.Findings {
		if f.Code == CodeNonNumericValue {
			assert.Contains(t, f.Message, "(and 3 more)")
		}
	}
}

func TestCheckQuality_ValueColumnAbsentIsSkipped(t *testing.T) {
	table := readCSV(t,
		"entity,amount",
		"geoId/06,not-a-number",
	)

	res := CheckQuality(table, QualityOptions{ValueColumn: "value"})
	assert.Equal(t, types.StatusPassed, res.Status)
}

func TestCheckRowVolume(t *testing.T) {
	path := writeCSV(t,
		"entity,value",
		"geoId/06,1",
		"geoId/48,2",
		"geoId/36,3",
	)

	res := CheckRowVolume(path, 1000)
	assert.Equal(t, types.StatusPassed, res.Status)
	assert.Equal(t, RowCountRuleID, res.RuleID)
}

func TestCheckRowVolume_Exceeded(t *testing.T) {
	lines := []string{"entity,value"}
	for i := 0; i < 1001; i++ {
		lines = append(lines, "geoId/06,1")
	}
	path := writeCSV(t, lines...)

	res := CheckRowVolume(path, 1000)
	require.Equal(t, types.StatusFailed, res.Status)
	assert.Equal(t, types.SeverityBlocking, res.Severity)
	require.Len(t, res.Findings, 1)
	f := res.Findings[0]
	assert.Equal(t, CodeRowCountExceeded, f.Code)
	require.NotNil(t, f.Limit)
	assert.Equal(t, 1000, *f.Limit)
	assert.Contains(t, f.Message, "1001 data rows")
}

func TestCheckRowVolume_BlankLinesNotCounted(t *testing.T) {
	path := writeCSV(t,
		"entity,value",
		"geoId/06,1",
		"",
		"geoId/48,2",
		"   ",
	)

	count, err := CountDataRows(path)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCountDataRows_MissingFile(t *testing.T) {
	count, err := CountDataRows(filepath.Join(t.TempDir(), "absent.csv"))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
