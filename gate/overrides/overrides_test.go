package overrides

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablegate/tablegate/gate/types"
)

const sampleYAML = `
us_census_acs:
  - check_row_count
  - Check_Min_Value
weather_stations: []
`

func TestParseYAML(t *testing.T) {
	table, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.True(t, table.Contains("us_census_acs", "check_row_count"))
	// Ids normalize on load and on lookup.
	assert.True(t, table.Contains("us_census_acs", "CHECK_MIN_VALUE"))
	assert.True(t, table.Contains("  US_Census_ACS  ", "check_row_count"))
	assert.False(t, table.Contains("us_census_acs", "check_other"))
	assert.False(t, table.Contains("weather_stations", "check_row_count"))
	assert.False(t, table.Contains("unknown_dataset", "check_row_count"))
}

func TestParseJSON(t *testing.T) {
	table, err := Parse([]byte(`{"us_census_acs": ["check_row_count"]}`))
	require.NoError(t, err)
	assert.True(t, table.Contains("us_census_acs", "check_row_count"))
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte("not: [valid\n"))
	assert.Error(t, err)
}

func TestLoadMissingFileIsEmptyTable(t *testing.T) {
	table, err := Load(filepath.Join(t.TempDir(), "warn_only.yaml"))
	require.NoError(t, err)
	assert.False(t, table.Contains("any", "check_row_count"))
	assert.Empty(t, table.IDs("any"))
}

func TestLoadEmptyPathIsEmptyTable(t *testing.T) {
	table, err := Load("")
	require.NoError(t, err)
	assert.False(t, table.Contains("any", "check_row_count"))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn_only.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	table, err := Load(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"check_row_count", "check_min_value"}, table.IDs("us_census_acs"))
}

func TestReclassifyOutcomes(t *testing.T) {
	table, err := Parse([]byte(`us_census_acs: [check_min_value]`))
	require.NoError(t, err)

	in := []types.RuleOutcome{
		{RuleID: "check_min_value", Status: types.OutcomeFailed, Detail: "value below minimum"},
		{RuleID: "check_max_value", Status: types.OutcomeFailed, Detail: "value above maximum"},
		{RuleID: "check_min_value", Status: types.OutcomePassed},
	}
	out := table.ReclassifyOutcomes("us_census_acs", in)

	require.Len(t, out, 3)
	assert.Equal(t, types.OutcomeWarning, out[0].Status)
	assert.Equal(t, string(types.OutcomeFailed), out[0].ReclassifiedFrom)
	// Unlisted rules and non-failed outcomes are untouched.
	assert.Equal(t, types.OutcomeFailed, out[1].Status)
	assert.Empty(t, out[1].ReclassifiedFrom)
	assert.Equal(t, types.OutcomePassed, out[2].Status)
	assert.Empty(t, out[2].ReclassifiedFrom)

	// The input slice is never mutated.
	assert.Equal(t, types.OutcomeFailed, in[0].Status)
}

func TestReclassifyOutcomesOtherDataset(t *testing.T) {
	table, err := Parse([]byte(`us_census_acs: [check_min_value]`))
	require.NoError(t, err)

	in := []types.RuleOutcome{{RuleID: "check_min_value", Status: types.OutcomeFailed}}
	out := table.ReclassifyOutcomes("weather_stations", in)
	assert.Equal(t, types.OutcomeFailed, out[0].Status)
}

func TestReclassifyResults(t *testing.T) {
	table, err := Parse([]byte(`us_census_acs: [check_row_count]`))
	require.NoError(t, err)

	in := []types.StageResult{
		{Stage: "ROW_VOLUME", Status: types.StatusFailed, Severity: types.SeverityBlocking, RuleID: "check_row_count"},
		{Stage: "QUALITY", Status: types.StatusFailed, Severity: types.SeverityBlocking},
	}
	out := table.ReclassifyResults("us_census_acs", in)

	assert.Equal(t, types.SeverityAdvisory, out[0].Severity)
	assert.Equal(t, string(types.SeverityBlocking), out[0].ReclassifiedFrom)
	assert.False(t, out[0].Blocking())
	// Results without a governing rule id stay blocking.
	assert.True(t, out[1].Blocking())
}
