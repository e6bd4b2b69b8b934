package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablegate/tablegate/gate/types"
)

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	return path
}

func TestCheck_AllValid(t *testing.T) {
	dir := t.TempDir()
	in := Inputs{
		Mapping:  writeFile(t, dir, "import.tmcf"),
		Table:    writeFile(t, dir, "import.csv"),
		Metadata: []string{writeFile(t, dir, "stat_vars.mcf")},
	}

	res := Check(in)
	assert.Equal(t, types.StatusPassed, res.Status)
	assert.Equal(t, types.SeverityBlocking, res.Severity)
	assert.Empty(t, res.Findings)
}

func TestCheck_MappingAcceptsBothSuffixes(t *testing.T) {
	dir := t.TempDir()
	in := Inputs{
		Mapping: writeFile(t, dir, "import.mcf"),
		Table:   writeFile(t, dir, "import.csv"),
	}

	res := Check(in)
	assert.Equal(t, types.StatusPassed, res.Status)
}

func TestCheck_MissingMapping(t *testing.T) {
	dir := t.TempDir()
	in := Inputs{
		Mapping: filepath.Join(dir, "nope.tmcf"),
		Table:   writeFile(t, dir, "import.csv"),
	}

	res := Check(in)
	require.Equal(t, types.StatusFailed, res.Status)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, CodeMissingFile, res.Findings[0].Code)
	assert.Contains(t, res.Findings[0].Message, "mapping file not found")
}

func TestCheck_WrongExtensions(t *testing.T) {
	dir := t.TempDir()
	in := Inputs{
		Mapping:  writeFile(t, dir, "import.txt"),
		Table:    writeFile(t, dir, "import.tsv"),
		Metadata: []string{writeFile(t, dir, "stat_vars.json")},
	}

	res := Check(in)
	require.Equal(t, types.StatusFailed, res.Status)
	require.Len(t, res.Findings, 3)
	for _, f := range res.Findings {
		assert.Equal(t, CodeWrongExtension, f.Code)
	}
	assert.Contains(t, res.Findings[0].Message, ".tmcf or .mcf")
	assert.Contains(t, res.Findings[1].Message, ".csv")
}

func TestCheck_OptionalMetadataSkippedWhenBlank(t *testing.T) {
	dir := t.TempDir()
	in := Inputs{
		Mapping:  writeFile(t, dir, "import.tmcf"),
		Table:    writeFile(t, dir, "import.csv"),
		Metadata: []string{"", "  "},
	}

	res := Check(in)
	assert.Equal(t, types.StatusPassed, res.Status)
}

func TestCheck_ReportsEveryViolation(t *testing.T) {
	dir := t.TempDir()
	in := Inputs{
		Mapping: filepath.Join(dir, "missing.tmcf"),
		Table:   filepath.Join(dir, "missing.csv"),
	}

	res := Check(in)
	assert.Len(t, res.Findings, 2)
}
