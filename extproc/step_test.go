package extproc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepRun_Success(t *testing.T) {
	step := Step{
		Name:    "echo",
		Command: "echo",
		Args:    []string{"hello"},
	}

	res, err := step.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Ok())
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, string(res.Stdout), "hello")
}

func TestStepRun_NonZeroExitIsNotAnError(t *testing.T) {
	step := Step{
		Name:    "false",
		Command: "false",
	}

	res, err := step.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Ok())
	assert.Equal(t, 1, res.ExitCode)
}

func TestStepRun_MissingBinaryIsAnError(t *testing.T) {
	step := Step{
		Name:    "missing",
		Command: "/nonexistent/binary-that-does-not-exist",
	}

	_, err := step.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start")
}

func TestStepRun_Timeout(t *testing.T) {
	step := Step{
		Name:    "sleep",
		Command: "sleep",
		Args:    []string{"5"},
		Timeout: 50 * time.Millisecond,
	}

	res, err := step.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.False(t, res.Ok())
}

func TestStepRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	step := Step{
		Name:    "sleep",
		Command: "sleep",
		Args:    []string{"5"},
	}

	res, err := step.Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.False(t, res.Ok())
}

func TestSplitCommand(t *testing.T) {
	cmd, args, err := SplitCommand(`python3 review.py --mode "schema check"`)
	require.NoError(t, err)
	assert.Equal(t, "python3", cmd)
	assert.Equal(t, []string{"review.py", "--mode", "schema check"}, args)

	_, _, err = SplitCommand("")
	assert.Error(t, err)
}

func TestFetchTool_CachedBinaryIsReused(t *testing.T) {
	cacheDir := t.TempDir()
	binary := filepath.Join(cacheDir, "dc-import")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0755))

	got, err := FetchTool(context.Background(), "https://unreachable.invalid/tool", cacheDir, "dc-import")
	require.NoError(t, err)
	assert.Equal(t, binary, got)
}

func TestFetchTool_LocalSource(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "tool-binary")
	require.NoError(t, os.WriteFile(src, []byte("#!/bin/sh\nexit 0\n"), 0644))

	cacheDir := t.TempDir()
	got, err := FetchTool(context.Background(), src, cacheDir, "dc-import")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cacheDir, "dc-import"), got)
	assert.True(t, isExecutable(got))
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tool.toml")
	content := `
name = "dc-import"
source = "https://example.com/dc-import?checksum=sha256:deadbeef"
version_constraint = ">= 0.3, < 1.0"
extra_args = "--verbose"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "dc-import", m.Name)
	assert.Equal(t, ">= 0.3, < 1.0", m.VersionConstraint)
}

func TestLoadManifest_UnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tool.toml")
	require.NoError(t, os.WriteFile(path, []byte("name = \"x\"\nbogus = 1\n"), 0644))

	_, err := LoadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestCheckVersion_EmptyConstraintPasses(t *testing.T) {
	assert.NoError(t, CheckVersion(context.Background(), "/nonexistent", ""))
}
