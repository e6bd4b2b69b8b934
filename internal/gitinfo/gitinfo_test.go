package gitinfo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceCommitOutsideRepository(t *testing.T) {
	assert.Empty(t, SourceCommit(t.TempDir()))
}

func TestSourceCommitResolvesHead(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	path := filepath.Join(dir, "data", "dataset.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("a,b\n"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("data/dataset.csv")
	require.NoError(t, err)
	hash, err := wt.Commit("add dataset", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	// Resolves from a nested path, not just the repo root.
	assert.Equal(t, hash.String(), SourceCommit(filepath.Dir(path)))
}

func TestSourceCommitEmptyRepository(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	// A repo with no commits has no HEAD to resolve.
	assert.Empty(t, SourceCommit(dir))
}
