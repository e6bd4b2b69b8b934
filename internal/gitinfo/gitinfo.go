// Package gitinfo resolves the source commit of the input files, when they
// live in a git repository, so the result document can pin exactly what was
// gated.
package gitinfo

import (
	"github.com/go-git/go-git/v5"

	"github.com/tablegate/tablegate/logger"
)

// SourceCommit returns the HEAD commit hash of the repository containing
// path, walking up parent directories the way git itself does. Returns
// empty when path is not inside a repository; that is not an error.
func SourceCommit(path string) string {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		logger.Debugw("input path is not in a git repository",
			logger.FieldPath, path)
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		logger.Debugw("could not resolve repository HEAD",
			logger.FieldPath, path,
			logger.FieldError, err.Error())
		return ""
	}
	return head.Hash().String()
}
