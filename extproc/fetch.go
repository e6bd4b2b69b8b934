package extproc

// Tool binary acquisition for the import gate.
// Uses hashicorp/go-getter for flexible source handling including:
//   - Local paths
//   - HTTP(S) URLs with ?checksum=sha256:... verification
//   - Archives (zip, tar.gz) with auto-extraction

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter"

	"github.com/tablegate/tablegate/errors"
	"github.com/tablegate/tablegate/logger"
)

// FetchTool ensures the named tool binary exists in cacheDir, fetching it
// from source when absent. The fetch is idempotent and retried once on
// failure; this is the only retry in the system and it happens outside the
// per-run pipeline. Returns the path to the executable binary.
func FetchTool(ctx context.Context, source, cacheDir, name string) (string, error) {
	if cacheDir == "" {
		return "", errors.New("cache directory is not configured")
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return "", errors.Wrapf(err, "create cache directory %s", cacheDir)
	}

	dst := filepath.Join(cacheDir, name)
	if isExecutable(dst) {
		logger.Debugw("Tool binary already cached", logger.FieldBinary, dst)
		return dst, nil
	}

	var fetchErr error
	for attempt := 1; attempt <= 2; attempt++ {
		fetchErr = fetchOnce(ctx, source, dst)
		if fetchErr == nil {
			break
		}
		logger.Warnw("Tool fetch failed",
			logger.FieldBinary, name,
			"attempt", attempt,
			logger.FieldError, fetchErr,
		)
	}
	if fetchErr != nil {
		return "", errors.Wrapf(fetchErr, "fetch tool %s from %s", name, source)
	}

	if err := os.Chmod(dst, 0755); err != nil {
		return "", errors.Wrapf(err, "mark tool executable: %s", dst)
	}
	if !isExecutable(dst) {
		return "", errors.Newf("fetched tool is not an executable file: %s", dst)
	}

	logger.Infow("Tool binary fetched", logger.FieldBinary, dst)
	return dst, nil
}

func fetchOnce(ctx context.Context, source, dst string) error {
	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}

	client := &getter.Client{
		Ctx:  ctx,
		Src:  source,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeFile,
	}
	return client.Get()
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	// Unix-specific permission-bit check
	return info.Mode()&0111 != 0
}

// ExpandPath safely expands and validates a path using go-getter's detection.
// Handles ~, relative paths, and validates the result is a filesystem path.
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to get home directory")
		}
		path = filepath.Join(home, path[2:])
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to get home directory")
		}
		return home, nil
	}

	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}

	detected, err := getter.Detect(path, pwd, getter.Detectors)
	if err != nil {
		return "", errors.Wrap(err, "invalid path")
	}

	u, err := url.Parse(detected)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse path")
	}

	if u.Scheme == "file" {
		return u.Path, nil
	}
	if u.Scheme == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", errors.Wrap(err, "failed to make absolute path")
		}
		return abs, nil
	}

	return "", errors.Newf("unsupported path scheme: %s (expected file:// or local path)", u.Scheme)
}
