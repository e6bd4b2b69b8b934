package extproc

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/tablegate/tablegate/errors"
)

// semverPattern matches the first version-looking token of --version output.
var semverPattern = regexp.MustCompile(`v?\d+\.\d+(\.\d+)?(-[0-9A-Za-z.-]+)?`)

// CheckVersion runs `<binary> --version` and verifies the reported version
// against a semver constraint. An empty constraint passes without invoking
// the binary.
func CheckVersion(ctx context.Context, binary, constraint string) error {
	if constraint == "" {
		return nil
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return errors.Wrapf(err, "invalid version constraint %q", constraint)
	}

	step := Step{
		Name:    "tool-version",
		Command: binary,
		Args:    []string{"--version"},
		Timeout: 30 * time.Second,
	}
	res, err := step.Run(ctx)
	if err != nil {
		return errors.Wrapf(err, "query version of %s", binary)
	}
	if !res.Ok() {
		return errors.Newf("%s --version exited %d", binary, res.ExitCode)
	}

	output := strings.TrimSpace(string(res.Stdout))
	if output == "" {
		output = strings.TrimSpace(string(res.Stderr))
	}
	raw := semverPattern.FindString(output)
	if raw == "" {
		return errors.Newf("could not parse a version from %s --version output: %q", binary, output)
	}

	v, err := semver.NewVersion(strings.TrimPrefix(raw, "v"))
	if err != nil {
		return errors.Wrapf(err, "parse tool version %q", raw)
	}

	if !c.Check(v) {
		return errors.Newf("tool version %s does not satisfy constraint %s", v, constraint)
	}
	return nil
}
