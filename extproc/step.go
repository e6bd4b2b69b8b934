// Package extproc is the uniform adapter for external process invocations:
// the graph-generation tool, the rule-evaluation engine, and the advisory
// reviewer all run through one Step abstraction so exit-status handling,
// timeouts, and failure diagnostics live in a single place.
package extproc

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/tablegate/tablegate/errors"
	"github.com/tablegate/tablegate/logger"
)

// Step describes one external invocation.
type Step struct {
	// Name labels the step in logs and error messages.
	Name string

	// Command is the binary to run; Args its arguments.
	Command string
	Args    []string

	// Dir is the working directory; empty inherits the process directory.
	Dir string

	// Env entries are appended to the inherited environment.
	Env []string

	// Timeout bounds the invocation; 0 means the caller's context governs.
	Timeout time.Duration
}

// Result is the observed outcome of a completed (or killed) invocation.
type Result struct {
	ExitCode  int
	Stdout    []byte
	Stderr    []byte
	Duration  time.Duration
	TimedOut  bool
	Cancelled bool
}

// Ok reports whether the process exited zero.
func (r Result) Ok() bool {
	return r.ExitCode == 0 && !r.TimedOut && !r.Cancelled
}

// Run executes the step. A non-zero exit is not an error here: the Result
// carries the exit status and the caller maps it to stage severity. An error
// is returned only when the process could not be started at all.
func (s Step) Run(ctx context.Context) (Result, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	cmd.Dir = s.Dir
	if len(s.Env) > 0 {
		cmd.Env = append(cmd.Environ(), s.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debugw("Running external step",
		logger.FieldOperation, s.Name,
		logger.FieldCommand, shellquote.Join(append([]string{s.Command}, s.Args...)...),
	)

	start := time.Now()
	runErr := cmd.Run()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	switch ctx.Err() {
	case context.DeadlineExceeded:
		res.TimedOut = true
	case context.Canceled:
		res.Cancelled = true
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else if res.TimedOut || res.Cancelled {
			res.ExitCode = -1
		} else {
			return res, errors.Wrapf(runErr, "failed to start %s (%s)", s.Name, s.Command)
		}
	}

	if res.Ok() {
		logger.Debugw("External step finished",
			logger.FieldOperation, s.Name,
			logger.FieldDurationMS, res.Duration.Milliseconds(),
		)
	} else {
		// Memory pressure is the usual suspect when a long-running tool
		// dies without a useful exit status.
		logger.Warnw("External step failed",
			logger.FieldOperation, s.Name,
			logger.FieldExitCode, res.ExitCode,
			logger.FieldDurationMS, res.Duration.Milliseconds(),
			"timed_out", res.TimedOut,
			"cancelled", res.Cancelled,
			"memory", memorySummary(),
		)
	}

	return res, nil
}

// SplitCommand splits a shell-quoted command line into binary and arguments.
func SplitCommand(cmdline string) (string, []string, error) {
	parts, err := shellquote.Split(cmdline)
	if err != nil {
		return "", nil, errors.Wrapf(err, "parse command line %q", cmdline)
	}
	if len(parts) == 0 {
		return "", nil, errors.Newf("empty command line")
	}
	return parts[0], parts[1:], nil
}
