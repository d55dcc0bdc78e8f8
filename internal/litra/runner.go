package litra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Result captures a single invocation of the external tool.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Succeeded reports whether the invocation exited with code zero.
func (r Result) Succeeded() bool { return r.ExitCode == 0 }

// Runner abstracts external-process execution so the facade can be tested
// without spawning real processes.
type Runner interface {
	Run(ctx context.Context, args ...string) (Result, error)
}

// ExecRunner invokes the configured litra binary via os/exec. Each run is
// bounded by Timeout so a wedged tool cannot hang the caller.
type ExecRunner struct {
	Binary  string
	Timeout time.Duration
}

// NewExecRunner creates a runner for the given binary. Empty binary and zero
// timeout fall back to "litra" and 5s.
func NewExecRunner(binary string, timeout time.Duration) *ExecRunner {
	if binary == "" {
		binary = "litra"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ExecRunner{Binary: binary, Timeout: timeout}
}

func (r *ExecRunner) Run(ctx context.Context, args ...string) (Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(err, exec.ErrNotFound):
			return res, ErrToolUnavailable
		case errors.As(err, &exitErr):
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		case runCtx.Err() != nil:
			return res, fmt.Errorf("litra %v: timed out after %s: %w", args, r.Timeout, runCtx.Err())
		default:
			return res, fmt.Errorf("litra %v: %w", args, err)
		}
	}
	return res, nil
}
