package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// RunResult holds the captured output of a finished process
type RunResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Runner executes an external program
type Runner interface {
	Run(ctx context.Context, name string, args []string) (*RunResult, error)
}

// ExecRunner runs programs with os/exec
type ExecRunner struct {
	// Dir is the working directory; empty means the current one
	Dir string
	// WaitDelay bounds how long to wait for output pipes after cancellation
	WaitDelay time.Duration
}

// Run starts name with args and waits for it. A non-zero exit is reported in
// RunResult.ExitCode with a nil error; err is set only when the process could
// not be started or ctx ended first.
func (r ExecRunner) Run(ctx context.Context, name string, args []string) (*RunResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &RunResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("%s cancelled: %w", name, ctxErr)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("failed to execute %s: %w", name, err)
	}

	return result, nil
}
