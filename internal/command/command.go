// Package command runs external programs and reports a structured outcome for
// every invocation. A process that exits non-zero is always an error; callers
// never have to inspect the exit code themselves.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Result describes a finished external process.
type Result struct {
	// Args is the full argv, including the program name.
	Args []string

	// Dir is the working directory the process ran in.
	Dir string

	// ExitCode is the process exit status, or -1 if the process could not be
	// started or was killed.
	ExitCode int

	Stdout []byte
	Stderr []byte
}

// ExitError is returned when a process could not be started or did not exit
// cleanly.
type ExitError struct {
	Result *Result
	Err    error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: %v", strings.Join(e.Result.Args, " "), e.Err)
	if stderr := strings.TrimSpace(string(e.Result.Stderr)); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Run executes name with args in dir and waits for it to finish. The process
// is killed if ctx is cancelled. The returned Result is non-nil even when an
// error is returned.
func Run(ctx context.Context, dir, name string, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &Result{
		Args:     append([]string{name}, args...),
		Dir:      dir,
		ExitCode: -1,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(err, ctxErr)
		}
		return result, &ExitError{Result: result, Err: err}
	}
	return result, nil
}
