package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// invocation is one external tool call. It is executed directly, never
// through a shell; String is only for logs and dry runs.
type invocation struct {
	Name string
	Args []string
	Dir  string
}

func (inv invocation) String() string {
	parts := make([]string, 0, len(inv.Args)+1)
	parts = append(parts, shellQuote(inv.Name))
	for _, a := range inv.Args {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

func (inv invocation) command(stdout, stderr io.Writer) *exec.Cmd {
	cmd := exec.Command(inv.Name, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd
}

// commandError reports a tool that could not be started (ExitCode -1) or
// exited non-zero.
type commandError struct {
	Command  string
	ExitCode int
	Err      error
}

func (e *commandError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("command '%s' failed due to O/S error: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("command '%s' failed with non-zero exit status: %d", e.Command, e.ExitCode)
}

func (e *commandError) Unwrap() error {
	return e.Err
}

func asCommandError(inv invocation, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &commandError{Command: inv.String(), ExitCode: exitErr.ExitCode(), Err: err}
	}
	return &commandError{Command: inv.String(), ExitCode: -1, Err: err}
}

// run executes inv with stdout and stderr streamed to the terminal.
func (inv invocation) run() error {
	logf("Running: %s", inv)
	return asCommandError(inv, inv.command(os.Stderr, os.Stderr).Run())
}

// runTo executes inv with stdout redirected to w.
func (inv invocation) runTo(w io.Writer) error {
	logf("Running: %s", inv)
	return asCommandError(inv, inv.command(w, os.Stderr).Run())
}

// output executes inv and returns its stdout.
func (inv invocation) output() ([]byte, error) {
	var buf bytes.Buffer
	err := asCommandError(inv, inv.command(&buf, os.Stderr).Run())
	return buf.Bytes(), err
}
