// Package executor is the sole I/O boundary to the network: it runs the
// external ssh and rsync tools and reports their combined output. Commands
// are always argument vectors, never shell strings.
package executor

import (
	"context"
	"fmt"
	"os/exec"
)

// Runner executes one external command to completion and returns its combined
// stdout/stderr. A non-zero remote exit is an expected outcome and is
// reported through the error, not a panic; the captured output is valid
// either way.
type Runner interface {
	CombinedOutput(ctx context.Context, name string, args ...string) (string, error)
}

// Local runs commands on the local machine via os/exec.
type Local struct{}

func (Local) CombinedOutput(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

// Tools holds the resolved paths of the required external binaries.
type Tools struct {
	SSH   string
	Rsync string
}

// Lookup resolves ssh and rsync on PATH. A missing binary is fatal for the
// caller; the check runs once at startup so a sweep never starts half-armed.
func Lookup() (Tools, error) {
	var t Tools
	var err error
	if t.SSH, err = exec.LookPath("ssh"); err != nil {
		return Tools{}, fmt.Errorf("ssh binary not found: %w", err)
	}
	if t.Rsync, err = exec.LookPath("rsync"); err != nil {
		return Tools{}, fmt.Errorf("rsync binary not found: %w", err)
	}
	return t, nil
}
