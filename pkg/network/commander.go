package network

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Commander runs host binaries such as weave and iptables
type Commander interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecCommander runs commands with os/exec
type ExecCommander struct{}

// Run executes name with args and returns its combined output
func (ExecCommander) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, &ExitError{
			Command:  name + " " + strings.Join(args, " "),
			ExitCode: exitCode(err),
			Output:   strings.TrimSpace(string(output)),
			Err:      err,
		}
	}
	return output, nil
}

// ExitError describes a host command that failed
type ExitError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s failed with exit code %d: %s", e.Command, e.ExitCode, e.Output)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
