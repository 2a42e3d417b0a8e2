// Package execx wraps external command execution behind a small interface so
// stage logic can be exercised against a scripted runner in tests.
package execx

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes external commands. Every call blocks until the command
// finishes.
type Runner interface {
	// Run executes the command, folding combined output into the error.
	Run(ctx context.Context, name string, args ...string) error

	// Output executes the command and returns trimmed stdout.
	Output(ctx context.Context, name string, args ...string) (string, error)

	// ExitCode executes the command and returns its exit code. A non-exit
	// error (binary missing, context cancelled) is returned as err with
	// code -1.
	ExitCode(ctx context.Context, name string, args ...string) (int, error)
}

// Local runs commands on the host.
type Local struct{}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
		}
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return nil
}

func (l *Local) Output(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if msg := strings.TrimSpace(string(exitErr.Stderr)); msg != "" {
				return "", fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
			}
		}
		return "", fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (l *Local) ExitCode(ctx context.Context, name string, args ...string) (int, error) {
	err := exec.CommandContext(ctx, name, args...).Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
}
