// Package build runs the commands that produce the tool-under-test before
// any snapshot test executes.
package build

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/pkg/errors"
)

// BuildError reports the first build command that did not succeed
type BuildError struct {
	Command string
	Err     error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build command %q failed: %v", e.Command, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Runner executes build commands sequentially through a shell
type Runner struct {
	Dir    string    // Working directory, normally the repository root
	Shell  string    // Interpreter used as `<shell> -c <command>`
	Stdout io.Writer // Receives the echoed command and its output
	Stderr io.Writer
	Color  bool
	Log    log.Logger
}

// Run executes every command in order and stops at the first failure
func (r *Runner) Run(ctx context.Context, commands []string) error {
	shell := r.Shell
	if shell == "" {
		shell = "sh"
	}
	logger := r.Log
	if logger == nil {
		logger = log.Root()
	}

	for _, command := range commands {
		echo := "$ " + command
		if r.Color {
			echo = text.Colors{text.FgCyan}.Sprint(echo)
		}
		if r.Stdout != nil {
			fmt.Fprintln(r.Stdout, echo)
		}

		logger.Debug("Running build command", "command", command, "dir", r.Dir)
		cmd := exec.CommandContext(ctx, shell, "-c", command)
		cmd.Dir = r.Dir
		cmd.Stdout = r.Stdout
		cmd.Stderr = r.Stderr
		if err := cmd.Run(); err != nil {
			logger.Error("Build command failed", "command", command, "err", err)
			return &BuildError{Command: command, Err: errors.WithStack(err)}
		}
	}
	return nil
}

// IsBuildError checks if the error is or wraps a BuildError
func IsBuildError(err error) bool {
	var buildErr *BuildError
	return err != nil && errors.As(err, &buildErr)
}
