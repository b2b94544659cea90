package snapcheck

import (
	"errors"
	"fmt"
)

// Phase names the stage of a run that failed before any test result existed
type Phase string

const (
	PhaseConfig    Phase = "config"
	PhaseBuild     Phase = "build"
	PhaseWorkspace Phase = "workspace"
	PhaseDiscovery Phase = "discovery"
	PhaseWorker    Phase = "worker"
)

// RuntimeError means the run could not be carried out at all. It maps to
// exit code 2. Phase tells a failed build apart from an unknown test name
// without inspecting the message.
type RuntimeError struct {
	Phase Phase
	Err   error
}

func (e *RuntimeError) Error() string {
	if e.Phase == "" {
		return fmt.Sprintf("runtime error: %v", e.Err)
	}
	return fmt.Sprintf("runtime error during %s: %v", e.Phase, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func NewRuntimeError(phase Phase, err error) *RuntimeError {
	return &RuntimeError{Phase: phase, Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// RuntimeErrorPhase returns the failed phase, or "" if err carries no RuntimeError
func RuntimeErrorPhase(err error) Phase {
	var runtimeErr *RuntimeError
	if err == nil || !errors.As(err, &runtimeErr) {
		return ""
	}
	return runtimeErr.Phase
}

// TestFailureError means the run completed but at least one test failed (exit code 1)
type TestFailureError struct {
	Message string
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %s", e.Message)
}

func NewTestFailureError(message string) *TestFailureError {
	return &TestFailureError{Message: message}
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}
