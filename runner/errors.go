package runner

import (
	"errors"
	"fmt"
)

var errNoResult = errors.New("worker returned neither result nor error")

// InfrastructureError is a per-test failure unrelated to the snapshot
// content: the workspace, the tool launch or file I/O went wrong.
type InfrastructureError struct {
	Case    string
	Op      string // What the executor was doing, e.g. "run tool"
	Command string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Case, e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

// SnapshotMismatchError reports that the actual output differs from the
// recorded snapshot while update mode is off.
type SnapshotMismatchError struct {
	Case    string
	Command string
	Diff    string
	Stdout  string
	Stderr  string
}

func (e *SnapshotMismatchError) Error() string {
	return fmt.Sprintf("snapshot mismatch: %s", e.Case)
}

// IsInfrastructureError checks if the error is or wraps an InfrastructureError
func IsInfrastructureError(err error) bool {
	var infraErr *InfrastructureError
	return err != nil && errors.As(err, &infraErr)
}

// IsSnapshotMismatch checks if the error is or wraps a SnapshotMismatchError
func IsSnapshotMismatch(err error) bool {
	var mismatch *SnapshotMismatchError
	return err != nil && errors.As(err, &mismatch)
}
