package types

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// TestStatus represents the terminal state of a snapshot test
type TestStatus string

const (
	TestStatusPass    TestStatus = "passed"
	TestStatusUpdated TestStatus = "updated"
	TestStatusFail    TestStatus = "failed"
)

// IsFailure reports whether the status counts against the exit code
func (s TestStatus) IsFailure() bool {
	return s == TestStatusFail
}

// TestCase is a single discovered test script
type TestCase struct {
	Name   string `json:"name"`   // Script base name without extension
	Script string `json:"script"` // Absolute path of the script
}

// NewTestCase builds a TestCase from a script path, stripping the script extension
func NewTestCase(script string, ext string) TestCase {
	base := filepath.Base(script)
	return TestCase{
		Name:   strings.TrimSuffix(base, ext),
		Script: script,
	}
}

func (tc TestCase) String() string {
	return tc.Name
}

// Snapshot is the expected/actual path pair for a TestCase
type Snapshot struct {
	Expected string `json:"expected"` // Checked in under the suite directory
	Actual   string `json:"actual"`   // Written into the workspace root every run
}

// NewSnapshot derives the snapshot paths of a test case
func NewSnapshot(suiteDir, workspaceRoot, name, ext string) Snapshot {
	return Snapshot{
		Expected: filepath.Join(suiteDir, name+ext),
		Actual:   filepath.Join(workspaceRoot, name+ext),
	}
}

// ExecutionResult captures the outcome of running one TestCase
type ExecutionResult struct {
	Case     TestCase      `json:"case"`
	Status   TestStatus    `json:"status"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Diff     string        `json:"diff,omitempty"`
	Command  string        `json:"command"`
	Duration time.Duration `json:"duration"`
}

// Outcome is the terminal (TestCase, result) pair yielded by the scheduler.
// Exactly one of Result or Err describes the final state; a snapshot
// mismatch carries both.
type Outcome struct {
	Case   TestCase
	Result *ExecutionResult
	Err    error
}

// Status returns the effective status of the outcome
func (o Outcome) Status() TestStatus {
	if o.Err != nil || o.Result == nil {
		return TestStatusFail
	}
	return o.Result.Status
}

func (o Outcome) String() string {
	return fmt.Sprintf("%s: %s", o.Case.Name, o.Status())
}
