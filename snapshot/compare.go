// Package snapshot compares recorded snapshots with freshly produced output.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	diffContextLines = 3
	noNewlineMarker  = `\ No newline at end of file`
)

// Comparison is the verdict of comparing an expected snapshot with an actual one
type Comparison struct {
	Identical bool
	Diff      string // Unified diff, empty when Identical
	Missing   bool   // Expected snapshot did not exist
}

// Compare diffs expectedPath against actualPath line by line. A missing
// expected snapshot is reported as a difference, not an error. Compare never
// writes to either file.
func Compare(expectedPath, actualPath string) (Comparison, error) {
	actual, err := os.ReadFile(actualPath)
	if err != nil {
		return Comparison{}, fmt.Errorf("failed to read actual snapshot: %w", err)
	}

	missing := false
	expected, err := os.ReadFile(expectedPath)
	if errors.Is(err, fs.ErrNotExist) {
		missing = true
		expected = nil
	} else if err != nil {
		return Comparison{}, fmt.Errorf("failed to read expected snapshot: %w", err)
	}

	if !missing && bytes.Equal(expected, actual) {
		return Comparison{Identical: true}, nil
	}

	diff, err := UnifiedDiff(expectedPath, actualPath, expected, actual)
	if err != nil {
		return Comparison{}, err
	}
	if diff == "" && !missing {
		return Comparison{Identical: true}, nil
	}
	if diff == "" {
		// Both sides empty but no snapshot on disk yet
		diff = fmt.Sprintf("--- %s\n+++ %s\n", expectedPath, actualPath)
	}
	return Comparison{Diff: diff, Missing: missing}, nil
}

// UnifiedDiff renders a unified diff between two blobs
func UnifiedDiff(fromName, toName string, from, to []byte) (string, error) {
	ud := difflib.UnifiedDiff{
		A:        splitLines(from),
		B:        splitLines(to),
		FromFile: fromName,
		ToFile:   toName,
		Context:  diffContextLines,
	}
	diff, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", fmt.Errorf("failed to render diff: %w", err)
	}
	return diff, nil
}

// splitLines keeps each line's terminator. A last line without one carries
// the diff(1) marker, so a change to the final newline alone shows up.
func splitLines(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	lines := strings.SplitAfter(string(b), "\n")
	last := len(lines) - 1
	if lines[last] == "" {
		return lines[:last]
	}
	lines[last] += "\n" + noNewlineMarker + "\n"
	return lines
}

// Accept overwrites expectedPath with the exact bytes of actualPath
func Accept(expectedPath, actualPath string) error {
	data, err := os.ReadFile(actualPath)
	if err != nil {
		return fmt.Errorf("failed to read actual snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expectedPath), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := os.WriteFile(expectedPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write expected snapshot: %w", err)
	}
	return nil
}
