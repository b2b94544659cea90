// Package workspace manages the run-wide temporary tree and the per-test
// scratch directories inside it.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultRootSuffix = ".tmp"
	scratchSuffix     = ".tmp"
)

// Case holds the workspace paths owned by a single test case
type Case struct {
	Root    string // Run-wide root the case lives under
	Scratch string // Writable directory exposed to the tool-under-test
}

// DefaultRoot returns the conventional workspace root for a suite directory
func DefaultRoot(suiteDir string) string {
	return filepath.Clean(suiteDir) + DefaultRootSuffix
}

// PrepareRoot wipes any tree left by a previous run and recreates root.
// It must complete before any test case starts.
func PrepareRoot(root string) error {
	if root == "" || filepath.Clean(root) == "/" {
		return fmt.Errorf("refusing to prepare workspace root %q", root)
	}
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("failed to remove workspace root %s: %w", root, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("failed to create workspace root %s: %w", root, err)
	}
	return nil
}

// CheckRoot refuses a root that is, or lies above, any protected directory.
// PrepareRoot deletes the whole root, so such a root would take the
// protected tree with it.
func CheckRoot(root string, protected ...string) error {
	if root == "" {
		return fmt.Errorf("workspace root cannot be empty")
	}
	root = filepath.Clean(root)
	for _, dir := range protected {
		if dir == "" {
			continue
		}
		if contains(root, filepath.Clean(dir)) {
			return fmt.Errorf("workspace root %s would delete %s", root, dir)
		}
	}
	return nil
}

// contains reports whether child is parent or lies below it
func contains(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// PrepareCase creates, if absent, the scratch directory for name under root
func PrepareCase(root string, name string) (Case, error) {
	if err := validateName(name); err != nil {
		return Case{}, err
	}

	scratch := filepath.Join(root, name+scratchSuffix)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return Case{}, fmt.Errorf("failed to create scratch directory %s: %w", scratch, err)
	}
	return Case{Root: root, Scratch: scratch}, nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid test case name %q", name)
	}
	if strings.ContainsRune(name, filepath.Separator) || strings.Contains(name, "/") {
		return fmt.Errorf("test case name %q must not contain a path separator", name)
	}
	return nil
}
