// Package catalog discovers snapshot test scripts in a suite directory.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ethereum-optimism/infra/op-snapcheck/types"
)

const DefaultScriptExt = ".sh"

// DiscoveryError is returned when tests named explicitly cannot be resolved
type DiscoveryError struct {
	SuiteDir string
	Missing  []string
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("test case(s) not found in %s: %s", e.SuiteDir, strings.Join(e.Missing, ", "))
}

// Options controls which scripts are selected
type Options struct {
	Only      []string // Explicit test names; disables directory scanning
	Skip      []string // Names or glob patterns to exclude
	ScriptExt string   // Test script extension, defaults to DefaultScriptExt
}

// Discover returns the test cases of suiteDir selected by opts, sorted by name
func Discover(suiteDir string, opts Options) ([]types.TestCase, error) {
	ext := opts.ScriptExt
	if ext == "" {
		ext = DefaultScriptExt
	}

	var (
		cases []types.TestCase
		err   error
	)
	if len(opts.Only) > 0 {
		cases, err = resolve(suiteDir, opts.Only, ext)
	} else {
		cases, err = scan(suiteDir, ext)
	}
	if err != nil {
		return nil, err
	}

	if len(opts.Skip) > 0 {
		cases, err = filter(cases, opts.Skip, ext)
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(cases, func(i, j int) bool {
		return cases[i].Name < cases[j].Name
	})
	return cases, nil
}

// resolve maps explicit names to scripts by convention without scanning
func resolve(suiteDir string, names []string, ext string) ([]types.TestCase, error) {
	seen := make(map[string]struct{}, len(names))
	var (
		cases   []types.TestCase
		missing []string
	)
	for _, name := range names {
		name = strings.TrimSuffix(name, ext)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		script := filepath.Join(suiteDir, name+ext)
		info, err := os.Stat(script)
		if err != nil || info.IsDir() {
			missing = append(missing, name)
			continue
		}
		cases = append(cases, types.NewTestCase(script, ext))
	}

	if len(missing) > 0 {
		return nil, &DiscoveryError{SuiteDir: suiteDir, Missing: missing}
	}
	return cases, nil
}

func scan(suiteDir string, ext string) ([]types.TestCase, error) {
	entries, err := os.ReadDir(suiteDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite directory: %w", err)
	}

	var cases []types.TestCase
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		cases = append(cases, types.NewTestCase(filepath.Join(suiteDir, entry.Name()), ext))
	}
	return cases, nil
}

// filter drops cases whose name, or script base name, matches a skip pattern
func filter(cases []types.TestCase, patterns []string, ext string) ([]types.TestCase, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid skip pattern %q", p)
		}
	}

	kept := cases[:0]
	for _, tc := range cases {
		if !skipped(tc, patterns, ext) {
			kept = append(kept, tc)
		}
	}
	return kept, nil
}

func skipped(tc types.TestCase, patterns []string, ext string) bool {
	for _, p := range patterns {
		for _, candidate := range []string{tc.Name, tc.Name + ext} {
			if ok, _ := doublestar.Match(p, candidate); ok {
				return true
			}
		}
	}
	return false
}
