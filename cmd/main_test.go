package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	snapcheck "github.com/ethereum-optimism/infra/op-snapcheck"
	"github.com/ethereum-optimism/infra/op-snapcheck/exitcodes"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: exitcodes.Success},
		{name: "test failure", err: snapcheck.NewTestFailureError("1 failed"), want: exitcodes.TestFailure},
		{name: "wrapped test failure", err: fmt.Errorf("run: %w", snapcheck.NewTestFailureError("1 failed")), want: exitcodes.TestFailure},
		{name: "runtime error", err: snapcheck.NewRuntimeError(snapcheck.PhaseBuild, errors.New("build failed")), want: exitcodes.RuntimeErr},
		{name: "unclassified", err: errors.New("flag provided but not defined"), want: exitcodes.RuntimeErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestNewApp(t *testing.T) {
	app := newApp()
	assert.Equal(t, "op-snapcheck", app.Name)

	var worker *cli.Command
	for _, cmd := range app.Commands {
		if cmd.Name == snapcheck.ExecCaseCommand {
			worker = cmd
		}
	}
	require.NotNil(t, worker, "worker command must be registered")
	assert.True(t, worker.Hidden)

	names := make(map[string]bool)
	for _, f := range app.Flags {
		names[f.Names()[0]] = true
	}
	for _, name := range []string{"update-snapshot", "only", "skip", "skip-build", "isolation", "repo-root"} {
		assert.True(t, names[name], "missing flag %s", name)
	}
}

// TestMain lets the test binary stand in for op-snapcheck when a process
// worker re-executes it with the hidden worker command.
func TestMain(m *testing.M) {
	if len(os.Args) > 1 && os.Args[1] == snapcheck.ExecCaseCommand {
		if err := newApp().Run(os.Args); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitcodes.RuntimeErr)
		}
		os.Exit(exitcodes.Success)
	}
	os.Exit(m.Run())
}

const fakeTool = "#!/bin/sh\nout=\"$2\"\nshift 5\necho \"tool chatter\"\n\"$@\" > \"$out\"\n"

// setupRepo lays out a suite whose cases print their own name, with the
// given expected snapshots
func setupRepo(t *testing.T, expected map[string]string) (repo, suiteDir string) {
	t.Helper()
	repo = t.TempDir()
	suiteDir = filepath.Join(repo, "Tests", "SnapshotTests")
	require.NoError(t, os.MkdirAll(suiteDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(repo, "tool"), []byte(fakeTool), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "snapcheck.yaml"), []byte("tool: tool\nhelper: tool\nprivilege: []\nshell: sh\n"), 0o644))
	for name, snapshot := range expected {
		require.NoError(t, os.WriteFile(filepath.Join(suiteDir, name+".sh"), []byte("echo "+name+"\n"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(suiteDir, name+".txt"), []byte(snapshot), 0o644))
	}
	return repo, suiteDir
}

// runApp runs the app with the exit handler's os.Exit captured
func runApp(t *testing.T, args ...string) (int, error) {
	t.Helper()
	code := exitcodes.Success
	exiter := cli.OsExiter
	cli.OsExiter = func(c int) { code = c }
	t.Cleanup(func() { cli.OsExiter = exiter })

	err := newApp().RunContext(context.Background(), append([]string{"op-snapcheck"}, args...))
	return code, err
}

func TestRunPassingSuite(t *testing.T) {
	for _, isolation := range []string{"process", "none"} {
		t.Run(isolation, func(t *testing.T) {
			repo, suiteDir := setupRepo(t, map[string]string{"hello": "hello\n", "world": "world\n"})

			code, err := runApp(t,
				"--repo-root", repo,
				"--skip-build",
				"--isolation", isolation,
				"--color", "never",
				"--log.level", "error",
			)
			require.NoError(t, err)
			assert.Equal(t, exitcodes.Success, code)
			assert.FileExists(t, filepath.Join(suiteDir+".tmp", "summary.log"))
		})
	}
}

// The default isolation carries mismatches back from the worker intact
func TestRunFailingSuiteWithProcessIsolation(t *testing.T) {
	repo, suiteDir := setupRepo(t, map[string]string{"hello": "hello\n", "drift": "before\n"})

	code, err := runApp(t,
		"--repo-root", repo,
		"--skip-build",
		"--color", "never",
		"--log.level", "error",
	)
	require.Error(t, err)
	assert.True(t, snapcheck.IsTestFailureError(err))
	assert.Equal(t, exitcodes.TestFailure, code)

	summary, err := os.ReadFile(filepath.Join(suiteDir+".tmp", "summary.log"))
	require.NoError(t, err)
	content := string(summary)
	assert.Contains(t, content, "2 tests: 1 passed, 0 updated, 1 failed")
	assert.Contains(t, content, "failed   drift (snapshot mismatch)")
	assert.Contains(t, content, "-before\n+drift\n")
	assert.Contains(t, content, "tool chatter")

	data, err := os.ReadFile(filepath.Join(suiteDir, "drift.txt"))
	require.NoError(t, err)
	assert.Equal(t, "before\n", string(data))
}

func TestRunUpdateWithProcessIsolation(t *testing.T) {
	repo, suiteDir := setupRepo(t, map[string]string{"drift": "before\n"})

	code, err := runApp(t, "--repo-root", repo, "--skip-build", "--update-snapshot", "--color", "never", "--log.level", "error")
	require.NoError(t, err)
	assert.Equal(t, exitcodes.Success, code)

	data, err := os.ReadFile(filepath.Join(suiteDir, "drift.txt"))
	require.NoError(t, err)
	assert.Equal(t, "drift\n", string(data))

	code, err = runApp(t, "--repo-root", repo, "--skip-build", "--color", "never", "--log.level", "error")
	require.NoError(t, err)
	assert.Equal(t, exitcodes.Success, code)
}

func TestRunWorkspaceAboveSuiteExitsWithRuntimeError(t *testing.T) {
	repo, suiteDir := setupRepo(t, map[string]string{"hello": "hello\n"})

	code, err := runApp(t, "--repo-root", repo, "--skip-build", "--workspace", "Tests", "--log.level", "error")
	require.Error(t, err)
	assert.Equal(t, exitcodes.RuntimeErr, code)
	assert.Equal(t, snapcheck.PhaseConfig, snapcheck.RuntimeErrorPhase(err))
	assert.FileExists(t, filepath.Join(suiteDir, "hello.sh"))
}
