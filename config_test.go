package snapcheck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-snapcheck/flags"
	"github.com/ethereum-optimism/infra/op-snapcheck/reporting"
)

// loadConfig runs NewConfig inside a cli app carrying the real flag set
func loadConfig(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var (
		cfg    *Config
		cfgErr error
	)
	app := &cli.App{
		Flags: flags.Flags,
		Action: func(ctx *cli.Context) error {
			cfg, cfgErr = NewConfig(ctx, log.New())
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"op-snapcheck"}, args...)))
	return cfg, cfgErr
}

func TestNewConfig_Defaults(t *testing.T) {
	repo := t.TempDir()

	cfg, err := loadConfig(t, "--repo-root", repo)
	require.NoError(t, err)

	assert.Equal(t, repo, cfg.RepoRoot)
	assert.Empty(t, cfg.SuiteConfigFile)
	assert.Equal(t, filepath.Join(repo, "Tests", "SnapshotTests"), cfg.Suite.SuiteDir)
	assert.Equal(t, filepath.Join(repo, "Tests", "SnapshotTests.tmp"), cfg.Suite.Workspace)
	assert.Equal(t, filepath.Join(repo, ".build", "debug", "mkcheck2"), cfg.Suite.Tool)
	assert.Equal(t, filepath.Join(repo, ".build", "debug", "mkcheck2-test-utils"), cfg.Suite.Helper)
	assert.Equal(t, []string{"sudo"}, cfg.Suite.Privilege)
	assert.Len(t, cfg.Suite.Build, 4)
	assert.Equal(t, flags.IsolationProcess, cfg.Isolation)
	assert.Equal(t, reporting.ColorAuto, cfg.Color)
	assert.False(t, cfg.UpdateSnapshot)
	assert.Zero(t, cfg.Parallelism)

	execCfg := cfg.ExecutorConfig()
	assert.Equal(t, repo, execCfg.WorkDir)
	assert.Equal(t, cfg.Suite.Workspace, execCfg.Workspace)
	assert.NoError(t, execCfg.Validate())
}

func TestNewConfig_SuiteFileAndOverrides(t *testing.T) {
	repo := t.TempDir()
	content := []byte(`
suite_dir: snapshots
tool: bin/tool
helper: bin/helper
privilege: []
build:
  - make
`)
	require.NoError(t, os.WriteFile(filepath.Join(repo, "snapcheck.yaml"), content, 0o644))

	cfg, err := loadConfig(t,
		"--repo-root", repo,
		"--tool", "/usr/bin/tracer",
		"--workspace", "out",
		"--update-snapshot",
		"--only", "stat",
		"--skip", "link*",
		"-j", "3",
		"--isolation", "none",
		"--color", "never",
	)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(repo, "snapcheck.yaml"), cfg.SuiteConfigFile)
	assert.Equal(t, filepath.Join(repo, "snapshots"), cfg.Suite.SuiteDir)
	assert.Equal(t, filepath.Join(repo, "out"), cfg.Suite.Workspace)
	assert.Equal(t, "/usr/bin/tracer", cfg.Suite.Tool)
	assert.Equal(t, filepath.Join(repo, "bin", "helper"), cfg.Suite.Helper)
	assert.Empty(t, cfg.Suite.Privilege)
	assert.Equal(t, []string{"make"}, cfg.Suite.Build)
	assert.True(t, cfg.UpdateSnapshot)
	assert.Equal(t, []string{"stat"}, cfg.Only)
	assert.Equal(t, []string{"link*"}, cfg.Skip)
	assert.Equal(t, 3, cfg.Parallelism)
	assert.Equal(t, flags.IsolationNone, cfg.Isolation)
	assert.Equal(t, reporting.ColorNever, cfg.Color)
}

// A workspace above the suite must be refused before anything is deleted
func TestNewConfig_WorkspaceContainingSuiteKeepsSuite(t *testing.T) {
	repo := t.TempDir()
	suiteDir := filepath.Join(repo, "Tests", "SnapshotTests")
	require.NoError(t, os.MkdirAll(suiteDir, 0o755))
	script := filepath.Join(suiteDir, "a.sh")
	require.NoError(t, os.WriteFile(script, []byte("echo a\n"), 0o644))

	_, err := loadConfig(t, "--repo-root", repo, "--skip-build", "--workspace", "Tests")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "would delete")
	assert.FileExists(t, script)
}

func TestNewConfig_Errors(t *testing.T) {
	repo := t.TempDir()
	badSuite := filepath.Join(repo, "bad.toml")
	require.NoError(t, os.WriteFile(badSuite, []byte("suite_dir = ["), 0o644))

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing repo root", args: []string{"--repo-root", filepath.Join(repo, "nope")}},
		{name: "missing suite config", args: []string{"--repo-root", repo, "--suite-config", filepath.Join(repo, "nope.yaml")}},
		{name: "malformed suite config", args: []string{"--repo-root", repo, "--suite-config", badSuite}},
		{name: "negative parallelism", args: []string{"--repo-root", repo, "-j", "-1"}},
		{name: "workspace equals suite", args: []string{"--repo-root", repo, "--suite-dir", "s", "--workspace", "s"}},
		{name: "workspace above suite", args: []string{"--repo-root", repo, "--workspace", "Tests"}},
		{name: "workspace above repo", args: []string{"--repo-root", repo, "--workspace", ".."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
