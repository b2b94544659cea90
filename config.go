package snapcheck

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-snapcheck/flags"
	"github.com/ethereum-optimism/infra/op-snapcheck/reporting"
	"github.com/ethereum-optimism/infra/op-snapcheck/runner"
	"github.com/ethereum-optimism/infra/op-snapcheck/suite"
	"github.com/ethereum-optimism/infra/op-snapcheck/workspace"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

// Config holds the application configuration. Every path in it is absolute.
type Config struct {
	RepoRoot         string
	SuiteConfigFile  string       // Empty when running on built-in defaults
	Suite            suite.Config // Resolved against RepoRoot
	UpdateSnapshot   bool
	Only             []string
	Skip             []string
	SkipBuild        bool
	Verbose          bool
	Parallelism      int // 0 = runner.DefaultConcurrency
	Isolation        flags.IsolationMode
	Color            reporting.ColorMode
	ShowProgress     bool
	ProgressInterval time.Duration
	Metrics          opmetrics.CLIConfig
	Stdout           io.Writer
	Stderr           io.Writer
	Log              log.Logger
}

// NewConfig creates a new Config from cli context. The suite config file, if
// any, provides the base values and the suite flags override them.
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	repoRoot := ctx.String(flags.RepoRoot.Name)
	if repoRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		repoRoot = wd
	}
	repoRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for repo root '%s': %w", repoRoot, err)
	}
	if info, err := os.Stat(repoRoot); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("repo root '%s' is not a directory", repoRoot)
	}

	suiteFile, err := findSuiteConfig(repoRoot, ctx.String(flags.SuiteConfig.Name))
	if err != nil {
		return nil, err
	}
	suiteCfg := suite.Default()
	if suiteFile != "" {
		if suiteCfg, err = suite.Load(suiteFile); err != nil {
			return nil, err
		}
	}

	if v := ctx.String(flags.SuiteDir.Name); v != "" {
		suiteCfg.SuiteDir = v
	}
	if v := ctx.String(flags.Workspace.Name); v != "" {
		suiteCfg.Workspace = v
	}
	if v := ctx.String(flags.Tool.Name); v != "" {
		suiteCfg.Tool = v
	}
	if v := ctx.String(flags.Helper.Name); v != "" {
		suiteCfg.Helper = v
	}
	if err := suiteCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid suite configuration: %w", err)
	}
	suiteCfg = suiteCfg.Resolve(repoRoot)
	if suiteCfg.Workspace == "" {
		suiteCfg.Workspace = workspace.DefaultRoot(suiteCfg.SuiteDir)
	}
	if err := workspace.CheckRoot(suiteCfg.Workspace, suiteCfg.SuiteDir, repoRoot); err != nil {
		return nil, fmt.Errorf("invalid workspace: %w", err)
	}

	isolation := flags.IsolationMode(ctx.String(flags.Isolation.Name))
	if !isolation.IsValid() {
		return nil, fmt.Errorf("invalid isolation mode: %s. Must be one of: %s, %s",
			isolation, flags.IsolationProcess, flags.IsolationNone)
	}
	color, err := reporting.ParseColorMode(ctx.String(flags.Color.Name))
	if err != nil {
		return nil, err
	}

	parallelism := ctx.Int(flags.Parallelism.Name)
	if parallelism < 0 {
		return nil, errors.New("parallelism must not be negative")
	}

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if err := metricsCfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid metrics config: %w", err)
	}

	return &Config{
		RepoRoot:         repoRoot,
		SuiteConfigFile:  suiteFile,
		Suite:            suiteCfg,
		UpdateSnapshot:   ctx.Bool(flags.UpdateSnapshot.Name),
		Only:             ctx.StringSlice(flags.Only.Name),
		Skip:             ctx.StringSlice(flags.Skip.Name),
		SkipBuild:        ctx.Bool(flags.SkipBuild.Name),
		Verbose:          ctx.Bool(flags.Verbose.Name),
		Parallelism:      parallelism,
		Isolation:        isolation,
		Color:            color,
		ShowProgress:     ctx.Bool(flags.ShowProgress.Name),
		ProgressInterval: ctx.Duration(flags.ProgressInterval.Name),
		Metrics:          metricsCfg,
		Stdout:           os.Stdout,
		Stderr:           os.Stderr,
		Log:              log,
	}, nil
}

// findSuiteConfig returns the explicit suite file, or the default file in the
// repo root when it exists, or "" to run on built-in defaults
func findSuiteConfig(repoRoot, explicit string) (string, error) {
	if explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return "", fmt.Errorf("failed to resolve absolute path for suite config '%s': %w", explicit, err)
		}
		return abs, nil
	}
	candidate := filepath.Join(repoRoot, suite.DefaultConfigFile)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to check for suite config '%s': %w", candidate, err)
	}
	return "", nil
}

// ExecutorConfig derives what each worker needs to run a case
func (c *Config) ExecutorConfig() runner.ExecutorConfig {
	return runner.ExecutorConfig{
		WorkDir:     c.RepoRoot,
		SuiteDir:    c.Suite.SuiteDir,
		Workspace:   c.Suite.Workspace,
		Tool:        c.Suite.Tool,
		Helper:      c.Suite.Helper,
		Privilege:   c.Suite.Privilege,
		ScratchEnv:  c.Suite.ScratchEnv,
		HelperEnv:   c.Suite.HelperEnv,
		Format:      c.Suite.Format,
		Shell:       c.Suite.Shell,
		SnapshotExt: c.Suite.SnapshotExt,
	}
}
