package flags

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "OP_SNAPCHECK"

// IsolationMode selects where each test case's pipeline runs
type IsolationMode string

const (
	IsolationProcess IsolationMode = "process"
	IsolationNone    IsolationMode = "none"
)

func (m IsolationMode) String() string {
	return string(m)
}

func (m IsolationMode) IsValid() bool {
	switch m {
	case IsolationProcess, IsolationNone:
		return true
	default:
		return false
	}
}

func ValidIsolationModes() []IsolationMode {
	return []IsolationMode{IsolationProcess, IsolationNone}
}

func validateIsolation(value string) error {
	if !IsolationMode(value).IsValid() {
		return fmt.Errorf("isolation must be one of: %s, %s (got %q)", IsolationProcess, IsolationNone, value)
	}
	return nil
}

var validColorModes = []string{"auto", "always", "never"}

func validateColor(value string) error {
	for _, m := range validColorModes {
		if value == m {
			return nil
		}
	}
	return fmt.Errorf("color must be one of: %s (got %q)", strings.Join(validColorModes, ", "), value)
}

var (
	UpdateSnapshot = &cli.BoolFlag{
		Name:    "update-snapshot",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "UPDATE_SNAPSHOT"),
		Usage:   "Overwrite expected snapshots that differ from the actual output",
	}
	Only = &cli.StringSliceFlag{
		Name:    "only",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ONLY"),
		Usage:   "Only run the named test case(s); may be repeated",
	}
	Skip = &cli.StringSliceFlag{
		Name:    "skip",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SKIP"),
		Usage:   "Skip the named test case(s); accepts glob patterns and may be repeated",
	}
	SkipBuild = &cli.BoolFlag{
		Name:    "skip-build",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SKIP_BUILD"),
		Usage:   "Skip the build commands that run before the tests",
	}
	Verbose = &cli.BoolFlag{
		Name:    "verbose",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "VERBOSE"),
		Usage:   "Print captured stdout/stderr of passing tests",
	}
	Parallelism = &cli.IntFlag{
		Name:    "parallelism",
		Aliases: []string{"j"},
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PARALLELISM"),
		Usage:   "Number of test cases to run at once (0 = number of CPUs)",
	}
	SuiteConfig = &cli.StringFlag{
		Name:    "suite-config",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SUITE_CONFIG"),
		Usage:   "Path to a yaml or toml suite config (default: snapcheck.yaml in the repo root, if present)",
	}
	RepoRoot = &cli.StringFlag{
		Name:    "repo-root",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPO_ROOT"),
		Usage:   "Repository root that builds run in and relative paths resolve against (default: working directory)",
	}
	SuiteDir = &cli.StringFlag{
		Name:    "suite-dir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SUITE_DIR"),
		Usage:   "Directory holding test scripts and expected snapshots (default: Tests/SnapshotTests)",
	}
	Workspace = &cli.StringFlag{
		Name:    "workspace",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WORKSPACE"),
		Usage:   "Run-wide temporary root, wiped at startup (default: <suite-dir>.tmp)",
	}
	Tool = &cli.StringFlag{
		Name:    "tool",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TOOL"),
		Usage:   "Path to the tool under test",
	}
	Helper = &cli.StringFlag{
		Name:    "helper",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HELPER"),
		Usage:   "Path to the helper executable exposed to test scripts",
	}
	Isolation = &cli.StringFlag{
		Name:    "isolation",
		Value:   string(IsolationProcess),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ISOLATION"),
		Usage:   "Where test cases run: 'process' (one child process each) or 'none' (inside the harness)",
		Action: func(_ *cli.Context, value string) error {
			return validateIsolation(value)
		},
	}
	Color = &cli.StringFlag{
		Name:    "color",
		Value:   "auto",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "COLOR"),
		Usage:   "Colorize output: auto, always or never",
		Action: func(_ *cli.Context, value string) error {
			return validateColor(value)
		},
	}
	ShowProgress = &cli.BoolFlag{
		Name:    "show-progress",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHOW_PROGRESS"),
		Usage:   "Log periodic progress while tests run",
	}
	ProgressInterval = &cli.DurationFlag{
		Name:    "progress-interval",
		Value:   30 * time.Second,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROGRESS_INTERVAL"),
		Usage:   "Interval between progress updates when --show-progress is set",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	UpdateSnapshot,
	Only,
	Skip,
	SkipBuild,
	Verbose,
	Parallelism,
	SuiteConfig,
	RepoRoot,
	SuiteDir,
	Workspace,
	Tool,
	Helper,
	Isolation,
	Color,
	ShowProgress,
	ProgressInterval,
}

var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}
