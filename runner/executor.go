package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-snapcheck/snapshot"
	"github.com/ethereum-optimism/infra/op-snapcheck/types"
	"github.com/ethereum-optimism/infra/op-snapcheck/workspace"
)

const (
	OutputFlag = "-o"
	FormatFlag = "--format"
	ArgsMarker = "--"
	EnvCommand = "env"
)

// ExecutorConfig carries everything needed to run one snapshot test.
// It is serialised to child worker processes, so it holds only plain data.
type ExecutorConfig struct {
	WorkDir     string   `json:"work_dir"`  // Working directory of the tool, normally the repository root
	SuiteDir    string   `json:"suite_dir"` // Holds the scripts and expected snapshots
	Workspace   string   `json:"workspace"` // Run-wide temporary root
	Tool        string   `json:"tool"`
	Helper      string   `json:"helper"`
	Privilege   []string `json:"privilege,omitempty"` // Wrapper argv, e.g. ["sudo"]; empty runs unprivileged
	ScratchEnv  string   `json:"scratch_env"`
	HelperEnv   string   `json:"helper_env"`
	Format      string   `json:"format"`
	Shell       string   `json:"shell"`
	SnapshotExt string   `json:"snapshot_ext"`
}

// Validate checks the configuration before any test runs
func (c ExecutorConfig) Validate() error {
	switch {
	case c.SuiteDir == "":
		return fmt.Errorf("suite directory cannot be empty")
	case c.Workspace == "":
		return fmt.Errorf("workspace root cannot be empty")
	case c.Tool == "":
		return fmt.Errorf("tool cannot be empty")
	case c.Helper == "":
		return fmt.Errorf("helper cannot be empty")
	case c.ScratchEnv == "" || c.HelperEnv == "":
		return fmt.Errorf("scratch and helper env var names cannot be empty")
	case c.Shell == "":
		return fmt.Errorf("shell cannot be empty")
	case c.SnapshotExt == "":
		return fmt.Errorf("snapshot extension cannot be empty")
	}
	return nil
}

// Executor runs a single test case end to end: it launches the tool-under-test
// on the script, then judges the produced snapshot.
type Executor struct {
	cfg    ExecutorConfig
	log    log.Logger
	tracer trace.Tracer
}

// NewExecutor creates a new executor
func NewExecutor(cfg ExecutorConfig, logger log.Logger) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Root()
	}
	return &Executor{
		cfg:    cfg,
		log:    logger.New("component", "executor"),
		tracer: otel.Tracer("snapshot executor"),
	}, nil
}

// Config returns the executor configuration
func (e *Executor) Config() ExecutorConfig {
	return e.cfg
}

// Run executes tc. A snapshot mismatch without update returns both the
// failed result and a *SnapshotMismatchError; infrastructure problems return
// a nil result and an *InfrastructureError.
func (e *Executor) Run(ctx context.Context, tc types.TestCase, update bool) (*types.ExecutionResult, error) {
	ctx, span := e.tracer.Start(ctx, fmt.Sprintf("test %s", tc.Name),
		trace.WithAttributes(attribute.String("script", tc.Script), attribute.Bool("update", update)))
	defer span.End()

	result, err := e.run(ctx, tc, update)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("status", string(result.Status)))
	}
	return result, err
}

func (e *Executor) run(ctx context.Context, tc types.TestCase, update bool) (*types.ExecutionResult, error) {
	snap := types.NewSnapshot(e.cfg.SuiteDir, e.cfg.Workspace, tc.Name, e.cfg.SnapshotExt)

	ws, err := workspace.PrepareCase(e.cfg.Workspace, tc.Name)
	if err != nil {
		return nil, &InfrastructureError{Case: tc.Name, Op: "prepare workspace", Err: err}
	}

	argv := e.BuildArgs(tc, snap, ws)
	command := QuoteCommand(argv)
	e.log.Info("Running test", "test", tc.Name, "command", command)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = e.cfg.WorkDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if runErr != nil {
		return nil, &InfrastructureError{
			Case:    tc.Name,
			Op:      "run tool",
			Command: command,
			Stdout:  stdout.String(),
			Stderr:  stderr.String(),
			Err:     runErr,
		}
	}

	result := &types.ExecutionResult{
		Case:     tc,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Command:  command,
		Duration: duration,
	}

	cmp, err := snapshot.Compare(snap.Expected, snap.Actual)
	if err != nil {
		return nil, &InfrastructureError{
			Case:    tc.Name,
			Op:      "compare snapshots",
			Command: command,
			Stdout:  result.Stdout,
			Stderr:  result.Stderr,
			Err:     err,
		}
	}

	if cmp.Identical {
		result.Status = types.TestStatusPass
		result.Stdout += fmt.Sprintf("Test passed: %s\n%s\n", tc.Script, command)
		e.log.Debug("Snapshot matched", "test", tc.Name, "duration", duration)
		return result, nil
	}

	result.Diff = cmp.Diff
	if update {
		if err := snapshot.Accept(snap.Expected, snap.Actual); err != nil {
			return nil, &InfrastructureError{
				Case:    tc.Name,
				Op:      "update snapshot",
				Command: command,
				Stdout:  result.Stdout,
				Stderr:  result.Stderr,
				Err:     err,
			}
		}
		result.Status = types.TestStatusUpdated
		result.Stdout += cmp.Diff
		e.log.Info("Snapshot updated", "test", tc.Name, "created", cmp.Missing)
		return result, nil
	}

	result.Status = types.TestStatusFail
	e.log.Debug("Snapshot mismatch", "test", tc.Name)
	return result, &SnapshotMismatchError{
		Case:    tc.Name,
		Command: command,
		Diff:    cmp.Diff,
		Stdout:  result.Stdout,
		Stderr:  result.Stderr,
	}
}

// BuildArgs assembles the privileged invocation of the tool. The scratch and
// helper variables are passed through env(1) after the privilege wrapper so
// they reach the tool even when the wrapper resets the environment, and never
// touch the harness's own environment.
func (e *Executor) BuildArgs(tc types.TestCase, snap types.Snapshot, ws workspace.Case) []string {
	args := make([]string, 0, len(e.cfg.Privilege)+12)
	args = append(args, e.cfg.Privilege...)
	args = append(args,
		EnvCommand,
		fmt.Sprintf("%s=%s", e.cfg.ScratchEnv, ws.Scratch),
		fmt.Sprintf("%s=%s", e.cfg.HelperEnv, e.cfg.Helper),
		e.cfg.Tool,
		OutputFlag, snap.Actual,
	)
	if e.cfg.Format != "" {
		args = append(args, FormatFlag, e.cfg.Format)
	}
	args = append(args, ArgsMarker, e.cfg.Shell, tc.Script)
	return args
}

// QuoteCommand renders argv as a command line that can be pasted into a shell
func QuoteCommand(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = quoteArg(arg)
	}
	return strings.Join(quoted, " ")
}

func quoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if strings.IndexFunc(arg, needsQuoting) < 0 {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

func needsQuoting(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case strings.ContainsRune("-_./=:,+@%", r):
		return false
	}
	return true
}
