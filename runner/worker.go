package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-snapcheck/types"
)

// Worker computes the result of one test case. Implementations must be safe
// for concurrent use.
type Worker interface {
	Run(ctx context.Context, tc types.TestCase) (*types.ExecutionResult, error)
}

var (
	_ Worker = (*InProcessWorker)(nil)
	_ Worker = (*ProcessWorker)(nil)
)

// InProcessWorker runs the executor inside the harness process
type InProcessWorker struct {
	Executor *Executor
	Update   bool
}

func (w *InProcessWorker) Run(ctx context.Context, tc types.TestCase) (*types.ExecutionResult, error) {
	return w.Executor.Run(ctx, tc, w.Update)
}

// ProcessWorker runs every test case in a fresh child process, so a script
// that crashes or corrupts state only takes down its own worker. The child is
// the harness binary itself, invoked with Args (normally the hidden
// exec-case command), which speaks the CaseRequest/CaseResponse protocol.
type ProcessWorker struct {
	Executable string
	Args       []string
	Executor   ExecutorConfig
	Update     bool
	Log        log.Logger
}

// NewProcessWorker creates a worker that re-executes the running binary
func NewProcessWorker(args []string, cfg ExecutorConfig, update bool, logger log.Logger) (*ProcessWorker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate harness executable: %w", err)
	}
	if logger == nil {
		logger = log.Root()
	}
	return &ProcessWorker{
		Executable: exe,
		Args:       args,
		Executor:   cfg,
		Update:     update,
		Log:        logger.New("component", "process-worker"),
	}, nil
}

func (w *ProcessWorker) Run(ctx context.Context, tc types.TestCase) (*types.ExecutionResult, error) {
	req, err := json.Marshal(CaseRequest{Case: tc, Update: w.Update, Executor: w.Executor})
	if err != nil {
		return nil, &InfrastructureError{Case: tc.Name, Op: "encode case request", Err: err}
	}

	var stdout bytes.Buffer
	stderr := newTailBuffer(defaultWorkerLogTailBytes)

	cmd := exec.CommandContext(ctx, w.Executable, w.Args...)
	cmd.Stdin = bytes.NewReader(req)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	cmd.Env = telemetry.InstrumentEnvironment(ctx, os.Environ())

	w.Log.Debug("Spawning worker process", "test", tc.Name, "executable", w.Executable)
	runErr := cmd.Run()

	var resp CaseResponse
	if decodeErr := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); decodeErr != nil {
		cause := decodeErr
		if runErr != nil {
			cause = fmt.Errorf("worker process failed: %w", runErr)
		}
		if stderr.Truncated() {
			w.Log.Warn("Worker log truncated", "test", tc.Name, "totalBytes", stderr.TotalBytes())
		}
		return nil, &InfrastructureError{
			Case:    tc.Name,
			Op:      "worker process",
			Command: strings.Join(append([]string{w.Executable}, w.Args...), " "),
			Stdout:  stdout.String(),
			Stderr:  stderr.String(),
			Err:     cause,
		}
	}
	if runErr != nil {
		w.Log.Warn("Worker process exited with error after responding", "test", tc.Name, "err", runErr)
	}

	return resp.Unpack(tc)
}
