package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-snapcheck/types"
)

// Error kinds carried across the worker process boundary
const (
	ErrorKindNone           = ""
	ErrorKindMismatch       = "mismatch"
	ErrorKindInfrastructure = "infrastructure"
)

// CaseRequest is what a parent sends to an isolated worker process
type CaseRequest struct {
	Case     types.TestCase `json:"case"`
	Update   bool           `json:"update"`
	Executor ExecutorConfig `json:"executor"`
}

// CaseResponse is what a worker process writes back on stdout
type CaseResponse struct {
	Result    *types.ExecutionResult `json:"result,omitempty"`
	ErrorKind string                 `json:"error_kind,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Op        string                 `json:"op,omitempty"`
	Command   string                 `json:"command,omitempty"`
	Diff      string                 `json:"diff,omitempty"`
	Stdout    string                 `json:"stdout,omitempty"`
	Stderr    string                 `json:"stderr,omitempty"`
}

// NewCaseResponse packs an executor outcome for transport
func NewCaseResponse(result *types.ExecutionResult, err error) CaseResponse {
	resp := CaseResponse{Result: result}
	if err == nil {
		return resp
	}

	var (
		mismatch *SnapshotMismatchError
		infraErr *InfrastructureError
	)
	switch {
	case errors.As(err, &mismatch):
		resp.ErrorKind = ErrorKindMismatch
		resp.Command = mismatch.Command
		resp.Diff = mismatch.Diff
		resp.Stdout = mismatch.Stdout
		resp.Stderr = mismatch.Stderr
	case errors.As(err, &infraErr):
		resp.ErrorKind = ErrorKindInfrastructure
		resp.Op = infraErr.Op
		resp.Command = infraErr.Command
		resp.Stdout = infraErr.Stdout
		resp.Stderr = infraErr.Stderr
		if infraErr.Err != nil {
			resp.Error = infraErr.Err.Error()
		}
	default:
		resp.ErrorKind = ErrorKindInfrastructure
		resp.Op = "execute"
		resp.Error = err.Error()
	}
	return resp
}

// Unpack restores the executor outcome, including the typed error
func (r CaseResponse) Unpack(tc types.TestCase) (*types.ExecutionResult, error) {
	switch r.ErrorKind {
	case ErrorKindNone:
		if r.Result == nil {
			return nil, &InfrastructureError{Case: tc.Name, Op: "worker response", Err: errors.New("response carries neither result nor error")}
		}
		return r.Result, nil
	case ErrorKindMismatch:
		return r.Result, &SnapshotMismatchError{
			Case:    tc.Name,
			Command: r.Command,
			Diff:    r.Diff,
			Stdout:  r.Stdout,
			Stderr:  r.Stderr,
		}
	case ErrorKindInfrastructure:
		return nil, &InfrastructureError{
			Case:    tc.Name,
			Op:      r.Op,
			Command: r.Command,
			Stdout:  r.Stdout,
			Stderr:  r.Stderr,
			Err:     errors.New(r.Error),
		}
	default:
		return nil, &InfrastructureError{Case: tc.Name, Op: "worker response", Err: fmt.Errorf("unknown error kind %q", r.ErrorKind)}
	}
}

// ServeCase is the body of an isolated worker process: it decodes one
// request from in, runs it and encodes the response to out. The returned
// error covers only protocol failures; test failures travel in the response.
func ServeCase(ctx context.Context, in io.Reader, out io.Writer, logger log.Logger) error {
	var req CaseRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return fmt.Errorf("failed to decode case request: %w", err)
	}

	var resp CaseResponse
	executor, err := NewExecutor(req.Executor, logger)
	if err != nil {
		resp = NewCaseResponse(nil, &InfrastructureError{Case: req.Case.Name, Op: "configure executor", Err: err})
	} else {
		resp = NewCaseResponse(executor.Run(ctx, req.Case, req.Update))
	}

	if err := json.NewEncoder(out).Encode(resp); err != nil {
		return fmt.Errorf("failed to encode case response: %w", err)
	}
	return nil
}
