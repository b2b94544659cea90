package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-snapcheck/types"
)

// transport pushes a response through JSON the way a worker process does
func transport(t *testing.T, resp CaseResponse) CaseResponse {
	t.Helper()
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var decoded CaseResponse
	require.NoError(t, json.Unmarshal(data, &decoded))
	return decoded
}

func TestCaseResponse_Mismatch(t *testing.T) {
	tc := types.TestCase{Name: "drift", Script: "/suite/drift.sh"}
	result := &types.ExecutionResult{Case: tc, Status: types.TestStatusFail, Diff: "-a\n+b\n"}
	err := &SnapshotMismatchError{Case: "drift", Command: "tool -o x", Diff: "-a\n+b\n", Stdout: "out", Stderr: "err"}

	gotResult, gotErr := transport(t, NewCaseResponse(result, err)).Unpack(tc)
	require.NotNil(t, gotResult)
	assert.Equal(t, types.TestStatusFail, gotResult.Status)

	var mismatch *SnapshotMismatchError
	require.ErrorAs(t, gotErr, &mismatch)
	assert.Equal(t, *err, *mismatch)
}

func TestCaseResponse_Infrastructure(t *testing.T) {
	tc := types.TestCase{Name: "broken", Script: "/suite/broken.sh"}
	err := &InfrastructureError{Case: "broken", Op: "run tool", Command: "tool", Stderr: "denied", Err: errors.New("exit status 1")}

	gotResult, gotErr := transport(t, NewCaseResponse(nil, err)).Unpack(tc)
	assert.Nil(t, gotResult)

	var infraErr *InfrastructureError
	require.ErrorAs(t, gotErr, &infraErr)
	assert.Equal(t, "run tool", infraErr.Op)
	assert.Equal(t, "tool", infraErr.Command)
	assert.Equal(t, "denied", infraErr.Stderr)
	assert.EqualError(t, infraErr, "broken: run tool: exit status 1")
}

func TestCaseResponse_UntypedErrorBecomesInfrastructure(t *testing.T) {
	tc := types.TestCase{Name: "odd"}
	_, err := transport(t, NewCaseResponse(nil, errors.New("something else"))).Unpack(tc)
	assert.True(t, IsInfrastructureError(err))
	assert.Contains(t, err.Error(), "something else")
}

func TestCaseResponse_Malformed(t *testing.T) {
	tc := types.TestCase{Name: "odd"}

	_, err := CaseResponse{}.Unpack(tc)
	assert.True(t, IsInfrastructureError(err))

	_, err = CaseResponse{ErrorKind: "bogus"}.Unpack(tc)
	assert.True(t, IsInfrastructureError(err))
	assert.Contains(t, err.Error(), "bogus")
}

func TestServeCase(t *testing.T) {
	s := newTestSuite(t)
	tc := s.addCase("hello", "echo hello\n", strPtr("hello\n"))

	req, err := json.Marshal(CaseRequest{Case: tc, Executor: s.cfg})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, ServeCase(context.Background(), bytes.NewReader(req), &out, testLogger()))

	var resp CaseResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	result, err := resp.Unpack(tc)
	require.NoError(t, err)
	assert.Equal(t, types.TestStatusPass, result.Status)
}

func TestServeCase_InvalidExecutorConfig(t *testing.T) {
	tc := types.TestCase{Name: "hello", Script: "/suite/hello.sh"}
	req, err := json.Marshal(CaseRequest{Case: tc})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, ServeCase(context.Background(), bytes.NewReader(req), &out, testLogger()))

	var resp CaseResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	_, err = resp.Unpack(tc)

	var infraErr *InfrastructureError
	require.ErrorAs(t, err, &infraErr)
	assert.Equal(t, "configure executor", infraErr.Op)
}

func TestServeCase_BadRequest(t *testing.T) {
	var out bytes.Buffer
	err := ServeCase(context.Background(), strings.NewReader("not json"), &out, testLogger())
	assert.Error(t, err)
	assert.Empty(t, out.String())
}
