package runner

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-snapcheck/types"
)

// workerModeEnv turns the test binary into an isolated case worker
const workerModeEnv = "OP_SNAPCHECK_TEST_WORKER"

func TestMain(m *testing.M) {
	if os.Getenv(workerModeEnv) == "1" {
		if err := ServeCase(context.Background(), os.Stdin, os.Stdout, testLogger()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func TestInProcessWorker(t *testing.T) {
	s := newTestSuite(t)
	tc := s.addCase("drift", "echo new\n", strPtr("old\n"))

	w := &InProcessWorker{Executor: s.executor(), Update: true}
	result, err := w.Run(context.Background(), tc)
	require.NoError(t, err)
	assert.Equal(t, types.TestStatusUpdated, result.Status)
	assert.Equal(t, "new\n", s.readExpected("drift"))
}

func TestProcessWorker(t *testing.T) {
	t.Setenv(workerModeEnv, "1")
	s := newTestSuite(t)
	pass := s.addCase("pass", "echo same\n", strPtr("same\n"))
	drift := s.addCase("drift", "echo new\n", strPtr("old\n"))
	broken := s.addCase("broken", "exit 4\n", strPtr(""))

	w, err := NewProcessWorker(nil, s.cfg, false, testLogger())
	require.NoError(t, err)

	result, err := w.Run(context.Background(), pass)
	require.NoError(t, err)
	assert.Equal(t, types.TestStatusPass, result.Status)
	assert.Contains(t, result.Stdout, "Test passed")

	result, err = w.Run(context.Background(), drift)
	require.Error(t, err)
	assert.True(t, IsSnapshotMismatch(err))
	require.NotNil(t, result)
	assert.Contains(t, result.Diff, "+new")

	_, err = w.Run(context.Background(), broken)
	var infraErr *InfrastructureError
	require.ErrorAs(t, err, &infraErr)
	assert.Equal(t, "run tool", infraErr.Op)
}

func TestProcessWorker_Update(t *testing.T) {
	t.Setenv(workerModeEnv, "1")
	s := newTestSuite(t)
	tc := s.addCase("drift", "echo new\n", strPtr("old\n"))

	w, err := NewProcessWorker(nil, s.cfg, true, testLogger())
	require.NoError(t, err)

	result, err := w.Run(context.Background(), tc)
	require.NoError(t, err)
	assert.Equal(t, types.TestStatusUpdated, result.Status)
	assert.Equal(t, "new\n", s.readExpected("drift"))
}

func TestProcessWorker_CrashedChild(t *testing.T) {
	s := newTestSuite(t)
	tc := s.addCase("hello", "echo hello\n", strPtr("hello\n"))

	w := &ProcessWorker{
		Executable: "/bin/sh",
		Args:       []string{"-c", "echo 'worker crashed' >&2; exit 7"},
		Executor:   s.cfg,
		Log:        testLogger(),
	}
	result, err := w.Run(context.Background(), tc)
	assert.Nil(t, result)

	var infraErr *InfrastructureError
	require.ErrorAs(t, err, &infraErr)
	assert.Equal(t, "worker process", infraErr.Op)
	assert.Contains(t, infraErr.Stderr, "worker crashed")
	assert.Contains(t, infraErr.Error(), "exit status 7")
}

func TestNewProcessWorker_InvalidConfig(t *testing.T) {
	_, err := NewProcessWorker(nil, ExecutorConfig{}, false, testLogger())
	assert.Error(t, err)
}
