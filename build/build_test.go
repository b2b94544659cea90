package build

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunner(t *testing.T, out *bytes.Buffer) *Runner {
	return &Runner{
		Dir:    t.TempDir(),
		Stdout: out,
		Stderr: out,
		Log:    log.NewLogger(log.DiscardHandler()),
	}
}

func TestRun_AllSucceed(t *testing.T) {
	var out bytes.Buffer
	r := newRunner(t, &out)

	err := r.Run(context.Background(), []string{"echo one > a", "cat a", "echo two"})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "$ echo one > a\n")
	assert.Contains(t, out.String(), "one\n")
	assert.Contains(t, out.String(), "two\n")
	assert.FileExists(t, filepath.Join(r.Dir, "a"))
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	var out bytes.Buffer
	r := newRunner(t, &out)

	err := r.Run(context.Background(), []string{"true", "exit 3", "touch never"})
	require.Error(t, err)
	assert.True(t, IsBuildError(err))

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "exit 3", buildErr.Command)

	_, statErr := os.Stat(filepath.Join(r.Dir, "never"))
	assert.True(t, os.IsNotExist(statErr), "commands after a failure must not run")
}

func TestRun_NoCommands(t *testing.T) {
	var out bytes.Buffer
	r := newRunner(t, &out)

	require.NoError(t, r.Run(context.Background(), nil))
	assert.Empty(t, out.String())
}

func TestRun_Colored(t *testing.T) {
	var out bytes.Buffer
	r := newRunner(t, &out)
	r.Color = true
	text.EnableColors()

	require.NoError(t, r.Run(context.Background(), []string{"true"}))
	assert.Contains(t, out.String(), "\x1b[")
	assert.Contains(t, out.String(), "$ true")
}

func TestIsBuildError(t *testing.T) {
	assert.False(t, IsBuildError(nil))
	assert.True(t, IsBuildError(&BuildError{Command: "x"}))
}
