package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-snapcheck/types"
	"github.com/ethereum-optimism/infra/op-snapcheck/workspace"
)

// fakeTool mimics the tool-under-test contract:
// tool -o <actual> --format <fmt> -- <shell> <script>
// It runs the script and records the script's stdout as the snapshot, while
// writing its own diagnostics to stdout and stderr.
const fakeTool = `#!/bin/sh
out="$2"
format="$4"
shift 5
echo "tracing with format $format"
echo "tool diagnostics" >&2
"$@" > "$out"
`

type testSuite struct {
	t        *testing.T
	repo     string
	suiteDir string
	root     string
	cfg      ExecutorConfig
}

func newTestSuite(t *testing.T) *testSuite {
	t.Helper()
	repo := t.TempDir()
	suiteDir := filepath.Join(repo, "Tests", "SnapshotTests")
	require.NoError(t, os.MkdirAll(suiteDir, 0o755))

	tool := filepath.Join(repo, "tool")
	require.NoError(t, os.WriteFile(tool, []byte(fakeTool), 0o755))
	helper := filepath.Join(repo, "helper")
	require.NoError(t, os.WriteFile(helper, []byte("#!/bin/sh\n"), 0o755))

	root := workspace.DefaultRoot(suiteDir)
	require.NoError(t, workspace.PrepareRoot(root))

	return &testSuite{
		t:        t,
		repo:     repo,
		suiteDir: suiteDir,
		root:     root,
		cfg: ExecutorConfig{
			WorkDir:     repo,
			SuiteDir:    suiteDir,
			Workspace:   root,
			Tool:        tool,
			Helper:      helper,
			ScratchEnv:  "t",
			HelperEnv:   "utils",
			Format:      "ascii",
			Shell:       "sh",
			SnapshotExt: ".txt",
		},
	}
}

// addCase writes a test script and, when expected is non-nil, its snapshot
func (s *testSuite) addCase(name, script string, expected *string) types.TestCase {
	s.t.Helper()
	path := filepath.Join(s.suiteDir, name+".sh")
	require.NoError(s.t, os.WriteFile(path, []byte(script), 0o644))
	if expected != nil {
		require.NoError(s.t, os.WriteFile(s.expectedPath(name), []byte(*expected), 0o644))
	}
	return types.NewTestCase(path, ".sh")
}

func (s *testSuite) expectedPath(name string) string {
	return filepath.Join(s.suiteDir, name+".txt")
}

func (s *testSuite) readExpected(name string) string {
	s.t.Helper()
	data, err := os.ReadFile(s.expectedPath(name))
	require.NoError(s.t, err)
	return string(data)
}

func (s *testSuite) executor() *Executor {
	s.t.Helper()
	e, err := NewExecutor(s.cfg, testLogger())
	require.NoError(s.t, err)
	return e
}

func testLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

func strPtr(s string) *string {
	return &s
}
