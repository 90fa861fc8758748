package node

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuemby/nodeflow/pkg/command"
	"github.com/cuemby/nodeflow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCmd is a minimal command.Command used to exercise Node construction
// and Run without spawning real processes.
type fakeCmd struct {
	inputs, outputs, aux, execs map[string]struct{}
	joinResults                 []command.JoinResult
	commitErr                   error
	committed                   bool
}

func (f *fakeCmd) Run(string) error                   { return nil }
func (f *fakeCmd) Ready() bool                        { return true }
func (f *fakeCmd) JoinResults() []command.JoinResult  { return f.joinResults }
func (f *fakeCmd) Terminate()                         {}
func (f *fakeCmd) Commit() error                      { f.committed = true; return f.commitErr }
func (f *fakeCmd) Executables() map[string]struct{}   { return f.execs }
func (f *fakeCmd) InputFiles() map[string]struct{}    { return f.inputs }
func (f *fakeCmd) OutputFiles() map[string]struct{}   { return f.outputs }
func (f *fakeCmd) AuxiliaryFiles() map[string]struct{} { return f.aux }
func (f *fakeCmd) ExpectedTempFiles() map[string]struct{} { return nil }
func (f *fakeCmd) OptionalTempFiles() map[string]struct{} { return nil }
func (f *fakeCmd) Requirements() []types.VersionRequirement { return nil }
func (f *fakeCmd) String() string                      { return "fakeCmd" }

func TestNewRejectsOutputAuxiliaryCollision(t *testing.T) {
	cmd := &fakeCmd{
		outputs: map[string]struct{}{"/tmp/shared": {}},
		aux:     map[string]struct{}{"/tmp/shared": {}},
	}
	_, err := New("collide", cmd)
	assert.Error(t, err)
}

func TestNewDefaultsThreadsToOne(t *testing.T) {
	n, err := New("default", &fakeCmd{})
	require.NoError(t, err)
	assert.Equal(t, 1, n.Threads())
}

func TestNewRejectsZeroThreads(t *testing.T) {
	_, err := New("zero", &fakeCmd{}, WithThreads(0))
	assert.Error(t, err)
}

func TestNewMetaAllowsZeroThreads(t *testing.T) {
	n, err := NewMeta("meta")
	require.NoError(t, err)
	assert.Equal(t, 0, n.Threads())
	assert.True(t, n.IsMeta())
}

func TestDistinctIDs(t *testing.T) {
	a, err := New("a", &fakeCmd{})
	require.NoError(t, err)
	b, err := New("b", &fakeCmd{})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestMetaNodeRunIsNoop(t *testing.T) {
	n, err := NewMeta("meta")
	require.NoError(t, err)
	assert.NoError(t, n.Run(t.TempDir()))
}

func TestRunSuccessCommits(t *testing.T) {
	cmd := &fakeCmd{joinResults: []command.JoinResult{{Started: true, ExitCode: 0}}}
	n, err := New("ok", cmd)
	require.NoError(t, err)

	require.NoError(t, n.Run(t.TempDir()))
	assert.True(t, cmd.committed)
}

func TestRunFailureDoesNotCommit(t *testing.T) {
	cmd := &fakeCmd{joinResults: []command.JoinResult{{Started: true, ExitCode: 1}}}
	n, err := New("fail", cmd)
	require.NoError(t, err)

	err = n.Run(t.TempDir())
	assert.Error(t, err)
	assert.False(t, cmd.committed)
}

func TestRunRemovesTempDirOnSuccess(t *testing.T) {
	root := t.TempDir()
	cmd := &fakeCmd{joinResults: []command.JoinResult{{Started: true, ExitCode: 0}}}
	n, err := New("ok", cmd)
	require.NoError(t, err)

	require.NoError(t, n.Run(root))
	assert.Empty(t, tempDirsFor(t, root, n.ID()))
}

func TestRunRetainsTempDirOnCommandFailure(t *testing.T) {
	root := t.TempDir()
	cmd := &fakeCmd{joinResults: []command.JoinResult{{Started: true, ExitCode: 1}}}
	n, err := New("fail", cmd)
	require.NoError(t, err)

	err = n.Run(root)
	assert.Error(t, err)
	assert.Len(t, tempDirsFor(t, root, n.ID()), 1)
}

func TestRunRetainsTempDirOnCommitFailure(t *testing.T) {
	root := t.TempDir()
	cmd := &fakeCmd{
		joinResults: []command.JoinResult{{Started: true, ExitCode: 0}},
		commitErr:   fmt.Errorf("commit blew up"),
	}
	n, err := New("commit-fail", cmd)
	require.NoError(t, err)

	err = n.Run(root)
	assert.Error(t, err)
	assert.Len(t, tempDirsFor(t, root, n.ID()), 1)
}

func TestRunTempDirNameIncludesIDAndFreshSuffix(t *testing.T) {
	root := t.TempDir()
	cmd := &fakeCmd{joinResults: []command.JoinResult{{Started: true, ExitCode: 1}}}
	n, err := New("fail", cmd)
	require.NoError(t, err)

	_ = n.Run(root)
	dirs := tempDirsFor(t, root, n.ID())
	require.Len(t, dirs, 1)
	assert.NotEqual(t, fmt.Sprintf("node_%d", n.ID()), dirs[0])
}

// tempDirsFor lists the temp directories Run created for nodeID under root,
// matching the node_<id>_<suffix> naming convention.
func tempDirsFor(t *testing.T, root string, nodeID int64) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)

	prefix := fmt.Sprintf("node_%d_", nodeID)
	var names []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestRealAtomicCmdTouchNode(t *testing.T) {
	destDir := t.TempDir()
	dest := filepath.Join(destDir, "out")

	cmd, err := command.NewAtomicCmd(
		[]command.Arg{command.Lit("touch"), command.FileArg(command.OutputFile(dest))},
		command.WithExtraFiles(command.OutputFile(dest)),
	)
	require.NoError(t, err)

	n, err := New("touch out", cmd)
	require.NoError(t, err)

	require.NoError(t, n.Run(t.TempDir()))

	_, err = os.Stat(dest)
	assert.NoError(t, err)
}
