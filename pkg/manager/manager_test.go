package manager

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/nodeflow/pkg/command"
	"github.com/cuemby/nodeflow/pkg/graph"
	"github.com/cuemby/nodeflow/pkg/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touchNode(t *testing.T, description string, output string) *node.Node {
	t.Helper()
	cmd, err := command.NewAtomicCmd(
		[]command.Arg{command.Lit("touch"), command.FileArg(command.OutputFile(output))},
		command.WithExtraFiles(command.OutputFile(output)),
	)
	require.NoError(t, err)
	n, err := node.New(description, cmd, node.WithThreads(1))
	require.NoError(t, err)
	return n
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := New(Config{Threads: 2, TempRoot: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, mgr.Start())
	t.Cleanup(mgr.Shutdown)
	return mgr
}

func TestRunUntilDoneCompletesSingleNode(t *testing.T) {
	mgr := newTestManager(t)

	dir := t.TempDir()
	n := touchNode(t, "touch one file", filepath.Join(dir, "out"))
	g, err := graph.New(n)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, mgr.RunUntilDone(ctx, g))
	assert.Equal(t, graph.StateDone, g.State(n))

	_, err = os.Stat(filepath.Join(dir, "out"))
	assert.NoError(t, err)
}

func TestRunUntilDoneRunsDependentsInOrder(t *testing.T) {
	mgr := newTestManager(t)

	dir := t.TempDir()
	first := touchNode(t, "first", filepath.Join(dir, "a"))
	cmd, err := command.NewAtomicCmd(
		[]command.Arg{command.Lit("touch"), command.FileArg(command.OutputFile(filepath.Join(dir, "b")))},
		command.WithExtraFiles(command.OutputFile(filepath.Join(dir, "b"))),
	)
	require.NoError(t, err)
	second, err := node.New("second", cmd, node.WithThreads(1), node.WithDependencies(first))
	require.NoError(t, err)

	g, err := graph.New(second)
	require.NoError(t, err)
	require.Equal(t, graph.StateQueued, g.State(second))
	require.Equal(t, graph.StateRunable, g.State(first))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, mgr.RunUntilDone(ctx, g))
	assert.Equal(t, graph.StateDone, g.State(first))
	assert.Equal(t, graph.StateDone, g.State(second))
}

func TestWorkersReportsLocalWorker(t *testing.T) {
	mgr := newTestManager(t)
	infos := mgr.Workers()
	require.Len(t, infos, 1)
	assert.Equal(t, 2, infos[0].Capacity)
}
