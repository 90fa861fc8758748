package scheduler

import (
	"testing"

	"github.com/cuemby/nodeflow/pkg/command"
	"github.com/cuemby/nodeflow/pkg/graph"
	"github.com/cuemby/nodeflow/pkg/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touchNode(t *testing.T, description string, threads int, output string) *node.Node {
	t.Helper()
	cmd, err := command.NewAtomicCmd(
		[]command.Arg{command.Lit("touch"), command.FileArg(command.OutputFile(output))},
		command.WithExtraFiles(command.OutputFile(output)),
	)
	require.NoError(t, err)
	n, err := node.New(description, cmd, node.WithThreads(threads))
	require.NoError(t, err)
	return n
}

func TestSelectNodePicksLowestIDWithinBudget(t *testing.T) {
	a := touchNode(t, "a", 4, t.TempDir()+"/a.out")
	b := touchNode(t, "b", 2, t.TempDir()+"/b.out")

	s := New()
	picked := s.SelectNode([]*node.Node{a, b}, WorkerCapacity{Threads: 2})
	require.NotNil(t, picked)
	assert.Equal(t, b.ID(), picked.ID())
}

func TestSelectNodeReturnsNilWhenNothingFits(t *testing.T) {
	a := touchNode(t, "a", 8, t.TempDir()+"/a.out")

	s := New()
	picked := s.SelectNode([]*node.Node{a}, WorkerCapacity{Threads: 2})
	assert.Nil(t, picked)
}

func TestSelectNodeOvercommitIgnoresThreadBudget(t *testing.T) {
	a := touchNode(t, "a", 16, t.TempDir()+"/a.out")

	s := New()
	picked := s.SelectNode([]*node.Node{a}, WorkerCapacity{Threads: 1, Overcommit: true})
	require.NotNil(t, picked)
	assert.Equal(t, a.ID(), picked.ID())
}

func TestRunableNodesFiltersGraphState(t *testing.T) {
	a := touchNode(t, "a", 1, t.TempDir()+"/a.out")
	g, err := graph.New(a)
	require.NoError(t, err)

	runable := RunableNodes(g)
	require.Len(t, runable, 1)
	assert.Equal(t, a.ID(), runable[0].ID())
}
