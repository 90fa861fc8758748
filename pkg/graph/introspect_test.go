package graph

import (
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/cuemby/nodeflow/pkg/command"
	"github.com/cuemby/nodeflow/pkg/node"
	"github.com/cuemby/nodeflow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListOutputsDeduplicatesAndSorts(t *testing.T) {
	dir := t.TempDir()
	bOut := filepath.Join(dir, "b")
	aOut := filepath.Join(dir, "a")

	a := touchNode(t, aOut)
	bCmd, err := command.NewAtomicCmd([]command.Arg{command.Lit("touch"), command.FileArg(command.OutputFile(bOut))},
		command.WithExtraFiles(command.InputFile(aOut), command.OutputFile(bOut)))
	require.NoError(t, err)
	b, err := node.New("b", bCmd, node.WithDependencies(a))
	require.NoError(t, err)

	g, err := New(b)
	require.NoError(t, err)

	assert.Equal(t, []string{aOut, bOut}, g.ListOutputs())
}

func TestListExecutablesAccumulatesPredicates(t *testing.T) {
	cmd, err := command.NewAtomicCmd(
		[]command.Arg{command.Lit("samtools")},
		command.WithRequirements(types.VersionRequirement{Executable: "samtools", Predicate: ">=1.0"}),
	)
	require.NoError(t, err)
	a, err := node.New("a", cmd)
	require.NoError(t, err)

	cmd2, err := command.NewAtomicCmd(
		[]command.Arg{command.Lit("bwa"), command.FileArg(command.Executable("samtools"))},
		command.WithRequirements(types.VersionRequirement{Executable: "samtools", Predicate: "<2.0"}),
	)
	require.NoError(t, err)
	b, err := node.New("b", cmd2)
	require.NoError(t, err)

	g, err := New(a, b)
	require.NoError(t, err)

	execs := g.ListExecutables()
	require.Len(t, execs, 1)
	assert.Equal(t, "samtools", execs[0].Name)
	assert.Equal(t, []string{"<2.0", ">=1.0"}, execs[0].Predicates)
}

func TestWriteDotRendersNodesAndEdges(t *testing.T) {
	dir := t.TempDir()
	aOut := filepath.Join(dir, "a")
	bOut := filepath.Join(dir, "b")

	a := touchNode(t, aOut)
	bCmd, err := command.NewAtomicCmd([]command.Arg{command.Lit("touch"), command.FileArg(command.OutputFile(bOut))},
		command.WithExtraFiles(command.InputFile(aOut), command.OutputFile(bOut)))
	require.NoError(t, err)
	b, err := node.New("b", bCmd, node.WithDependencies(a))
	require.NoError(t, err)

	g, err := New(b)
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, g.WriteDot(&sb))
	out := sb.String()

	assert.True(t, strings.HasPrefix(out, "digraph G {"))
	aID := strconv.FormatInt(a.ID(), 10)
	bID := strconv.FormatInt(b.ID(), 10)
	assert.Contains(t, out, "Node_"+aID)
	assert.Contains(t, out, "Node_"+aID+" -> Node_"+bID)
}
