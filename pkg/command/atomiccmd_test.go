package command

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicCmdTouchCommitsOutput(t *testing.T) {
	tempDir := t.TempDir()
	destDir := t.TempDir()
	dest := filepath.Join(destDir, "out.txt")

	cmd, err := NewAtomicCmd(
		[]Arg{Lit("touch"), FileArg(OutputFile(dest))},
		WithExtraFiles(OutputFile(dest)),
	)
	require.NoError(t, err)

	require.NoError(t, cmd.Run(tempDir))
	results := cmd.JoinResults()
	require.Len(t, results, 1)
	assert.True(t, results[0].Started)
	assert.Equal(t, 0, results[0].ExitCode)
	assert.Equal(t, "", results[0].Signal)

	require.NoError(t, cmd.Commit())

	_, err = os.Stat(dest)
	assert.NoError(t, err, "committed output should exist at its final destination")
}

func TestAtomicCmdNonZeroExitRefusesCommit(t *testing.T) {
	tempDir := t.TempDir()

	cmd, err := NewAtomicCmd([]Arg{Lit("false")})
	require.NoError(t, err)

	require.NoError(t, cmd.Run(tempDir))
	results := cmd.JoinResults()
	require.Len(t, results, 1)
	assert.True(t, results[0].Started)
	assert.Equal(t, 1, results[0].ExitCode)

	assert.Error(t, cmd.Commit())
}

func TestParallelCmdsTerminatesSiblingsOnFailure(t *testing.T) {
	tempDir := t.TempDir()

	failing, err := NewAtomicCmd([]Arg{Lit("false")})
	require.NoError(t, err)
	sleeper1, err := NewAtomicCmd([]Arg{Lit("sleep"), Lit("10")})
	require.NoError(t, err)
	sleeper2, err := NewAtomicCmd([]Arg{Lit("sleep"), Lit("10")})
	require.NoError(t, err)

	set, err := NewParallelCmds(failing, sleeper1, sleeper2)
	require.NoError(t, err)

	require.NoError(t, set.Run(tempDir))
	results := set.JoinResults()
	require.Len(t, results, 3)

	assert.Equal(t, 1, results[0].ExitCode)
	assert.Equal(t, "", results[0].Signal)

	for _, r := range results[1:] {
		assert.True(t, r.Started)
		assert.Equal(t, "SIGTERM", r.Signal)
	}
}

func TestSequentialCmdsAbortsOnError(t *testing.T) {
	tempDir := t.TempDir()

	ok, err := NewAtomicCmd([]Arg{Lit("true")})
	require.NoError(t, err)
	failing, err := NewAtomicCmd([]Arg{Lit("false")})
	require.NoError(t, err)
	neverRun, err := NewAtomicCmd([]Arg{Lit("true")})
	require.NoError(t, err)

	set, err := NewSequentialCmds(ok, failing, neverRun)
	require.NoError(t, err)

	require.NoError(t, set.Run(tempDir))
	results := set.JoinResults()
	require.Len(t, results, 3)

	assert.True(t, results[0].Started)
	assert.Equal(t, 0, results[0].ExitCode)

	assert.True(t, results[1].Started)
	assert.Equal(t, 1, results[1].ExitCode)

	assert.False(t, results[2].Started)
}
