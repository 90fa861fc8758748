package versioncheck

import (
	"context"
	"testing"

	"github.com/cuemby/nodeflow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.3", 0},
		{"1.2.3", "1.2.4", -1},
		{"1.3.0", "1.2.9", 1},
		{"2", "1.9.9", 1},
		{"1.0", "1.0.0", 0},
	}
	for _, c := range cases {
		got, err := compareVersions(c.a, c.b)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "compare(%s, %s)", c.a, c.b)
	}
}

func TestMatchPredicate(t *testing.T) {
	ok, err := matchPredicate("5.2.15", ">=4.0.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = matchPredicate("3.0.0", ">=4.0.0")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = matchPredicate("1.0.0", "==1.0.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = matchPredicate("1.0.0", "1.0.0")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckRequirementsAgainstRealExecutable(t *testing.T) {
	reqs := []types.VersionRequirement{
		{Executable: "bash", Predicate: ">=3.0.0"},
	}
	results, err := CheckRequirements(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Satisfied)
}

func TestCheckRequirementsFailsClosed(t *testing.T) {
	reqs := []types.VersionRequirement{
		{Executable: "bash", Predicate: ">=99.0.0"},
	}
	results, err := CheckRequirements(context.Background(), reqs)
	assert.Error(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Satisfied)
}

func TestCheckRequirementsMissingExecutable(t *testing.T) {
	reqs := []types.VersionRequirement{
		{Executable: "nodeflow-definitely-not-a-real-binary", Predicate: ">=1.0.0"},
	}
	results, err := CheckRequirements(context.Background(), reqs)
	assert.Error(t, err)
	assert.False(t, results[0].Satisfied)
}
