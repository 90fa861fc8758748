package newick

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func length(v float64) *float64 { return &v }

func TestNewInternalRejectsEmptyChildren(t *testing.T) {
	_, err := NewInternal(nil, "", nil)
	assert.ErrorIs(t, err, ErrEmptyChildren)
}

func TestIsLeaf(t *testing.T) {
	leaf := NewLeaf("Leaf", nil)
	assert.True(t, leaf.IsLeaf())

	top, err := NewInternal([]*Tree{leaf}, "", nil)
	require.NoError(t, err)
	assert.False(t, top.IsLeaf())
}

func TestLeafNodesAndNames(t *testing.T) {
	a := NewLeaf("Leaf A", nil)
	b := NewLeaf("Leaf B", nil)
	c := NewLeaf("Leaf C", nil)
	sub, err := NewInternal([]*Tree{b, c}, "", nil)
	require.NoError(t, err)
	top, err := NewInternal([]*Tree{a, sub}, "", nil)
	require.NoError(t, err)

	assert.Equal(t, []*Tree{a, b, c}, top.LeafNodes())
	assert.Equal(t, []string{"Leaf A", "Leaf B", "Leaf C"}, top.LeafNames())
}

func TestParseAndStringRoundTrip(t *testing.T) {
	cases := []string{
		"(A,B,C);",
		"((A,B),C);",
		"((A:4.0,B:3.0):2.0,C:1.0);",
		"(A:5.0,B:1.0,D:5.0)C;",
	}
	for _, in := range cases {
		tree, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, in, tree.String(), in)
	}
}

func TestParseRejectsUnbalancedParens(t *testing.T) {
	_, err := Parse("(A,B;")
	assert.Error(t, err)
}

func TestParseRejectsEmptyInternalNode(t *testing.T) {
	_, err := Parse("();")
	assert.Error(t, err)
}

func TestEqualIgnoresSiblingOrder(t *testing.T) {
	a, err := Parse("((A,B),C);")
	require.NoError(t, err)
	b, err := Parse("(C,(B,A));")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestEqualDistinguishesLengths(t *testing.T) {
	a, err := Parse("(A:1,B:2);")
	require.NoError(t, err)
	b, err := Parse("(A:1,B:3);")
	require.NoError(t, err)
	assert.False(t, a.Equal(b))
}
