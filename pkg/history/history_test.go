package history

import (
	"testing"
	"time"

	"github.com/cuemby/nodeflow/pkg/graph"
	"github.com/cuemby/nodeflow/pkg/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndListRuns(t *testing.T) {
	s := openTestStore(t)

	run := &Run{
		StartedAt: time.Now().Add(-time.Minute),
		EndedAt:   time.Now(),
		Nodes: []NodeSummary{
			{NodeID: 1, State: graph.StateDone.String()},
		},
	}
	require.NoError(t, s.RecordRun(run))

	runs, err := s.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.Key(), runs[0].Key())
	assert.Len(t, runs[0].Nodes, 1)
}

func TestListRunsOrderedOldestFirst(t *testing.T) {
	s := openTestStore(t)

	older := &Run{StartedAt: time.Now().Add(-2 * time.Hour)}
	newer := &Run{StartedAt: time.Now()}
	require.NoError(t, s.RecordRun(newer))
	require.NoError(t, s.RecordRun(older))

	runs, err := s.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].StartedAt.Before(runs[1].StartedAt))
}

func TestGetRunMissingReturnsError(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun(time.Now())
	assert.Error(t, err)
}

func TestRecorderTracksRunningDuration(t *testing.T) {
	s := openTestStore(t)
	r := NewRecorder(s)

	n, err := node.NewMeta("root")
	require.NoError(t, err)

	r.Observe(n, graph.StateQueued, graph.StateRunning)
	time.Sleep(time.Millisecond)
	r.Observe(n, graph.StateRunning, graph.StateDone)

	require.NoError(t, r.Finish())

	runs, err := s.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Len(t, runs[0].Nodes, 1)
	assert.Equal(t, graph.StateDone.String(), runs[0].Nodes[0].State)
	assert.True(t, runs[0].Nodes[0].EndedAt.After(runs[0].Nodes[0].StartedAt) ||
		runs[0].Nodes[0].EndedAt.Equal(runs[0].Nodes[0].StartedAt))
}
