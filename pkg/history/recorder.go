package history

import (
	"sync"
	"time"

	"github.com/cuemby/nodeflow/pkg/graph"
	"github.com/cuemby/nodeflow/pkg/node"
)

// Recorder accumulates NodeSummary entries for one run as nodes complete
// and writes the finished Run to a Store. Register Observe against the
// live NodeGraph with RegisterObserver.
type Recorder struct {
	store *Store

	mu        sync.Mutex
	startedAt time.Time
	started   map[int64]time.Time
	nodes     map[int64]NodeSummary
}

// NewRecorder starts tracking a new run beginning now.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{
		store:     store,
		startedAt: time.Now(),
		started:   make(map[int64]time.Time),
		nodes:     make(map[int64]NodeSummary),
	}
}

// StartedAt returns the instant this run began, the same value its
// eventual Run.Key() derives from.
func (r *Recorder) StartedAt() time.Time { return r.startedAt }

// Observe is a graph.Observer: it records the wall-clock time a node enters
// StateRunning and, once it leaves that state, the summary of how it ended.
func (r *Recorder) Observe(n *node.Node, old, new graph.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if new == graph.StateRunning {
		r.started[n.ID()] = time.Now()
		return
	}
	if old != graph.StateRunning {
		return
	}

	started := r.started[n.ID()]
	r.nodes[n.ID()] = NodeSummary{
		NodeID:    n.ID(),
		State:     new.String(),
		StartedAt: started,
		EndedAt:   time.Now(),
	}
}

// Finish assembles and persists the Run. Safe to call once per Recorder.
func (r *Recorder) Finish() error {
	r.mu.Lock()
	run := &Run{
		StartedAt: r.startedAt,
		EndedAt:   time.Now(),
	}
	for _, summary := range r.nodes {
		run.Nodes = append(run.Nodes, summary)
	}
	r.mu.Unlock()

	if r.store == nil {
		return nil
	}
	return r.store.RecordRun(run)
}
