// Package scheduler picks which RUNABLE node to dispatch next and which
// idle worker should run it, per spec §4.8's dispatch rules. Unlike the
// teacher's ticker-driven Scheduler, dispatch here is invoked synchronously
// from the Manager's single-threaded event loop rather than on its own
// goroutine, since the NodeGraph and worker map may only be mutated from
// that loop.
package scheduler

import (
	"sort"

	"github.com/cuemby/nodeflow/pkg/graph"
	"github.com/cuemby/nodeflow/pkg/log"
	"github.com/cuemby/nodeflow/pkg/metrics"
	"github.com/cuemby/nodeflow/pkg/node"
	"github.com/rs/zerolog"
)

// Scheduler selects dispatch candidates. It holds no graph or worker state
// of its own; both are passed in by the caller on every decision.
type Scheduler struct {
	logger zerolog.Logger
}

// New builds a Scheduler.
func New() *Scheduler {
	return &Scheduler{logger: log.WithComponent("scheduler")}
}

// WorkerCapacity is one worker's announced or synthesized idle budget for
// this dispatch round.
type WorkerCapacity struct {
	WorkerID   string
	Threads    int
	Overcommit bool
}

// SelectNode returns the lowest-id node in candidates (expected to already
// be filtered to graph.StateRunable) whose thread requirement fits within
// cap, or nil if none fits. Tie-break among equally eligible nodes is by
// ascending node id, per spec §4.8 ("a simple deterministic ordering by
// node id is acceptable").
func (s *Scheduler) SelectNode(candidates []*node.Node, budget WorkerCapacity) *node.Node {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulingLatency)

	sorted := make([]*node.Node, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })

	for _, n := range sorted {
		if budget.Overcommit || n.Threads() <= budget.Threads {
			return n
		}
	}
	return nil
}

// RunableNodes filters a graph's flattened node list down to those
// currently dispatchable.
func RunableNodes(g *graph.NodeGraph) []*node.Node {
	return g.NodesInState(graph.StateRunable)
}

// SelectOvercommit chooses, among idle workers, the single largest-capacity
// worker whose entire capacity is idle, so a task requiring more threads
// than any worker's total capacity may still be scheduled (spec §4.8).
// Ties break by ascending worker id. Returns "", false if no worker is
// fully idle.
func SelectOvercommit(idle map[string]int, capacity map[string]int) (string, bool) {
	var bestID string
	bestCap := -1
	for workerID, idleThreads := range idle {
		total, ok := capacity[workerID]
		if !ok || idleThreads != total {
			continue
		}
		if total > bestCap || (total == bestCap && workerID < bestID) {
			bestID = workerID
			bestCap = total
		}
	}
	return bestID, bestCap >= 0
}
