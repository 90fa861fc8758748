package graph

import (
	"sort"
	"sync"

	"github.com/cuemby/nodeflow/pkg/events"
	"github.com/cuemby/nodeflow/pkg/node"
)

// Observer is notified synchronously whenever SetNodeState changes a
// node's state. The initial states New derives are set without notifying
// anyone.
type Observer func(n *node.Node, old, new State)

// NodeGraph is the topologically flattened transitive closure of a
// submitted node set, with one state per node and synchronous observer
// notification on every transition (spec §4.5).
type NodeGraph struct {
	mu        sync.Mutex
	nodes     []*node.Node
	states    map[int64]State
	observers []Observer
	broker    *events.Broker
}

// New expands roots into their transitive closure over subnodes and
// dependencies, detects cycles, validates output-path uniqueness, and
// derives the initial state of every node in dependency order.
func New(roots ...*node.Node) (*NodeGraph, error) {
	flat := expand(roots)
	order, err := topoSort(flat)
	if err != nil {
		return nil, err
	}
	if err := validateUniqueOutputs(order); err != nil {
		return nil, err
	}

	g := &NodeGraph{nodes: order, states: make(map[int64]State, len(order))}
	cache := NewFileStatusCache()
	for _, n := range order {
		g.states[n.ID()] = classify(n, g.states, cache)
	}
	return g, nil
}

// AttachBroker wires an events.Broker so every SetNodeState transition is
// also published as an EventNodeStateChanged event.
func (g *NodeGraph) AttachBroker(b *events.Broker) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.broker = b
}

// RegisterObserver appends fn to the list of callbacks notified on every
// state transition.
func (g *NodeGraph) RegisterObserver(fn Observer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observers = append(g.observers, fn)
}

// Iterflat returns every node in the graph's dependency-respecting
// topological order (lowest id first among ties).
func (g *NodeGraph) Iterflat() []*node.Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*node.Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// State returns n's current state.
func (g *NodeGraph) State(n *node.Node) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.states[n.ID()]
}

// SetNodeState updates n's state and notifies every registered observer
// (and the attached broker, if any) synchronously with (node, old, new).
func (g *NodeGraph) SetNodeState(n *node.Node, s State) {
	g.mu.Lock()
	old := g.states[n.ID()]
	g.states[n.ID()] = s
	observers := make([]Observer, len(g.observers))
	copy(observers, g.observers)
	broker := g.broker
	g.mu.Unlock()

	for _, obs := range observers {
		obs(n, old, s)
	}
	if broker != nil {
		broker.Publish(&events.Event{
			Type:    events.EventNodeStateChanged,
			Message: n.String() + ": " + old.String() + " -> " + s.String(),
			Metadata: map[string]string{
				"old_state": old.String(),
				"new_state": s.String(),
			},
		})
	}
}

// Advance reclassifies every node currently in StateQueued, promoting a
// node to StateRunable (or StateDone, for a MetaNode) once every subnode
// and dependency has reached StateDone, or to StateError if any has
// failed. Call after every completion to propagate it to dependents, the
// same re-derivation classify performs at construction (spec §4.5).
func (g *NodeGraph) Advance() {
	g.mu.Lock()
	nodes := make([]*node.Node, len(g.nodes))
	copy(nodes, g.nodes)
	g.mu.Unlock()

	for _, n := range nodes {
		g.mu.Lock()
		cur := g.states[n.ID()]
		if cur != StateQueued {
			g.mu.Unlock()
			continue
		}
		allDone := true
		anyError := false
		for _, p := range prereqsOf(n) {
			s := g.states[p.ID()]
			if s != StateDone {
				allDone = false
			}
			if s == StateError {
				anyError = true
			}
		}
		g.mu.Unlock()

		switch {
		case anyError:
			g.SetNodeState(n, StateError)
		case allDone && n.IsMeta():
			g.SetNodeState(n, StateDone)
		case allDone:
			g.SetNodeState(n, StateRunable)
		}
	}
}

// NodesInState returns every node currently in state s, ordered by id.
func (g *NodeGraph) NodesInState(s State) []*node.Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*node.Node
	for _, n := range g.nodes {
		if g.states[n.ID()] == s {
			out = append(out, n)
		}
	}
	return out
}

func expand(roots []*node.Node) []*node.Node {
	seen := map[int64]struct{}{}
	var order []*node.Node

	var visit func(n *node.Node)
	visit = func(n *node.Node) {
		if _, ok := seen[n.ID()]; ok {
			return
		}
		seen[n.ID()] = struct{}{}
		order = append(order, n)
		for _, d := range n.Subnodes() {
			visit(d)
		}
		for _, d := range n.Dependencies() {
			visit(d)
		}
	}
	for _, r := range roots {
		visit(r)
	}
	return order
}

// topoSort returns nodes ordered so that every subnode/dependency
// precedes the node that requires it, breaking ties by ascending node id
// for determinism (spec's dispatch tie-break doubles as the derivation
// order here).
func topoSort(nodes []*node.Node) ([]*node.Node, error) {
	indeg := make(map[int64]int, len(nodes))
	dependents := make(map[int64][]*node.Node)
	byID := make(map[int64]*node.Node, len(nodes))

	for _, n := range nodes {
		byID[n.ID()] = n
		if _, ok := indeg[n.ID()]; !ok {
			indeg[n.ID()] = 0
		}
	}
	for _, n := range nodes {
		prereqs := prereqsOf(n)
		seen := map[int64]bool{}
		for _, p := range prereqs {
			if seen[p.ID()] {
				continue
			}
			seen[p.ID()] = true
			indeg[n.ID()]++
			dependents[p.ID()] = append(dependents[p.ID()], n)
		}
	}

	byIDAsc := func(s []*node.Node) {
		sort.Slice(s, func(i, j int) bool { return s[i].ID() < s[j].ID() })
	}

	var queue []*node.Node
	for _, n := range nodes {
		if indeg[n.ID()] == 0 {
			queue = append(queue, n)
		}
	}
	byIDAsc(queue)

	var order []*node.Node
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)

		next := dependents[n.ID()]
		byIDAsc(next)
		for _, d := range next {
			indeg[d.ID()]--
			if indeg[d.ID()] == 0 {
				queue = append(queue, d)
			}
		}
		byIDAsc(queue)
	}

	if len(order) != len(nodes) {
		var remaining []int64
		for _, n := range nodes {
			if indeg[n.ID()] > 0 {
				remaining = append(remaining, n.ID())
			}
		}
		return nil, &CycleError{NodeIDs: remaining}
	}
	return order, nil
}

func prereqsOf(n *node.Node) []*node.Node {
	out := make([]*node.Node, 0, len(n.Subnodes())+len(n.Dependencies()))
	out = append(out, n.Subnodes()...)
	out = append(out, n.Dependencies()...)
	return out
}

func validateUniqueOutputs(nodes []*node.Node) error {
	owner := map[string]int64{}
	for _, n := range nodes {
		for out := range n.OutputFiles() {
			if prev, dup := owner[out]; dup {
				return &DuplicateOutputError{Path: out, NodeIDs: []int64{prev, n.ID()}}
			}
			owner[out] = n.ID()
		}
	}
	return nil
}

// classify derives n's initial state. Prereqs (subnodes and
// dependencies) must already have an entry in states, which New
// guarantees by processing nodes in topological order.
func classify(n *node.Node, states map[int64]State, cache *FileStatusCache) State {
	allDone := true
	anyError := false
	for _, p := range prereqsOf(n) {
		s := states[p.ID()]
		if s != StateDone {
			allDone = false
		}
		if s == StateError {
			anyError = true
		}
	}

	if anyError {
		return StateError
	}
	if n.IsMeta() {
		if allDone {
			return StateDone
		}
		return StateQueued
	}

	done := isDone(n, cache)
	outdated := done && isOutdated(n, cache)

	switch {
	case done && !outdated && allDone:
		return StateDone
	case done && outdated && allDone:
		return StateOutdated
	case allDone:
		return StateRunable
	default:
		return StateQueued
	}
}

// isDone reports whether every declared output of n exists, ignoring
// subnodes entirely (spec's private _is_done helper).
func isDone(n *node.Node, cache *FileStatusCache) bool {
	outputs := n.OutputFiles()
	if len(outputs) == 0 {
		return true
	}
	for o := range outputs {
		if !cache.Exists(o) {
			return false
		}
	}
	return true
}

// isOutdated reports whether every output exists and some input's mtime
// exceeds the minimum output mtime. A node with no outputs or no inputs
// is never outdated.
func isOutdated(n *node.Node, cache *FileStatusCache) bool {
	outputs := n.OutputFiles()
	inputs := n.InputFiles()
	if len(outputs) == 0 || len(inputs) == 0 {
		return false
	}

	var minOut int64
	first := true
	for o := range outputs {
		if !cache.Exists(o) {
			return false
		}
		m := cache.Mtime(o).UnixNano()
		if first || m < minOut {
			minOut = m
			first = false
		}
	}

	for i := range inputs {
		if cache.Mtime(i).UnixNano() > minOut {
			return true
		}
	}
	return false
}
