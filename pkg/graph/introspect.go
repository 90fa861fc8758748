package graph

import (
	"fmt"
	"io"
	"sort"
)

// ListOutputs returns every output file path declared across the full
// node set, sorted and deduplicated.
func (g *NodeGraph) ListOutputs() []string {
	seen := make(map[string]struct{})
	for _, n := range g.Iterflat() {
		for path := range n.OutputFiles() {
			seen[path] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for path := range seen {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// ExecutableRequirement is one executable's accumulated version
// predicates across every node that declared it, e.g. ">=1.0" and "<2.0"
// from two different tasks both requiring "samtools".
type ExecutableRequirement struct {
	Name       string
	Predicates []string
}

// ListExecutables returns every executable named by the full node set,
// either as a bare declared dependency or via a VersionRequirement,
// sorted by name with deduplicated, sorted predicates.
func (g *NodeGraph) ListExecutables() []ExecutableRequirement {
	predicates := make(map[string]map[string]struct{})
	ensure := func(name string) {
		if _, ok := predicates[name]; !ok {
			predicates[name] = make(map[string]struct{})
		}
	}

	for _, n := range g.Iterflat() {
		for exe := range n.Executables() {
			ensure(exe)
		}
		for _, req := range n.Requirements() {
			ensure(req.Executable)
			predicates[req.Executable][req.Predicate] = struct{}{}
		}
	}

	out := make([]ExecutableRequirement, 0, len(predicates))
	for name, preds := range predicates {
		list := make([]string, 0, len(preds))
		for p := range preds {
			list = append(list, p)
		}
		sort.Strings(list)
		out = append(out, ExecutableRequirement{Name: name, Predicates: list})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// WriteDot renders the graph as a Graphviz dot file, one record node per
// scheduled node, colored by its current State rather than by the static
// red/green/white topology classification of the node it's adapted from
// (a live state is available here; the original only had shape).
// Dependencies() edges are drawn solid; Subnodes() edges, which exist
// only between a MetaNode and its children, are drawn dashed.
func (g *NodeGraph) WriteDot(w io.Writer) error {
	nodes := g.Iterflat()

	if _, err := fmt.Fprintln(w, "digraph G {"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "  graph [ dpi = 75 ];"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "  node [shape=record,width=.1,height=.1];"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	for _, n := range nodes {
		color := dotColor(g.State(n))
		if _, err := fmt.Fprintf(w, "  Node_%d [label=%q,style=filled,fillcolor=%s];\n",
			n.ID(), n.Description(), color); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	for _, n := range nodes {
		for _, dep := range n.Dependencies() {
			if _, err := fmt.Fprintf(w, "  Node_%d -> Node_%d;\n", dep.ID(), n.ID()); err != nil {
				return err
			}
		}
		for _, sub := range n.Subnodes() {
			if _, err := fmt.Fprintf(w, "  Node_%d -> Node_%d [style=dashed];\n", n.ID(), sub.ID()); err != nil {
				return err
			}
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}

func dotColor(s State) string {
	switch s {
	case StateDone:
		return "green"
	case StateError:
		return "red"
	case StateRunning:
		return "yellow"
	case StateQueued, StateRunable:
		return "lightblue"
	case StateOutdated:
		return "orange"
	default:
		return "white"
	}
}
