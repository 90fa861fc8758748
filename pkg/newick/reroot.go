package newick

import "errors"

// ErrInvalidBranchLength is returned by RerootOnMidpoint when any
// non-root branch is missing a length or has a negative one; the
// midpoint is undefined without real distances.
var ErrInvalidBranchLength = errors.New("newick: every branch but the root must have a non-negative length")

type branch struct {
	to     *Tree
	length float64
}

// RerootOnMidpoint returns a new tree rooted at the midpoint of the
// longest path between any two of root's nodes, splitting the branch
// that path crosses (or landing exactly on an existing node, if the
// midpoint falls there). A tree with fewer than two branches is
// returned unchanged: there is nothing to reroot.
func RerootOnMidpoint(root *Tree) (*Tree, error) {
	if root == nil {
		return nil, errors.New("newick: nil tree")
	}

	adj, err := buildAdjacency(root)
	if err != nil {
		return nil, err
	}
	if len(adj) < 3 {
		return clone(root), nil
	}

	u, _, _ := farthest(adj, root)
	v, dist, prev := farthest(adj, u)
	if u == v {
		return clone(root), nil
	}

	path := walkPath(prev, u, v)
	cum := make([]float64, len(path))
	for i := 1; i < len(path); i++ {
		cum[i] = cum[i-1] + edgeWeight(adj, path[i-1], path[i])
	}
	mid := dist[v] / 2

	idx := 0
	for idx < len(cum)-2 && cum[idx+1] < mid {
		idx++
	}
	left, right := path[idx], path[idx+1]
	edgeLen := cum[idx+1] - cum[idx]
	offsetLeft := mid - cum[idx]
	offsetRight := edgeLen - offsetLeft

	const epsilon = 1e-9
	var newRoot *Tree
	switch {
	case offsetLeft <= epsilon:
		newRoot = left
	case offsetRight <= epsilon:
		newRoot = right
	default:
		split := &Tree{}
		removeBranch(adj, left, right)
		addBranch(adj, left, split, offsetLeft)
		addBranch(adj, split, right, offsetRight)
		newRoot = split
	}

	rebuilt := rebuildFrom(adj, newRoot, nil)
	return simplify(rebuilt, true), nil
}

// buildAdjacency walks the rooted tree into an undirected weighted graph
// over its nodes, validating that every non-root branch carries a
// non-negative length.
func buildAdjacency(root *Tree) (map[*Tree][]branch, error) {
	adj := make(map[*Tree][]branch)
	adj[root] = nil // ensure a leaf-only tree still registers one node

	var walk func(n, parent *Tree) error
	walk = func(n, parent *Tree) error {
		if parent != nil {
			if n.Length == nil || *n.Length < 0 {
				return ErrInvalidBranchLength
			}
			addBranch(adj, parent, n, *n.Length)
		}
		for _, c := range n.Children {
			if err := walk(c, n); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root, nil); err != nil {
		return nil, err
	}
	return adj, nil
}

func addBranch(adj map[*Tree][]branch, a, b *Tree, length float64) {
	adj[a] = append(adj[a], branch{to: b, length: length})
	adj[b] = append(adj[b], branch{to: a, length: length})
}

func removeBranch(adj map[*Tree][]branch, a, b *Tree) {
	adj[a] = dropTo(adj[a], b)
	adj[b] = dropTo(adj[b], a)
}

func dropTo(branches []branch, target *Tree) []branch {
	out := branches[:0]
	for _, b := range branches {
		if b.to != target {
			out = append(out, b)
		}
	}
	return out
}

func edgeWeight(adj map[*Tree][]branch, a, b *Tree) float64 {
	for _, e := range adj[a] {
		if e.to == b {
			return e.length
		}
	}
	return 0
}

// farthest runs a weighted traversal of the tree from start and returns
// the node furthest from it along with full distance/predecessor maps,
// the two-pass ingredient of the standard tree-diameter algorithm.
func farthest(adj map[*Tree][]branch, start *Tree) (*Tree, map[*Tree]float64, map[*Tree]*Tree) {
	dist := map[*Tree]float64{start: 0}
	prev := map[*Tree]*Tree{}
	stack := []*Tree{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range adj[n] {
			if _, seen := dist[e.to]; seen {
				continue
			}
			dist[e.to] = dist[n] + e.length
			prev[e.to] = n
			stack = append(stack, e.to)
		}
	}
	far := start
	best := -1.0
	for node, d := range dist {
		if d > best {
			best, far = d, node
		}
	}
	return far, dist, prev
}

func walkPath(prev map[*Tree]*Tree, u, v *Tree) []*Tree {
	var path []*Tree
	for n := v; ; n = prev[n] {
		path = append(path, n)
		if n == u {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// rebuildFrom turns the undirected graph back into a rooted Tree with
// node as its root, assigning every non-root node's Length from the
// weight of the edge to its new parent.
func rebuildFrom(adj map[*Tree][]branch, node, cameFrom *Tree) *Tree {
	var children []*Tree
	for _, e := range adj[node] {
		if e.to == cameFrom {
			continue
		}
		child := rebuildFrom(adj, e.to, node)
		length := e.length
		child.Length = &length
		children = append(children, child)
	}
	return &Tree{Name: node.Name, Children: children}
}

// simplify suppresses degree-two nodes left behind when the original
// root had exactly two children: once one of its branches is reattached
// elsewhere during rerooting, the root itself becomes a redundant
// single-child node whose length must be folded into its remaining
// child rather than discarded.
func simplify(t *Tree, isRoot bool) *Tree {
	for i, c := range t.Children {
		t.Children[i] = simplify(c, false)
	}
	if !isRoot && len(t.Children) == 1 {
		only := t.Children[0]
		if t.Length != nil {
			sum := *t.Length
			if only.Length != nil {
				sum += *only.Length
			}
			only.Length = &sum
		}
		return only
	}
	return t
}
