package graph

import "fmt"

// CycleError is returned by New when the submitted nodes' subnode and
// dependency relationships are not acyclic.
type CycleError struct {
	NodeIDs []int64
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("graph: dependency cycle involving nodes %v", e.NodeIDs)
}

// DuplicateOutputError is returned by New when two distinct nodes declare
// the same output path.
type DuplicateOutputError struct {
	Path    string
	NodeIDs []int64
}

func (e *DuplicateOutputError) Error() string {
	return fmt.Sprintf("graph: output %q declared by multiple nodes %v", e.Path, e.NodeIDs)
}
