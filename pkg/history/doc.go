// Package history is a local, BoltDB-backed audit trail of past pipeline
// runs, adapted from the teacher's storage layer and trimmed to a single
// bucket. It is read only by the "nodeflow history" CLI command and is
// never consulted when constructing or restoring a NodeGraph.
package history
