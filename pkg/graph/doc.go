// Package graph flattens a submitted node set into its transitive
// closure over subnodes and dependencies, detects cycles and duplicate
// outputs at construction, and derives and tracks each node's state
// (DONE, OUTDATED, RUNABLE, QUEUED, RUNNING, ERROR) as the pipeline
// progresses. State changes are published synchronously to registered
// observers and, if attached, to an events.Broker.
package graph
