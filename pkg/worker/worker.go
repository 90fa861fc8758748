// Package worker implements the two kinds of task executors a Manager
// dispatches to: LocalWorker, which forks a child process per task on the
// same host, and RemoteWorker, which proxies tasks to a peer process over
// a transport.Channel. Adapted from the teacher's pkg/worker Config and
// mutex-map constructor idiom, grounded primarily on the distilled
// pipeline's worker/manager protocol description.
package worker

import (
	"github.com/cuemby/nodeflow/pkg/node"
	"github.com/cuemby/nodeflow/pkg/types"
)

// EventKind discriminates an Event emitted by a Worker onto its shared
// event channel.
type EventKind int

const (
	EventHandshakeResponse EventKind = iota
	EventCapacity
	EventTaskDone
	EventShutdown
)

// Event is the Go-side analog of the wire protocol's discriminated
// message (spec §6), carrying whichever fields its Kind uses.
type Event struct {
	Kind       EventKind
	WorkerID   string
	WorkerName string

	Error      error
	Threads    int
	Overcommit bool

	Node      *node.Node
	Backtrace []string
}

// Worker is implemented by both LocalWorker and RemoteWorker. The Manager
// only ever sees this interface.
type Worker interface {
	ID() string
	Name() string
	Kind() types.WorkerKind
	Status() types.WorkerStatus
	Threads() int
	Tasks() []*node.Node

	// StartTask dispatches n for execution under tempRoot. It returns
	// false if the worker cannot currently accept work.
	StartTask(n *node.Node, tempRoot string) bool

	// Shutdown forcibly terminates outstanding work and transitions to
	// terminated.
	Shutdown()

	// Info snapshots the worker's current identity and load for the
	// scheduler and metrics collector.
	Info() types.WorkerInfo
}
