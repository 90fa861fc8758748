package worker

import (
	"context"
	"sync"

	"github.com/cuemby/nodeflow/pkg/log"
	"github.com/cuemby/nodeflow/pkg/node"
	"github.com/cuemby/nodeflow/pkg/types"
	"github.com/cuemby/nodeflow/pkg/versioncheck"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LocalWorker runs one goroutine per dispatched task, each driving a
// node.Node.Run to completion and reporting back over a shared events
// channel, the Go analog of the teacher's per-task child process plus
// completion queue.
type LocalWorker struct {
	id     string
	name   string
	logger zerolog.Logger

	mu      sync.Mutex
	status  types.WorkerStatus
	threads int
	running map[int64]*node.Node

	events chan Event
}

// NewLocalWorker builds an uninitialized LocalWorker with the given
// thread capacity. Connect must succeed before it accepts tasks.
func NewLocalWorker(threads int, events chan Event) *LocalWorker {
	id := uuid.New().String()
	return &LocalWorker{
		id:      id,
		name:    "localhost",
		logger:  log.WithWorkerID(id),
		status:  types.WorkerUninitialized,
		threads: threads,
		running: make(map[int64]*node.Node),
		events:  events,
	}
}

// Connect runs the declared version requirement checks and, on success,
// transitions to running and emits a successful HANDSHAKE_RESPONSE.
func (w *LocalWorker) Connect(reqs []types.VersionRequirement) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.status != types.WorkerUninitialized {
		w.logger.Error().Msg("attempted to connect an already-initialized LocalWorker")
		return false
	}

	_, err := versioncheck.CheckRequirements(context.Background(), reqs)
	if err != nil {
		w.logger.Error().Err(err).Msg("local worker failed version requirement checks")
		return false
	}

	w.status = types.WorkerRunning
	w.events <- Event{Kind: EventHandshakeResponse, WorkerID: w.id, WorkerName: w.name}
	return true
}

func (w *LocalWorker) ID() string                { return w.id }
func (w *LocalWorker) Name() string              { return w.name }
func (w *LocalWorker) Kind() types.WorkerKind    { return types.WorkerKindLocal }
func (w *LocalWorker) Threads() int              { return w.threads }

func (w *LocalWorker) Status() types.WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// SetThreads adjusts the worker's advertised capacity, e.g. in response
// to interactive "+"/"-" key presses on the driver's console.
func (w *LocalWorker) SetThreads(threads int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.threads = threads
}

func (w *LocalWorker) Tasks() []*node.Node {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*node.Node, 0, len(w.running))
	for _, n := range w.running {
		out = append(out, n)
	}
	return out
}

// StartTask spawns a goroutine that runs n to completion and reports a
// TASK_DONE event. The goroutine itself never touches NodeGraph state;
// only the Manager's event loop does, once it observes the event.
func (w *LocalWorker) StartTask(n *node.Node, tempRoot string) bool {
	w.mu.Lock()
	if w.status != types.WorkerRunning {
		w.mu.Unlock()
		return false
	}
	w.running[n.ID()] = n
	w.mu.Unlock()

	go w.runTask(n, tempRoot)
	return true
}

func (w *LocalWorker) runTask(n *node.Node, tempRoot string) {
	w.logger.Debug().Int64("node_id", n.ID()).Msg("starting local task")

	err := n.Run(tempRoot)

	w.mu.Lock()
	delete(w.running, n.ID())
	w.mu.Unlock()

	evt := Event{Kind: EventTaskDone, WorkerID: w.id, WorkerName: w.name, Node: n}
	if err != nil {
		evt.Error = err
	}
	w.events <- evt
}

// Shutdown marks the worker terminated and sends SIGTERM to the command
// of every task still running; no new tasks are accepted afterward.
func (w *LocalWorker) Shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status == types.WorkerTerminated {
		return
	}
	w.status = types.WorkerTerminated
	w.logger.Debug().Msg("shutting down local worker")
	for _, n := range w.running {
		if cmd := n.RawCommand(); cmd != nil {
			cmd.Terminate()
		}
	}
}

// Info snapshots the worker's current load.
func (w *LocalWorker) Info() types.WorkerInfo {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := make([]int, 0, len(w.running))
	for id := range w.running {
		ids = append(ids, int(id))
	}

	return types.WorkerInfo{
		ID:         w.id,
		Name:       w.name,
		Kind:       types.WorkerKindLocal,
		Status:     w.status,
		Capacity:   w.threads,
		RunningIDs: ids,
	}
}
