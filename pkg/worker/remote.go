package worker

import (
	"fmt"
	"os"
	"sync"

	"github.com/cuemby/nodeflow/pkg/command"
	"github.com/cuemby/nodeflow/pkg/log"
	"github.com/cuemby/nodeflow/pkg/node"
	"github.com/cuemby/nodeflow/pkg/secrets"
	"github.com/cuemby/nodeflow/pkg/transport"
	"github.com/cuemby/nodeflow/pkg/types"
	"github.com/rs/zerolog"
)

// nodeVersion is reported in the HANDSHAKE payload; a mismatch between
// manager and worker builds surfaces as a handshake error (spec §6).
const nodeVersion = "1.0.0"

// RemoteWorker proxies tasks to a peer process over an authenticated
// transport.Channel, implementing the connecting -> running -> terminated
// state machine of spec §4.7.
type RemoteWorker struct {
	id        string
	name      string
	host      string
	port      int
	secretRaw []byte
	secret    *secrets.Manager
	logger    zerolog.Logger

	ch     *transport.Channel
	events chan Event

	mu      sync.Mutex
	status  types.WorkerStatus
	threads int
	running map[int64]*node.Node
}

// NewRemoteWorker builds an unconnected RemoteWorker for a worker
// discovered at host:port, authenticated with secret.
func NewRemoteWorker(id, host string, port int, secret []byte, events chan Event) (*RemoteWorker, error) {
	mgr, err := secrets.NewManager(secret)
	if err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}
	name := fmt.Sprintf("%s:%d", host, port)
	return &RemoteWorker{
		id:        id,
		name:      name,
		host:      host,
		port:      port,
		secretRaw: secret,
		secret:    mgr,
		logger:    log.WithWorkerID(id),
		status:    types.WorkerUninitialized,
		running:   make(map[int64]*node.Node),
		events:    events,
	}, nil
}

// Connect dials the worker, sends a HANDSHAKE, and starts the goroutine
// that decodes subsequent events onto the shared events channel. It
// returns once the connection is open; handshake success/failure arrives
// asynchronously as an EventHandshakeResponse.
func (w *RemoteWorker) Connect(reqs []types.VersionRequirement) bool {
	w.mu.Lock()
	if w.status != types.WorkerUninitialized {
		w.mu.Unlock()
		w.logger.Error().Msg("attempted to connect an already-initialized RemoteWorker")
		return false
	}
	w.mu.Unlock()

	ch, err := transport.Dial(w.host, w.port, w.secretRaw)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to connect to remote worker")
		return false
	}
	w.ch = ch

	cwd, _ := os.Getwd()
	if err := ch.Send(transport.NewHandshake(cwd, nodeVersion, reqs)); err != nil {
		w.logger.Error().Err(err).Msg("failed to send handshake")
		ch.Close()
		return false
	}

	w.mu.Lock()
	w.status = types.WorkerConnecting
	w.mu.Unlock()

	go w.receiveLoop()
	return true
}

func (w *RemoteWorker) receiveLoop() {
	for {
		msg, err := w.ch.Receive()
		if err != nil {
			w.logger.Error().Err(err).Msg("connection to remote worker broke")
			w.handleSpontaneousShutdown()
			return
		}
		if !w.dispatch(msg) {
			return
		}
	}
}

// dispatch returns false once the connection should stop being read from.
func (w *RemoteWorker) dispatch(msg transport.Message) bool {
	w.mu.Lock()
	status := w.status
	w.mu.Unlock()

	switch {
	case status == types.WorkerConnecting && msg.Event == transport.EventHandshakeResponse:
		w.handleHandshakeResponse(msg)
		return true
	case status == types.WorkerRunning && msg.Event == transport.EventCapacity:
		w.handleCapacity(msg)
		return true
	case status == types.WorkerRunning && msg.Event == transport.EventTaskDone:
		w.handleTaskDone(msg)
		return true
	case status == types.WorkerRunning && msg.Event == transport.EventShutdown:
		w.handleShutdown()
		return false
	default:
		w.logger.Error().Str("event", string(msg.Event)).Str("status", string(status)).
			Msg("unexpected event for current worker state")
		return true
	}
}

func (w *RemoteWorker) handleHandshakeResponse(msg transport.Message) {
	if msg.HandshakeResponse != nil && msg.HandshakeResponse.Error != nil {
		w.logger.Error().Str("error", *msg.HandshakeResponse.Error).Msg("handshake failed")
		w.events <- Event{Kind: EventHandshakeResponse, WorkerID: w.id, WorkerName: w.name,
			Error: fmt.Errorf("%s", *msg.HandshakeResponse.Error)}
		w.teardown()
		return
	}

	w.mu.Lock()
	w.status = types.WorkerRunning
	w.mu.Unlock()
	w.events <- Event{Kind: EventHandshakeResponse, WorkerID: w.id, WorkerName: w.name}
}

func (w *RemoteWorker) handleCapacity(msg transport.Message) {
	if msg.Capacity == nil {
		return
	}
	w.mu.Lock()
	w.threads = msg.Capacity.Threads
	w.mu.Unlock()
}

func (w *RemoteWorker) handleTaskDone(msg transport.Message) {
	if msg.TaskDone == nil {
		return
	}
	w.mu.Lock()
	n := w.running[int64(msg.TaskDone.TaskID)]
	delete(w.running, int64(msg.TaskDone.TaskID))
	w.mu.Unlock()

	evt := Event{Kind: EventTaskDone, WorkerID: w.id, WorkerName: w.name, Node: n, Backtrace: msg.TaskDone.Backtrace}
	if msg.TaskDone.Error != nil {
		evt.Error = fmt.Errorf("%s", *msg.TaskDone.Error)
	}
	w.events <- evt
}

func (w *RemoteWorker) handleShutdown() {
	w.teardown()
	w.events <- Event{Kind: EventShutdown, WorkerID: w.id, WorkerName: w.name}
}

func (w *RemoteWorker) handleSpontaneousShutdown() {
	w.teardown()
	w.events <- Event{Kind: EventShutdown, WorkerID: w.id, WorkerName: w.name,
		Error: fmt.Errorf("worker: connection to %s broke", w.name)}
}

func (w *RemoteWorker) teardown() {
	w.mu.Lock()
	w.status = types.WorkerTerminated
	w.running = make(map[int64]*node.Node)
	w.mu.Unlock()
	if w.ch != nil {
		w.ch.Close()
	}
}

func (w *RemoteWorker) ID() string             { return w.id }
func (w *RemoteWorker) Name() string           { return w.name }
func (w *RemoteWorker) Kind() types.WorkerKind { return types.WorkerKindRemote }

func (w *RemoteWorker) Status() types.WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *RemoteWorker) Threads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.threads
}

func (w *RemoteWorker) Tasks() []*node.Node {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*node.Node, 0, len(w.running))
	for _, n := range w.running {
		out = append(out, n)
	}
	return out
}

// StartTask serializes n's command and temp root into a TASK_START
// message. n's command must be a single AtomicCmd (command.Describe's
// limitation); CmdSet nodes cannot currently be dispatched remotely.
func (w *RemoteWorker) StartTask(n *node.Node, tempRoot string) bool {
	w.mu.Lock()
	if w.status != types.WorkerRunning {
		w.mu.Unlock()
		return false
	}
	w.mu.Unlock()

	desc, err := command.Describe(n.RawCommand(), int(n.ID()), n.Description(), n.Threads(), tempRoot)
	if err != nil {
		w.logger.Error().Err(err).Int64("node_id", n.ID()).Msg("cannot dispatch node to remote worker")
		return false
	}

	if err := w.ch.Send(transport.NewTaskStart(desc, tempRoot)); err != nil {
		w.logger.Error().Err(err).Msg("failed to send task start")
		return false
	}

	w.mu.Lock()
	w.running[n.ID()] = n
	w.mu.Unlock()
	return true
}

// Shutdown sends a SHUTDOWN message (best-effort) and closes the channel.
func (w *RemoteWorker) Shutdown() {
	w.mu.Lock()
	alreadyDown := w.status == types.WorkerTerminated
	w.mu.Unlock()
	if alreadyDown {
		return
	}
	if w.ch != nil {
		_ = w.ch.Send(transport.NewShutdown())
	}
	w.teardown()
}

// Info snapshots the worker's current load.
func (w *RemoteWorker) Info() types.WorkerInfo {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := make([]int, 0, len(w.running))
	for id := range w.running {
		ids = append(ids, int(id))
	}

	return types.WorkerInfo{
		ID:         w.id,
		Name:       w.name,
		Kind:       types.WorkerKindRemote,
		Status:     w.status,
		Capacity:   w.threads,
		RunningIDs: ids,
	}
}
