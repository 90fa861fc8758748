package manager

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/nodeflow/pkg/discovery"
	"github.com/cuemby/nodeflow/pkg/events"
	"github.com/cuemby/nodeflow/pkg/graph"
	"github.com/cuemby/nodeflow/pkg/history"
	"github.com/cuemby/nodeflow/pkg/log"
	"github.com/cuemby/nodeflow/pkg/metrics"
	"github.com/cuemby/nodeflow/pkg/node"
	"github.com/cuemby/nodeflow/pkg/scheduler"
	"github.com/cuemby/nodeflow/pkg/types"
	"github.com/cuemby/nodeflow/pkg/worker"
	"github.com/rs/zerolog"
)

// pollTimeout bounds how long the event loop waits for a worker event
// before re-running auto-discovery and dispatch (spec §4.8/§5: "5 s poll
// timeout bounds responsiveness").
const pollTimeout = 5 * time.Second

// ErrNotStarted is returned by any operation that requires Start to have
// already succeeded.
var ErrNotStarted = fmt.Errorf("manager: not started")

// Config configures a Manager.
type Config struct {
	// Threads is the LocalWorker's initial thread budget. May be 0 if the
	// caller intends to rely entirely on RemoteWorkers.
	Threads int
	// Requirements are checked against every connecting worker's
	// environment during its handshake.
	Requirements []types.VersionRequirement
	// TempRoot is the directory under which every dispatched node gets
	// its own node_<id>_<suffix> scratch directory.
	TempRoot string
	// DiscoveryDir is the auto-discovery directory scanned at most once
	// per discovery.MinInterval. Empty disables auto-discovery.
	DiscoveryDir string
	// StaticWorkers supplements or replaces auto-discovery with a fixed
	// worker list, e.g. loaded via discovery.LoadWorkersFile.
	StaticWorkers []discovery.StaticWorker
	// History, if non-nil, receives a Recorder so completed runs are
	// persisted to the audit store (spec's supplemented execution-history
	// feature; never consulted to restore graph state).
	History *history.Store
}

// Manager owns every Worker for the duration of one pipeline invocation
// and is the sole mutator of NodeGraph state and the worker map
// (spec §4.8, §5's single-threaded cooperative scheduling model).
type Manager struct {
	cfg    Config
	logger zerolog.Logger

	scheduler *scheduler.Scheduler
	broker    *events.Broker
	recorder  *history.Recorder

	scanner *discovery.Scanner

	eventCh chan worker.Event

	mu          sync.Mutex
	local       *worker.LocalWorker
	workers     map[string]worker.Worker
	blacklist   map[string]struct{}
	started     bool
	interrupted bool
}

// New builds an unstarted Manager.
func New(cfg Config) (*Manager, error) {
	m := &Manager{
		cfg:       cfg,
		logger:    log.WithComponent("manager"),
		scheduler: scheduler.New(),
		broker:    events.NewBroker(),
		eventCh:   make(chan worker.Event, 64),
		workers:   make(map[string]worker.Worker),
		blacklist: make(map[string]struct{}),
	}

	if cfg.DiscoveryDir != "" {
		scanner, err := discovery.NewScanner(cfg.DiscoveryDir)
		if err != nil {
			return nil, err
		}
		m.scanner = scanner
	}

	if cfg.History != nil {
		m.recorder = history.NewRecorder(cfg.History)
		runID := m.recorder.StartedAt().UTC().Format(time.RFC3339Nano)
		m.logger = m.logger.With().Str("run_id", runID).Logger()
	}

	m.broker.Start()
	return m, nil
}

// Start constructs and connects the LocalWorker, runs an initial
// auto-discovery pass, and blocks until every worker that answered has
// finished its handshake (spec §4.8's start()+wait_for_workers()).
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("manager: already started")
	}
	m.started = true
	m.mu.Unlock()

	local := worker.NewLocalWorker(m.cfg.Threads, m.eventCh)
	if !local.Connect(m.cfg.Requirements) {
		return fmt.Errorf("manager: local worker failed version requirement checks")
	}

	m.mu.Lock()
	m.local = local
	m.workers[local.ID()] = local
	m.mu.Unlock()
	metrics.RegisterComponent("transport", true, "local worker connected")

	if m.cfg.Threads <= 0 {
		m.logger.Warn().Msg("local worker has no threads assigned; connect remote workers or raise --threads")
	}

	if m.scanner == nil {
		metrics.RegisterComponent("discovery", true, "disabled")
	}

	m.connectStatic()
	m.autoConnect(time.Now())

	return m.waitForWorkers()
}

// waitForWorkers blocks until every currently-known worker has reached
// WorkerRunning or been blacklisted after a failed handshake.
func (m *Manager) waitForWorkers() error {
	for {
		if m.allHandshaked() {
			return nil
		}
		select {
		case evt := <-m.eventCh:
			m.handleEvent(evt)
		case <-time.After(pollTimeout):
		}
	}
}

func (m *Manager) allHandshaked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.workers {
		if w.Status() == types.WorkerConnecting || w.Status() == types.WorkerUninitialized {
			return false
		}
	}
	return true
}

func (m *Manager) connectStatic() {
	for _, sw := range m.cfg.StaticWorkers {
		secret, err := base64.StdEncoding.DecodeString(sw.Secret)
		if err != nil {
			m.logger.Error().Err(err).Str("worker_id", sw.ID).Msg("invalid base64 secret in workers file")
			continue
		}
		m.dialRemote(sw.ID, sw.Host, sw.Port, secret, "")
	}
}

// autoConnect runs discovery.Scanner.Scan at most once per
// discovery.MinInterval and dials every newly-claimed worker.
func (m *Manager) autoConnect(now time.Time) {
	if m.scanner == nil || !m.scanner.ShouldScan(now) {
		return
	}
	found, err := m.scanner.Scan()
	if err != nil {
		m.logger.Error().Err(err).Msg("auto-discovery scan failed")
		metrics.RegisterComponent("discovery", false, err.Error())
		return
	}
	metrics.RegisterComponent("discovery", true, "scanning")
	for _, f := range found {
		if m.isBlacklisted(f.Ad.ID) {
			continue
		}
		m.dialRemote(f.Ad.ID, f.Ad.Host, f.Ad.Port, f.Secret, f.Path)
	}
}

func (m *Manager) dialRemote(id, host string, port int, secret []byte, claimedPath string) {
	m.mu.Lock()
	if _, exists := m.workers[id]; exists {
		m.mu.Unlock()
		m.logger.Error().Str("worker_id", id).Msg("already connected to worker with this id")
		return
	}
	m.mu.Unlock()

	m.logger.Info().Str("host", host).Int("port", port).Msg("connecting to worker")

	rw, err := worker.NewRemoteWorker(id, host, port, secret, m.eventCh)
	if err != nil {
		m.logger.Error().Err(err).Str("worker_id", id).Msg("failed to build remote worker")
		m.blacklistWorker(id)
		return
	}
	if !rw.Connect(m.cfg.Requirements) {
		m.blacklistWorker(id)
		return
	}

	m.mu.Lock()
	m.workers[id] = rw
	m.mu.Unlock()
	_ = claimedPath // already unlinked by Scan's claim step; kept for symmetry with spec's os.unlink
}

func (m *Manager) isBlacklisted(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blacklist[id]
	return ok
}

func (m *Manager) blacklistWorker(id string) {
	m.mu.Lock()
	m.blacklist[id] = struct{}{}
	m.mu.Unlock()
	if m.scanner != nil {
		m.scanner.Blacklist(id)
	}
}

// RunUntilDone drives g to completion: it dispatches RUNABLE nodes to
// idle workers, applies TASK_DONE events to g, and re-derives downstream
// state, stopping once every node is terminal (DONE or ERROR) or ctx is
// canceled and no task remains running.
func (m *Manager) RunUntilDone(ctx context.Context, g *graph.NodeGraph) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrNotStarted
	}
	m.mu.Unlock()

	if m.recorder != nil {
		g.RegisterObserver(m.recorder.Observe)
	}

	for {
		m.autoConnect(time.Now())
		m.dispatch(g)

		if m.isTerminal(g) {
			if m.recorder != nil {
				if err := m.recorder.Finish(); err != nil {
					m.logger.Error().Err(err).Msg("failed to record run history")
				}
			}
			return nil
		}

		select {
		case <-ctx.Done():
			m.setInterrupted()
		case evt := <-m.eventCh:
			m.handleEvent(evt)
			m.applyTaskDone(g, evt)
		case <-time.After(pollTimeout):
		}
	}
}

func (m *Manager) setInterrupted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.interrupted {
		m.logger.Info().Msg("interrupt received; draining running tasks, no further dispatch")
	}
	m.interrupted = true
}

// isTerminal reports whether every node has reached DONE or ERROR, or
// whether the run was interrupted and nothing remains running.
func (m *Manager) isTerminal(g *graph.NodeGraph) bool {
	m.mu.Lock()
	interrupted := m.interrupted
	m.mu.Unlock()

	running := 0
	allDone := true
	for _, n := range g.Iterflat() {
		switch g.State(n) {
		case graph.StateDone, graph.StateError:
		case graph.StateRunning:
			running++
			allDone = false
		default:
			allDone = false
		}
	}
	if allDone {
		return true
	}
	return interrupted && running == 0
}

// handleEvent updates worker bookkeeping (handshake outcomes, worker
// removal) for every event kind except TASK_DONE's graph-state side
// effect, which applyTaskDone performs with access to the graph.
func (m *Manager) handleEvent(evt worker.Event) {
	switch evt.Kind {
	case worker.EventHandshakeResponse:
		if evt.Error != nil {
			m.logger.Error().Err(evt.Error).Str("worker", evt.WorkerName).Msg("handshake failed")
			m.mu.Lock()
			delete(m.workers, evt.WorkerID)
			m.mu.Unlock()
			m.blacklistWorker(evt.WorkerID)
			return
		}
		m.broker.Publish(&events.Event{
			Type:     events.EventWorkerJoined,
			Message:  evt.WorkerName + " joined",
			Metadata: map[string]string{"worker_id": evt.WorkerID},
		})
	case worker.EventShutdown:
		m.mu.Lock()
		delete(m.workers, evt.WorkerID)
		m.mu.Unlock()
		if evt.Error != nil {
			m.logger.Error().Err(evt.Error).Str("worker", evt.WorkerName).Msg("worker connection lost")
			m.broker.Publish(&events.Event{
				Type:     events.EventWorkerDown,
				Message:  evt.WorkerName + ": " + evt.Error.Error(),
				Metadata: map[string]string{"worker_id": evt.WorkerID},
			})
		} else {
			m.broker.Publish(&events.Event{
				Type:     events.EventWorkerLeft,
				Message:  evt.WorkerName + " left",
				Metadata: map[string]string{"worker_id": evt.WorkerID},
			})
		}
	}
}

// applyTaskDone marks a completed node DONE or ERROR and re-derives
// downstream state (spec §4.8's dispatch rule: "on TASK_DONE, the driver
// marks the node DONE if error is None, else ERROR").
func (m *Manager) applyTaskDone(g *graph.NodeGraph, evt worker.Event) {
	if evt.Kind != worker.EventTaskDone || evt.Node == nil {
		return
	}
	if evt.Error != nil {
		m.logger.Error().Err(evt.Error).Int64("node_id", evt.Node.ID()).Strs("backtrace", evt.Backtrace).
			Msg("task failed")
		m.broker.Publish(&events.Event{
			Type:    events.EventTaskFailed,
			Message: evt.Node.String() + ": " + evt.Error.Error(),
			Metadata: map[string]string{
				"node_id": fmt.Sprintf("%d", evt.Node.ID()),
			},
		})
		g.SetNodeState(evt.Node, graph.StateError)
	} else {
		m.broker.Publish(&events.Event{
			Type:    events.EventTaskCompleted,
			Message: evt.Node.String() + " completed",
			Metadata: map[string]string{
				"node_id": fmt.Sprintf("%d", evt.Node.ID()),
			},
		})
		g.SetNodeState(evt.Node, graph.StateDone)
	}
	g.Advance()
}

// dispatch assigns every currently idle worker at most one RUNABLE node
// per round, honoring thread budgets and the overcommit rule (spec
// §4.8's CAPACITY-driven dispatch, collapsed here into a direct scan
// since this Manager owns both event collection and dispatch, rather
// than handing CAPACITY events to an external driver).
func (m *Manager) dispatch(g *graph.NodeGraph) {
	m.mu.Lock()
	if m.interrupted {
		m.mu.Unlock()
		return
	}
	snapshot := make([]worker.Worker, 0, len(m.workers))
	for _, w := range m.workers {
		snapshot = append(snapshot, w)
	}
	m.mu.Unlock()

	capacity := make(map[string]int, len(snapshot))
	idle := make(map[string]int, len(snapshot))
	for _, w := range snapshot {
		if w.Status() != types.WorkerRunning {
			continue
		}
		running := 0
		for _, t := range w.Tasks() {
			running += t.Threads()
		}
		idleThreads := w.Threads() - running
		if idleThreads < 0 {
			idleThreads = 0
		}
		idle[w.ID()] = idleThreads
		capacity[w.ID()] = w.Threads()
	}

	byID := make(map[string]worker.Worker, len(snapshot))
	workerIDs := make([]string, 0, len(snapshot))
	for _, w := range snapshot {
		byID[w.ID()] = w
		workerIDs = append(workerIDs, w.ID())
	}
	sort.Strings(workerIDs)

	for {
		candidates := scheduler.RunableNodes(g)
		if len(candidates) == 0 {
			return
		}

		// Recomputed every round: the single largest-capacity fully-idle
		// worker is the only one offered overcommit, per spec §4.8's
		// Open Question (i) resolution (ties break by ascending worker id).
		overcommitID, hasOvercommit := scheduler.SelectOvercommit(idle, capacity)

		dispatched := false
		for _, workerID := range workerIDs {
			idleThreads := idle[workerID]
			if idleThreads <= 0 {
				continue
			}
			overcommit := hasOvercommit && workerID == overcommitID
			n := m.scheduler.SelectNode(candidates, scheduler.WorkerCapacity{
				WorkerID: workerID, Threads: idleThreads, Overcommit: overcommit,
			})
			if n == nil {
				continue
			}

			w := byID[workerID]
			g.SetNodeState(n, graph.StateRunning)
			if !w.StartTask(n, m.cfg.TempRoot) {
				g.SetNodeState(n, graph.StateRunable)
				continue
			}
			m.broker.Publish(&events.Event{
				Type:    events.EventTaskDispatched,
				Message: n.String() + " dispatched to " + workerID,
				Metadata: map[string]string{
					"node_id":   fmt.Sprintf("%d", n.ID()),
					"worker_id": workerID,
				},
			})
			idle[workerID] -= n.Threads()
			if idle[workerID] < 0 {
				idle[workerID] = 0
			}
			dispatched = true
			candidates = removeNode(candidates, n)
		}

		if !dispatched {
			return
		}
	}
}

func removeNode(nodes []*node.Node, target *node.Node) []*node.Node {
	out := make([]*node.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.ID() != target.ID() {
			out = append(out, n)
		}
	}
	return out
}

// SetThreads adjusts the local worker's advertised capacity, e.g. from a
// CLI's interactive "+"/"-" key handler.
func (m *Manager) SetThreads(threads int) {
	m.mu.Lock()
	local := m.local
	m.mu.Unlock()
	if local != nil {
		local.SetThreads(threads)
	}
}

// RunID returns the run-history key this Manager's invocation is recorded
// under, or "" if it was built without a history store.
func (m *Manager) RunID() string {
	if m.recorder == nil {
		return ""
	}
	return m.recorder.StartedAt().UTC().Format(time.RFC3339Nano)
}

// Tasks returns every node currently running, grouped by owning worker
// id, for an interactive "list running tasks" command.
func (m *Manager) Tasks() map[string][]*node.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]*node.Node, len(m.workers))
	for id, w := range m.workers {
		out[id] = w.Tasks()
	}
	return out
}

// Workers satisfies metrics.WorkerSource.
func (m *Manager) Workers() []types.WorkerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.WorkerInfo, 0, len(m.workers))
	for _, w := range m.workers {
		out = append(out, w.Info())
	}
	return out
}

// Broker exposes the Manager's event broker so the CLI and metrics
// collector can subscribe without constructing their own.
func (m *Manager) Broker() *events.Broker { return m.broker }

// Shutdown tears down every worker and stops the event broker. Safe to
// call multiple times.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	workers := make([]worker.Worker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.workers = make(map[string]worker.Worker)
	m.local = nil
	m.mu.Unlock()

	for _, w := range workers {
		w.Shutdown()
	}
	m.broker.Stop()
}

