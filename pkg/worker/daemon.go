package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cuemby/nodeflow/pkg/command"
	"github.com/cuemby/nodeflow/pkg/log"
	"github.com/cuemby/nodeflow/pkg/transport"
	"github.com/cuemby/nodeflow/pkg/types"
	"github.com/cuemby/nodeflow/pkg/versioncheck"
	"github.com/rs/zerolog"
)

// Daemon is the worker-side counterpart to RemoteWorker: it listens for a
// Manager's connection, speaks its half of the HANDSHAKE / TASK_START /
// TASK_DONE / SHUTDOWN protocol, and actually runs the dispatched
// AtomicCmds. One Daemon serves one transport.Server; each accepted
// Channel gets its own goroutine via Accept.
type Daemon struct {
	threads    int
	overcommit bool
	logger     zerolog.Logger

	mu      sync.Mutex
	running map[int]*command.AtomicCmd
}

// NewDaemon builds a Daemon advertising the given thread capacity.
func NewDaemon(threads int, overcommit bool) *Daemon {
	return &Daemon{
		threads:    threads,
		overcommit: overcommit,
		logger:     log.WithComponent("worker-daemon"),
		running:    make(map[int]*command.AtomicCmd),
	}
}

// Accept implements transport.AcceptFunc. It owns ch for its entire
// lifetime: the connection is closed before Accept returns.
func (d *Daemon) Accept(ch *transport.Channel) {
	defer ch.Close()

	msg, err := ch.Receive()
	if err != nil {
		d.logger.Error().Err(err).Msg("connection closed before handshake")
		return
	}
	if msg.Event != transport.EventHandshake || msg.Handshake == nil {
		d.logger.Error().Str("event", string(msg.Event)).Msg("expected HANDSHAKE as first message")
		return
	}

	if msg.Handshake.Version != nodeVersion {
		reason := fmt.Sprintf("version mismatch: manager %s, worker %s", msg.Handshake.Version, nodeVersion)
		d.logger.Error().Msg(reason)
		_ = ch.Send(transport.NewHandshakeError(reason))
		return
	}
	if _, err := versioncheck.CheckRequirements(context.Background(), msg.Handshake.Requirements); err != nil {
		d.logger.Error().Err(err).Msg("failed version requirement checks")
		_ = ch.Send(transport.NewHandshakeError(err.Error()))
		return
	}
	if err := ch.Send(transport.NewHandshakeOK()); err != nil {
		d.logger.Error().Err(err).Msg("failed to send handshake response")
		return
	}
	if err := ch.Send(transport.NewCapacity(d.threads, d.overcommit)); err != nil {
		d.logger.Error().Err(err).Msg("failed to advertise capacity")
		return
	}

	d.serve(ch)
}

// serve loops receiving TASK_START/SHUTDOWN until the connection breaks
// or the manager ends the session.
func (d *Daemon) serve(ch *transport.Channel) {
	for {
		msg, err := ch.Receive()
		if err != nil {
			d.logger.Info().Err(err).Msg("manager connection broke, terminating outstanding tasks")
			d.terminateAll()
			return
		}

		switch msg.Event {
		case transport.EventTaskStart:
			if msg.TaskStart == nil {
				continue
			}
			go d.runTask(ch, msg.TaskStart.Task, msg.TaskStart.TempRoot)
		case transport.EventShutdown:
			d.terminateAll()
			return
		default:
			d.logger.Error().Str("event", string(msg.Event)).Msg("unexpected event from manager")
		}
	}
}

func (d *Daemon) terminateAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, cmd := range d.running {
		cmd.Terminate()
		delete(d.running, id)
	}
}

// runTask rebuilds desc into a runnable AtomicCmd, drives it through
// run/join/commit exactly as node.Node.Run does on the embedded path, and
// reports the outcome as a TASK_DONE message.
func (d *Daemon) runTask(ch *transport.Channel, desc types.TaskDescriptor, tempRoot string) {
	logger := d.logger.With().Int("node_id", desc.NodeID).Logger()

	cmd, err := command.Rebuild(desc)
	if err != nil {
		logger.Error().Err(err).Msg("failed to rebuild task descriptor")
		d.reportError(ch, desc.NodeID, err.Error(), nil)
		return
	}

	if err := os.MkdirAll(tempRoot, 0o755); err != nil {
		logger.Error().Err(err).Msg("failed to create temp root")
		d.reportError(ch, desc.NodeID, err.Error(), nil)
		return
	}
	tempDir, err := os.MkdirTemp(tempRoot, fmt.Sprintf("node_%d_", desc.NodeID))
	if err != nil {
		logger.Error().Err(err).Msg("failed to create temp dir")
		d.reportError(ch, desc.NodeID, err.Error(), nil)
		return
	}

	d.mu.Lock()
	d.running[desc.NodeID] = cmd
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.running, desc.NodeID)
		d.mu.Unlock()
	}()

	// On any failure below, tempDir is retained for diagnosis rather than
	// removed — it is only cleaned up on the successful-commit path, same
	// retention contract as node.Node.Run.
	if err := cmd.Run(tempDir); err != nil {
		logger.Error().Err(err).Msg("task failed to start")
		d.reportError(ch, desc.NodeID, err.Error(), nil)
		return
	}

	results := cmd.JoinResults()
	if failed(results) {
		backtrace := collectBacktrace(tempDir)
		d.reportError(ch, desc.NodeID, fmt.Sprintf("command failed: %s", describeFailure(results)), backtrace)
		return
	}

	if err := cmd.Commit(); err != nil {
		logger.Error().Err(err).Msg("task failed to commit")
		d.reportError(ch, desc.NodeID, err.Error(), nil)
		return
	}

	os.RemoveAll(tempDir)
	if err := ch.Send(transport.NewTaskDoneOK(desc.NodeID)); err != nil {
		logger.Error().Err(err).Msg("failed to report task completion")
	}
}

func (d *Daemon) reportError(ch *transport.Channel, nodeID int, reason string, backtrace []string) {
	if err := ch.Send(transport.NewTaskDoneError(nodeID, reason, backtrace)); err != nil {
		d.logger.Error().Err(err).Int("node_id", nodeID).Msg("failed to report task failure")
	}
}

func failed(results []command.JoinResult) bool {
	for _, r := range results {
		if r.Started && (r.Signal != "" || r.ExitCode != 0) {
			return true
		}
	}
	return false
}

func describeFailure(results []command.JoinResult) string {
	for _, r := range results {
		if r.Started && (r.Signal != "" || r.ExitCode != 0) {
			return r.String()
		}
	}
	return "unknown"
}

// collectBacktrace makes a best-effort attempt to return the contents of
// every non-empty file the failed command left in tempDir, which runTask
// then keeps; the same diagnostic collection node.Node.Run performs on the
// embedded path.
func collectBacktrace(tempDir string) []string {
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return nil
	}
	var lines []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(tempDir, e.Name()))
		if err != nil || len(data) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", e.Name(), string(data)))
	}
	return lines
}
