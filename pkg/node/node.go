package node

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/cuemby/nodeflow/pkg/command"
	"github.com/cuemby/nodeflow/pkg/log"
	"github.com/cuemby/nodeflow/pkg/types"
	"github.com/rs/zerolog"
)

var nextID int64

func newID() int64 {
	return atomic.AddInt64(&nextID, 1)
}

// Node adapts a command.Command to the scheduler: it owns a stable id, a
// human description, and the dependency/subnode relationships the
// NodeGraph state machine derives state from. A Node is immutable after
// construction.
type Node struct {
	id          int64
	description string
	cmd         command.Command
	threads     int

	subnodes     []*Node
	dependencies []*Node
}

// Option configures a Node at construction.
type Option func(*Node)

func WithThreads(n int) Option          { return func(nd *Node) { nd.threads = n } }
func WithSubnodes(subs ...*Node) Option { return func(nd *Node) { nd.subnodes = append(nd.subnodes, subs...) } }
func WithDependencies(deps ...*Node) Option {
	return func(nd *Node) { nd.dependencies = append(nd.dependencies, deps...) }
}

// New builds a Node wrapping cmd. Threads defaults to 1 and must be >= 1.
func New(description string, cmd command.Command, opts ...Option) (*Node, error) {
	if cmd == nil {
		return nil, errf("node: nil command, use NewMeta for a command-less node")
	}

	n := &Node{id: newID(), description: description, cmd: cmd, threads: 1}
	for _, opt := range opts {
		opt(n)
	}
	if n.threads < 1 {
		return nil, errf("node %d: threads must be >= 1", n.id)
	}

	for out := range n.OutputFiles() {
		if _, clash := n.AuxiliaryFiles()[out]; clash {
			return nil, errf("node %d: output %q collides with an auxiliary input", n.id, out)
		}
	}

	return n, nil
}

// NewMeta builds a MetaNode: a Node with no command whose doneness is
// defined entirely by its subnodes/dependencies (spec's "done iff all
// sub/deps are done").
func NewMeta(description string, opts ...Option) (*Node, error) {
	n := &Node{id: newID(), description: description, threads: 0}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

func (n *Node) ID() int64              { return n.id }
func (n *Node) Description() string    { return n.description }
func (n *Node) Threads() int           { return n.threads }
func (n *Node) Subnodes() []*Node      { return n.subnodes }
func (n *Node) Dependencies() []*Node  { return n.dependencies }
func (n *Node) IsMeta() bool           { return n.cmd == nil }

// RawCommand returns the wrapped command.Command, or nil for a MetaNode.
// RemoteWorker dispatch uses this to serialize a wire TaskDescriptor.
func (n *Node) RawCommand() command.Command { return n.cmd }

func (n *Node) InputFiles() map[string]struct{} {
	if n.cmd == nil {
		return map[string]struct{}{}
	}
	return n.cmd.InputFiles()
}

func (n *Node) OutputFiles() map[string]struct{} {
	if n.cmd == nil {
		return map[string]struct{}{}
	}
	return n.cmd.OutputFiles()
}

func (n *Node) AuxiliaryFiles() map[string]struct{} {
	if n.cmd == nil {
		return map[string]struct{}{}
	}
	return n.cmd.AuxiliaryFiles()
}

func (n *Node) Executables() map[string]struct{} {
	if n.cmd == nil {
		return map[string]struct{}{}
	}
	return n.cmd.Executables()
}

func (n *Node) Requirements() []types.VersionRequirement {
	if n.cmd == nil {
		return nil
	}
	return n.cmd.Requirements()
}

func (n *Node) String() string {
	return fmt.Sprintf("Node(%d, %q)", n.id, n.description)
}

// Run creates a fresh directory under tempRoot and drives the node's
// command through run/join/commit. On success the temp directory is
// removed along with any optional_temp_files; on failure it is retained,
// with a best-effort diagnostics pass logged first, so a human (or
// janitor.Sweep, once it's aged out) can inspect what the command left
// behind. MetaNodes are no-ops.
func (n *Node) Run(tempRoot string) error {
	if n.IsMeta() {
		return nil
	}

	if err := os.MkdirAll(tempRoot, 0o755); err != nil {
		return wrapf(err, "node %d: create temp root", n.id)
	}
	tempDir, err := os.MkdirTemp(tempRoot, fmt.Sprintf("node_%d_", n.id))
	if err != nil {
		return wrapf(err, "node %d: create temp dir", n.id)
	}

	logger := log.WithNodeID(int(n.id))

	if err := n.cmd.Run(tempDir); err != nil {
		return wrapf(err, "node %d: run", n.id)
	}

	results := n.cmd.JoinResults()
	if failed(results) {
		n.collectDiagnostics(tempDir, logger)
		return errf("node %d: command failed: %s", n.id, describeFailure(results))
	}

	if err := n.cmd.Commit(); err != nil {
		return wrapf(err, "node %d: commit", n.id)
	}

	os.RemoveAll(tempDir)
	return nil
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

// collectDiagnostics makes a best-effort attempt to log the contents of
// every non-empty file the failed command left in its temp directory,
// which Run then keeps.
func (n *Node) collectDiagnostics(tempDir string, logger zerolog.Logger) {
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(tempDir, e.Name()))
		if err != nil || len(data) == 0 {
			continue
		}
		logger.Warn().Str("file", e.Name()).Msg(string(data))
	}
}
