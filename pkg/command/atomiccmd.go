package command

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/cuemby/nodeflow/pkg/runtime"
	"github.com/cuemby/nodeflow/pkg/types"
)

// State is an AtomicCmd's lifecycle stage, per spec §4.1:
// UNSTARTED -> RUNNING -> TERMINATED -> COMMITTED|ABORTED.
type State int

const (
	StateUnstarted State = iota
	StateRunning
	StateTerminated
	StateCommitted
	StateAborted
)

// JoinResult is the outcome of joining one command: Started is false
// before the command has ever run (the Python "None"); otherwise exactly
// one of ExitCode (Signal == "") or Signal is meaningful.
type JoinResult struct {
	Started  bool
	ExitCode int
	Signal   string
}

func (r JoinResult) String() string {
	if !r.Started {
		return "<not started>"
	}
	if r.Signal != "" {
		return r.Signal
	}
	return fmt.Sprintf("%d", r.ExitCode)
}

// AtomicCmd specifies one subprocess: argv, declared extra_files, and
// stdout/stderr destinations. See spec §4.1.
type AtomicCmd struct {
	argv         []Arg
	extraFiles   []File
	stdout       Destination
	stderr       Destination
	requirements []types.VersionRequirement

	mu      sync.Mutex
	state   State
	tempDir string
	proc    *runtime.Process
	result  JoinResult

	stdoutFile *os.File
	stderrFile *os.File
}

// Option configures an AtomicCmd at construction.
type Option func(*AtomicCmd)

func WithExtraFiles(files ...File) Option {
	return func(c *AtomicCmd) { c.extraFiles = append(c.extraFiles, files...) }
}

func WithStdout(d Destination) Option { return func(c *AtomicCmd) { c.stdout = d } }
func WithStderr(d Destination) Option { return func(c *AtomicCmd) { c.stderr = d } }

func WithRequirements(reqs ...types.VersionRequirement) Option {
	return func(c *AtomicCmd) { c.requirements = append(c.requirements, reqs...) }
}

// NewAtomicCmd builds an AtomicCmd from its argv and options, validating
// that no two declared outputs collide (spec §4.1's "duplicate output
// declarations" CmdError).
func NewAtomicCmd(argv []Arg, opts ...Option) (*AtomicCmd, error) {
	if len(argv) == 0 {
		return nil, errf("AtomicCmd: empty argv")
	}

	c := &AtomicCmd{argv: argv}
	for _, opt := range opts {
		opt(c)
	}

	seen := map[string]struct{}{}
	for _, f := range c.extraFiles {
		if f.Kind != KindOutput && f.Kind != KindTempOutput {
			continue
		}
		base := baseOf(f.Path)
		if _, dup := seen[base]; dup {
			return nil, errf("AtomicCmd: duplicate output declaration %q", base)
		}
		seen[base] = struct{}{}
	}
	for _, d := range []Destination{c.stdout, c.stderr} {
		if !d.isSet() || d.kind == destInherit {
			continue
		}
		base := d.basename()
		if _, dup := seen[base]; dup {
			return nil, errf("AtomicCmd: duplicate output declaration %q", base)
		}
		seen[base] = struct{}{}
	}

	return c, nil
}

// Argv returns the command's declared argument specification, in order.
func (c *AtomicCmd) Argv() []Arg { return c.argv }

// ExtraFiles returns every declared extra_files entry, regardless of kind.
func (c *AtomicCmd) ExtraFiles() []File { return c.extraFiles }

// Stdout returns the declared stdout destination.
func (c *AtomicCmd) Stdout() Destination { return c.stdout }

// Stderr returns the declared stderr destination.
func (c *AtomicCmd) Stderr() Destination { return c.stderr }

func (c *AtomicCmd) filesOfKind(kind FileKind) map[string]struct{} {
	out := map[string]struct{}{}
	for _, f := range c.extraFiles {
		if f.Kind == kind {
			out[f.Path] = struct{}{}
		}
	}
	return out
}

func (c *AtomicCmd) Executables() map[string]struct{}     { return c.filesOfKind(KindExecutable) }
func (c *AtomicCmd) InputFiles() map[string]struct{}       { return c.filesOfKind(KindInput) }
func (c *AtomicCmd) OutputFiles() map[string]struct{}      { return c.filesOfKind(KindOutput) }
func (c *AtomicCmd) AuxiliaryFiles() map[string]struct{}   { return c.filesOfKind(KindAuxiliary) }
func (c *AtomicCmd) Requirements() []types.VersionRequirement { return c.requirements }

// ExpectedTempFiles are basenames that must exist under the temp
// directory once the process exits successfully: every declared
// OutputFile, plus a non-inherited stdout/stderr destination given as a
// final path.
func (c *AtomicCmd) ExpectedTempFiles() map[string]struct{} {
	out := map[string]struct{}{}
	for _, f := range c.extraFiles {
		if f.Kind == KindOutput {
			out[baseOf(f.Path)] = struct{}{}
		}
	}
	if c.stdout.kind == destPath {
		out[c.stdout.basename()] = struct{}{}
	}
	if c.stderr.kind == destPath {
		out[c.stderr.basename()] = struct{}{}
	}
	return out
}

// OptionalTempFiles are basenames that may or may not exist once the
// process exits: declared TempOutputFile entries and a stdout/stderr
// destination given as a temp name. These are never committed and are
// removed once the node's run completes successfully (spec §4.3).
func (c *AtomicCmd) OptionalTempFiles() map[string]struct{} {
	out := map[string]struct{}{}
	for _, f := range c.extraFiles {
		if f.Kind == KindTempOutput {
			out[baseOf(f.Path)] = struct{}{}
		}
	}
	if c.stdout.kind == destTemp {
		out[c.stdout.basename()] = struct{}{}
	}
	if c.stderr.kind == destTemp {
		out[c.stderr.basename()] = struct{}{}
	}
	return out
}

// Run launches the subprocess with cwd=tempDir, per spec §4.1. Declared
// InputFile paths are checked to exist before launch; a missing input
// raises CmdError.
func (c *AtomicCmd) Run(tempDir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for path := range c.InputFiles() {
		if _, err := os.Stat(path); err != nil {
			return errf("AtomicCmd: missing input %q: %v", path, err)
		}
	}

	c.tempDir = tempDir
	argv := make([]string, len(c.argv))
	for i, a := range c.argv {
		argv[i] = a.resolve(tempDir)
	}

	cfg := runtime.Config{Argv: argv, Dir: tempDir}

	var err error
	cfg.Stdout, err = c.openDestination(c.stdout, tempDir)
	if err != nil {
		return err
	}
	cfg.Stderr, err = c.openDestination(c.stderr, tempDir)
	if err != nil {
		return err
	}
	if c.stderr.kind == destInherit {
		cfg.Stderr = os.Stderr
	}

	proc, err := runtime.Start(cfg)
	if err != nil {
		return err
	}
	c.proc = proc
	c.state = StateRunning
	return nil
}

func (c *AtomicCmd) openDestination(d Destination, tempDir string) (io.Writer, error) {
	switch d.kind {
	case destInherit:
		return os.Stdout, nil
	case destPath:
		path := filepath.Join(tempDir, d.basename())
		f, err := os.Create(path)
		if err != nil {
			return nil, errf("AtomicCmd: create %q: %v", path, err)
		}
		return f, nil
	case destTemp:
		path := filepath.Join(tempDir, d.basename())
		f, err := os.Create(path)
		if err != nil {
			return nil, errf("AtomicCmd: create %q: %v", path, err)
		}
		return f, nil
	default:
		return io.Discard, nil
	}
}

// Ready reports whether the process has exited, without blocking. A
// command that never ran is always ready.
func (c *AtomicCmd) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != StateRunning
}

// JoinResults joins the (single) underlying process and reports its
// outcome. Calling Join before Run returns a not-started result.
func (c *AtomicCmd) JoinResults() []JoinResult {
	c.mu.Lock()
	if c.state == StateUnstarted {
		c.mu.Unlock()
		return []JoinResult{{Started: false}}
	}
	if c.state == StateRunning {
		// Wait without holding mu so Terminate can still signal the process.
		proc := c.proc
		c.mu.Unlock()
		status, err := proc.Wait()
		c.mu.Lock()
		if err != nil {
			c.result = JoinResult{Started: true, ExitCode: -1}
		} else if status.Signal != "" {
			c.result = JoinResult{Started: true, Signal: status.Signal}
			c.state = StateTerminated
		} else {
			c.result = JoinResult{Started: true, ExitCode: status.ExitCode}
			c.state = StateTerminated
		}
	}
	defer c.mu.Unlock()
	return []JoinResult{c.result}
}

// Terminate sends SIGTERM to the process group if still running.
func (c *AtomicCmd) Terminate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning && c.proc != nil {
		_ = c.proc.Signal(syscall.SIGTERM)
	}
}

// Commit moves every declared, non-temp OutputFile (and a path-style
// stdout/stderr destination) from the temp directory to its final
// destination, using rename where possible and copy-then-unlink
// otherwise. Commit is all-or-nothing for this command: if any move
// fails, already-moved files remain moved and the error is returned
// immediately (spec §4.1).
func (c *AtomicCmd) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.result.Started && (c.result.Signal != "" || c.result.ExitCode != 0) {
		return errf("AtomicCmd: refusing to commit a non-zero exit")
	}

	var moves []struct{ src, dst string }
	for _, f := range c.extraFiles {
		if f.Kind != KindOutput {
			continue
		}
		moves = append(moves, struct{ src, dst string }{
			src: filepath.Join(c.tempDir, baseOf(f.Path)),
			dst: f.Path,
		})
	}
	if c.stdout.kind == destPath {
		moves = append(moves, struct{ src, dst string }{
			src: filepath.Join(c.tempDir, c.stdout.basename()),
			dst: c.stdout.path,
		})
	}
	if c.stderr.kind == destPath {
		moves = append(moves, struct{ src, dst string }{
			src: filepath.Join(c.tempDir, c.stderr.basename()),
			dst: c.stderr.path,
		})
	}

	for _, mv := range moves {
		if _, err := os.Stat(mv.src); err != nil {
			return errf("AtomicCmd: declared output %q not produced: %v", mv.dst, err)
		}
		if err := moveFile(mv.src, mv.dst); err != nil {
			return err
		}
	}

	c.state = StateCommitted
	return nil
}

// moveFile renames src to dst, falling back to copy-then-unlink when they
// live on different filesystems (EXDEV), per spec §4.1.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	linkErr, ok := err.(*os.LinkError)
	if !ok || linkErr.Err != syscall.EXDEV {
		return errf("AtomicCmd: commit %q -> %q: %v", src, dst, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return errf("AtomicCmd: commit %q -> %q: %v", src, dst, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errf("AtomicCmd: commit %q -> %q: %v", src, dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errf("AtomicCmd: commit %q -> %q: %v", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return errf("AtomicCmd: commit %q -> %q: %v", src, dst, err)
	}
	return os.Remove(src)
}

func (c *AtomicCmd) String() string {
	argv := make([]string, len(c.argv))
	for i, a := range c.argv {
		argv[i] = a.literal
	}
	return fmt.Sprintf("AtomicCmd(%v)", argv)
}
