package types

import "time"

// WorkerKind distinguishes a LocalWorker from a RemoteWorker for logging
// and metrics purposes. Scheduling treats both identically.
type WorkerKind string

const (
	WorkerKindLocal  WorkerKind = "local"
	WorkerKindRemote WorkerKind = "remote"
)

// WorkerStatus is the lifecycle state of a Worker, per spec §3/§4.7.
type WorkerStatus string

const (
	WorkerUninitialized WorkerStatus = "uninitialized"
	WorkerConnecting    WorkerStatus = "connecting"
	WorkerRunning       WorkerStatus = "running"
	WorkerTerminated    WorkerStatus = "terminated"
)

// WorkerInfo is a point-in-time snapshot of a worker's identity and load,
// used by the manager's dispatcher and exported via metrics.
type WorkerInfo struct {
	ID          string
	Name        string
	Kind        WorkerKind
	Status      WorkerStatus
	Capacity    int
	RunningIDs  []int
	Overcommit  bool
	ConnectedAt time.Time
}

// IdleThreads returns the worker's spare thread budget given threads
// already committed to running tasks.
func (w WorkerInfo) IdleThreads(runningThreads int) int {
	idle := w.Capacity - runningThreads
	if idle < 0 {
		return 0
	}
	return idle
}

// FileRef is one declared file entry of a TaskDescriptor: an absolute
// path plus the role it plays, mirroring AtomicCmd's extra_files roles.
type FileRef struct {
	Path string   `json:"path"`
	Role FileRole `json:"role"`
}

// FileRole is the declared role of a file reference within a task.
type FileRole string

const (
	FileRoleInput       FileRole = "input"
	FileRoleOutput      FileRole = "output"
	FileRoleTempOutput  FileRole = "temp_output"
	FileRoleAuxiliary   FileRole = "auxiliary"
	FileRoleExecutable  FileRole = "executable"
)

// VersionRequirement names an external executable and the version
// predicate it must satisfy, per spec §3/§4.5.
type VersionRequirement struct {
	Executable string `json:"executable"`
	Predicate  string `json:"predicate"`
}

// DestinationKind is the wire form of an AtomicCmd stdout/stderr
// Destination: inherited, a committed final path, or a discarded
// temp-directory path.
type DestinationKind string

const (
	DestinationInherit DestinationKind = ""
	DestinationPath    DestinationKind = "path"
	DestinationTemp    DestinationKind = "temp"
)

// DestinationRef is the serialized form of a command.Destination: Path
// holds either the final absolute path (DestinationPath) or the
// temp-directory basename (DestinationTemp), and is empty for
// DestinationInherit.
type DestinationRef struct {
	Kind DestinationKind `json:"kind,omitempty"`
	Path string          `json:"path,omitempty"`
}

// TaskDescriptor is the opaque-to-the-wire serialization of a Node that a
// TASK_START message carries (spec §6): enough to reconstruct and run the
// task on the worker side without sharing Go types directly.
type TaskDescriptor struct {
	NodeID       int                  `json:"node_id"`
	Description  string               `json:"description"`
	Argv         [][]string           `json:"argv"`
	Files        []FileRef            `json:"files"`
	Requirements []VersionRequirement `json:"requirements"`
	Threads      int                  `json:"threads"`
	TempRoot     string               `json:"temp_root"`
	Stdout       DestinationRef       `json:"stdout"`
	Stderr       DestinationRef       `json:"stderr"`
}
