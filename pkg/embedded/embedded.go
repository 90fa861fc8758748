package embedded

import (
	"runtime"

	"github.com/cuemby/nodeflow/pkg/manager"
	"github.com/cuemby/nodeflow/pkg/types"
)

// Options configures a single-process run.
type Options struct {
	// Threads defaults to runtime.NumCPU() if zero.
	Threads int
	// Requirements are checked against the local worker's environment.
	Requirements []types.VersionRequirement
	// TempRoot is the scratch directory for dispatched nodes.
	TempRoot string
}

// New builds and starts a Manager with only a LocalWorker: no discovery
// directory is configured, so it never dials a RemoteWorker. Intended
// for single-host runs and for tests that don't need the wire protocol.
func New(opts Options) (*manager.Manager, error) {
	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	mgr, err := manager.New(manager.Config{
		Threads:      threads,
		Requirements: opts.Requirements,
		TempRoot:     opts.TempRoot,
	})
	if err != nil {
		return nil, err
	}
	if err := mgr.Start(); err != nil {
		return nil, err
	}
	return mgr, nil
}
