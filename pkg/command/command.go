package command

import "github.com/cuemby/nodeflow/pkg/types"

// Command is implemented by AtomicCmd and both CmdSet variants, so that
// ParallelCmds/SequentialCmds can nest members of either shape (subject to
// the nesting rules in spec §4.2).
type Command interface {
	Run(tempDir string) error
	Ready() bool
	JoinResults() []JoinResult
	Terminate()
	Commit() error
	Executables() map[string]struct{}
	InputFiles() map[string]struct{}
	OutputFiles() map[string]struct{}
	AuxiliaryFiles() map[string]struct{}
	ExpectedTempFiles() map[string]struct{}
	OptionalTempFiles() map[string]struct{}
	Requirements() []types.VersionRequirement
	String() string
}

var (
	_ Command = (*AtomicCmd)(nil)
	_ Command = (*ParallelCmds)(nil)
	_ Command = (*SequentialCmds)(nil)
)

func unionOf(sets ...map[string]struct{}) map[string]struct{} {
	out := map[string]struct{}{}
	for _, s := range sets {
		for k := range s {
			out[k] = struct{}{}
		}
	}
	return out
}
