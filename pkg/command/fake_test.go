package command

import "github.com/cuemby/nodeflow/pkg/types"

// fakeCmd is a minimal Command used to test CmdSet ordering semantics
// (commit order, terminate order) without spawning real processes.
type fakeCmd struct {
	name       string
	ready      bool
	result     JoinResult
	calls      *[]string
	commitErr  error
	outputs    map[string]struct{}
}

func (f *fakeCmd) Run(string) error { return nil }
func (f *fakeCmd) Ready() bool      { return f.ready }
func (f *fakeCmd) JoinResults() []JoinResult {
	return []JoinResult{f.result}
}
func (f *fakeCmd) Terminate() {
	if f.calls != nil {
		*f.calls = append(*f.calls, "terminate:"+f.name)
	}
}
func (f *fakeCmd) Commit() error {
	if f.calls != nil {
		*f.calls = append(*f.calls, "commit:"+f.name)
	}
	return f.commitErr
}
func (f *fakeCmd) Executables() map[string]struct{}        { return nil }
func (f *fakeCmd) InputFiles() map[string]struct{}         { return nil }
func (f *fakeCmd) OutputFiles() map[string]struct{}        { return nil }
func (f *fakeCmd) AuxiliaryFiles() map[string]struct{}     { return nil }
func (f *fakeCmd) ExpectedTempFiles() map[string]struct{}  { return f.outputs }
func (f *fakeCmd) OptionalTempFiles() map[string]struct{}  { return nil }
func (f *fakeCmd) Requirements() []types.VersionRequirement { return nil }
func (f *fakeCmd) String() string                          { return "fake(" + f.name + ")" }
