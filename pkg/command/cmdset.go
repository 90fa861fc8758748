package command

import (
	"sync"

	"github.com/cuemby/nodeflow/pkg/types"
)

func validateMembers(members []Command, allowSets bool) error {
	if len(members) == 0 {
		return errf("CmdSet: empty command set")
	}

	seen := make(map[Command]struct{}, len(members))
	for _, m := range members {
		if _, dup := seen[m]; dup {
			return errf("Same command included multiple times")
		}
		seen[m] = struct{}{}

		switch m.(type) {
		case *ParallelCmds, *SequentialCmds:
			if !allowSets {
				return errf("CmdSet: a ParallelCmds may not contain another CmdSet")
			}
		case *AtomicCmd:
			// always allowed
		default:
			return errf("CmdSet: member must be an AtomicCmd or CmdSet")
		}
	}

	outputs := map[string]struct{}{}
	for _, m := range members {
		for base := range outputBasenames(m) {
			if _, dup := outputs[base]; dup {
				return errf("CmdSet: members clobber output %q", base)
			}
			outputs[base] = struct{}{}
		}
	}

	return nil
}

// outputBasenames returns the basenames a member will write under its temp
// directory: ExpectedTempFiles and OptionalTempFiles combined, used only
// for no-clobbering validation at construction.
func outputBasenames(m Command) map[string]struct{} {
	return unionOf(m.ExpectedTempFiles(), m.OptionalTempFiles())
}

// ParallelCmds runs every member concurrently. If any member exits
// non-zero, every still-running member is sent SIGTERM (spec §4.2).
// Parallel may not contain another ParallelCmds or SequentialCmds.
type ParallelCmds struct {
	members []Command
	mu      sync.Mutex
}

func NewParallelCmds(members ...Command) (*ParallelCmds, error) {
	if err := validateMembers(members, false); err != nil {
		return nil, err
	}
	return &ParallelCmds{members: members}, nil
}

func (p *ParallelCmds) Run(tempDir string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.members {
		if err := m.Run(tempDir); err != nil {
			return err
		}
	}
	return nil
}

func (p *ParallelCmds) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.members {
		if !m.Ready() {
			return false
		}
	}
	return true
}

// JoinResults waits for every member concurrently. As soon as any member
// is observed to have exited non-zero, every still-running member is sent
// SIGTERM (spec §4.2) — members are NOT joined one at a time in
// declaration order, since Run already started them concurrently and an
// early member may legitimately still be running while a later one fails.
func (p *ParallelCmds) JoinResults() []JoinResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	type outcome struct {
		index  int
		result JoinResult
	}

	done := make(chan outcome, len(p.members))
	for i, m := range p.members {
		go func(i int, m Command) {
			sub := m.JoinResults()
			done <- outcome{index: i, result: flattenOne(sub)}
		}(i, m)
	}

	results := make([]JoinResult, len(p.members))
	failed := false
	for range p.members {
		o := <-done
		results[o.index] = o.result
		if o.result.Started && (o.result.Signal != "" || o.result.ExitCode != 0) && !failed {
			failed = true
			for j, other := range p.members {
				if j != o.index {
					other.Terminate()
				}
			}
		}
	}
	return results
}

// flattenOne collapses a member's JoinResults down to a single result for
// ParallelCmds bookkeeping; nested CmdSet members report all of their
// leaves via JoinResults() directly when queried by a caller that wants
// the full flattened list (see flattenAll).
func flattenOne(results []JoinResult) JoinResult {
	if len(results) == 0 {
		return JoinResult{}
	}
	return results[len(results)-1]
}

func (p *ParallelCmds) Terminate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.members) - 1; i >= 0; i-- {
		p.members[i].Terminate()
	}
}

// Commit commits every member in declaration order. If a member's commit
// fails, remaining members are not committed; already-committed members'
// outputs remain in place (spec §4.2 — documented atomicity break at the
// set level).
func (p *ParallelCmds) Commit() error {
	for _, m := range p.members {
		if err := m.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func (p *ParallelCmds) Executables() map[string]struct{}   { return unionAcross(p.members, Command.Executables) }
func (p *ParallelCmds) InputFiles() map[string]struct{}    { return unionAcross(p.members, Command.InputFiles) }
func (p *ParallelCmds) OutputFiles() map[string]struct{}   { return unionAcross(p.members, Command.OutputFiles) }
func (p *ParallelCmds) AuxiliaryFiles() map[string]struct{} {
	return unionAcross(p.members, Command.AuxiliaryFiles)
}
func (p *ParallelCmds) ExpectedTempFiles() map[string]struct{} {
	return unionAcross(p.members, Command.ExpectedTempFiles)
}
func (p *ParallelCmds) OptionalTempFiles() map[string]struct{} {
	return unionAcross(p.members, Command.OptionalTempFiles)
}

func (p *ParallelCmds) Requirements() []types.VersionRequirement {
	return requirementsAcross(p.members)
}

func (p *ParallelCmds) String() string { return formatSet("ParallelCmds", p.members) }

// SequentialCmds runs members in order, aborting the remainder on the
// first non-zero exit; never-run members report as not-started (spec
// §4.2). Sequential may contain either AtomicCmd or CmdSet members.
type SequentialCmds struct {
	members []Command
	mu      sync.Mutex
	started bool
	done    bool
	ran     []bool
}

func NewSequentialCmds(members ...Command) (*SequentialCmds, error) {
	if err := validateMembers(members, true); err != nil {
		return nil, err
	}
	return &SequentialCmds{members: members, ran: make([]bool, len(members))}, nil
}

func (s *SequentialCmds) Run(tempDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true

	for i, m := range s.members {
		if err := m.Run(tempDir); err != nil {
			return err
		}
		s.ran[i] = true

		results := m.JoinResults()
		r := flattenOne(results)
		if r.Started && (r.Signal != "" || r.ExitCode != 0) {
			s.done = true
			return nil
		}
	}
	s.done = true
	return nil
}

func (s *SequentialCmds) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *SequentialCmds) JoinResults() []JoinResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []JoinResult
	for i, m := range s.members {
		if !s.ran[i] {
			out = append(out, JoinResult{Started: false})
			continue
		}
		out = append(out, m.JoinResults()...)
	}
	return out
}

func (s *SequentialCmds) Terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.members) - 1; i >= 0; i-- {
		s.members[i].Terminate()
	}
}

func (s *SequentialCmds) Commit() error {
	for i, m := range s.members {
		if !s.ran[i] {
			break
		}
		if err := m.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func (s *SequentialCmds) Executables() map[string]struct{} { return unionAcross(s.members, Command.Executables) }
func (s *SequentialCmds) InputFiles() map[string]struct{}  { return unionAcross(s.members, Command.InputFiles) }
func (s *SequentialCmds) OutputFiles() map[string]struct{} { return unionAcross(s.members, Command.OutputFiles) }
func (s *SequentialCmds) AuxiliaryFiles() map[string]struct{} {
	return unionAcross(s.members, Command.AuxiliaryFiles)
}
func (s *SequentialCmds) ExpectedTempFiles() map[string]struct{} {
	return unionAcross(s.members, Command.ExpectedTempFiles)
}
func (s *SequentialCmds) OptionalTempFiles() map[string]struct{} {
	return unionAcross(s.members, Command.OptionalTempFiles)
}

func (s *SequentialCmds) Requirements() []types.VersionRequirement {
	return requirementsAcross(s.members)
}

func (s *SequentialCmds) String() string { return formatSet("SequentialCmds", s.members) }

func unionAcross(members []Command, get func(Command) map[string]struct{}) map[string]struct{} {
	sets := make([]map[string]struct{}, len(members))
	for i, m := range members {
		sets[i] = get(m)
	}
	return unionOf(sets...)
}

func requirementsAcross(members []Command) []types.VersionRequirement {
	seen := map[types.VersionRequirement]struct{}{}
	var out []types.VersionRequirement
	for _, m := range members {
		for _, r := range m.Requirements() {
			if _, dup := seen[r]; dup {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

func formatSet(name string, members []Command) string {
	s := name + "("
	for i, m := range members {
		if i > 0 {
			s += ", "
		}
		s += m.String()
	}
	return s + ")"
}
