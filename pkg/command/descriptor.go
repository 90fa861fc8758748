package command

import (
	"fmt"

	"github.com/cuemby/nodeflow/pkg/types"
)

// tempDirToken is the wire form of the TempDir placeholder argument.
const tempDirToken = "%(TEMP_DIR)s"

// Describe serializes a single AtomicCmd into a wire-transferable
// TaskDescriptor, for dispatch to a RemoteWorker (spec §6: "task payload
// is an opaque serialization of the Node"). CmdSet members are not
// supported over the wire; a RemoteWorker task is always one AtomicCmd.
// The declared stdout/stderr Destination travels with it, so a StdPath
// redirection still gets staged and committed on the worker side instead
// of silently reverting to inherited stdout/stderr.
func Describe(c Command, nodeID int, description string, threads int, tempRoot string) (types.TaskDescriptor, error) {
	atomic, ok := c.(*AtomicCmd)
	if !ok {
		return types.TaskDescriptor{}, fmt.Errorf("command: %T cannot be dispatched to a RemoteWorker, only *AtomicCmd", c)
	}

	var tokens []string
	var files []types.FileRef
	seen := map[string]struct{}{}

	addFile := func(f File) {
		if _, dup := seen[f.Path]; dup {
			return
		}
		seen[f.Path] = struct{}{}
		files = append(files, types.FileRef{Path: f.Path, Role: roleOf(f.Kind)})
	}

	for _, arg := range atomic.Argv() {
		switch {
		case arg.IsTempDir():
			tokens = append(tokens, tempDirToken)
		case arg.File() != nil:
			f := *arg.File()
			tokens = append(tokens, f.Path)
			addFile(f)
		default:
			tokens = append(tokens, arg.Literal())
		}
	}

	for _, f := range atomic.ExtraFiles() {
		addFile(f)
	}

	return types.TaskDescriptor{
		NodeID:       nodeID,
		Description:  description,
		Argv:         [][]string{tokens},
		Files:        files,
		Requirements: atomic.Requirements(),
		Threads:      threads,
		TempRoot:     tempRoot,
		Stdout:       destRef(atomic.Stdout()),
		Stderr:       destRef(atomic.Stderr()),
	}, nil
}

// destRef serializes a Destination for wire transfer. Stdout/Stderr
// accessors only expose the destination's kind and identifying path, so
// this lives in the same package to reach the unexported fields.
func destRef(d Destination) types.DestinationRef {
	switch d.kind {
	case destPath:
		return types.DestinationRef{Kind: types.DestinationPath, Path: d.path}
	case destTemp:
		return types.DestinationRef{Kind: types.DestinationTemp, Path: d.tempName}
	default:
		return types.DestinationRef{}
	}
}

// destFromRef is destRef's inverse, used by Rebuild.
func destFromRef(ref types.DestinationRef) Destination {
	switch ref.Kind {
	case types.DestinationPath:
		return StdPath(ref.Path)
	case types.DestinationTemp:
		return StdTemp(ref.Path)
	default:
		return StdInherit()
	}
}

func roleOf(kind FileKind) types.FileRole {
	switch kind {
	case KindInput:
		return types.FileRoleInput
	case KindOutput:
		return types.FileRoleOutput
	case KindTempOutput:
		return types.FileRoleTempOutput
	case KindAuxiliary:
		return types.FileRoleAuxiliary
	case KindExecutable:
		return types.FileRoleExecutable
	default:
		return types.FileRoleAuxiliary
	}
}

func kindOf(role types.FileRole) FileKind {
	switch role {
	case types.FileRoleInput:
		return KindInput
	case types.FileRoleOutput:
		return KindOutput
	case types.FileRoleTempOutput:
		return KindTempOutput
	case types.FileRoleExecutable:
		return KindExecutable
	default:
		return KindAuxiliary
	}
}

// Rebuild reconstructs an executable AtomicCmd from a TaskDescriptor, the
// RemoteWorker-side inverse of Describe. A plain argv token is taken as a
// literal unless it exactly matches a declared file's path, in which case
// it is rebuilt as a FileArg so output/temp-output staging resolves
// correctly against this worker's own temp directory.
func Rebuild(desc types.TaskDescriptor) (*AtomicCmd, error) {
	if len(desc.Argv) != 1 {
		return nil, fmt.Errorf("command: descriptor for node %d does not describe a single AtomicCmd", desc.NodeID)
	}

	byPath := make(map[string]File, len(desc.Files))
	for _, ref := range desc.Files {
		byPath[ref.Path] = File{Kind: kindOf(ref.Role), Path: ref.Path}
	}

	argv := make([]Arg, 0, len(desc.Argv[0]))
	for _, token := range desc.Argv[0] {
		if token == tempDirToken {
			argv = append(argv, TempDir())
			continue
		}
		if f, ok := byPath[token]; ok {
			argv = append(argv, FileArg(f))
			continue
		}
		argv = append(argv, Lit(token))
	}

	extra := make([]File, 0, len(desc.Files))
	for _, ref := range desc.Files {
		extra = append(extra, File{Kind: kindOf(ref.Role), Path: ref.Path})
	}

	return NewAtomicCmd(argv,
		WithExtraFiles(extra...),
		WithRequirements(desc.Requirements...),
		WithStdout(destFromRef(desc.Stdout)),
		WithStderr(destFromRef(desc.Stderr)),
	)
}
