package main

import (
	"fmt"
	"os"

	"github.com/cuemby/nodeflow/pkg/command"
	"github.com/cuemby/nodeflow/pkg/graph"
	"github.com/cuemby/nodeflow/pkg/node"
	"github.com/cuemby/nodeflow/pkg/types"
	"gopkg.in/yaml.v3"
)

// pipelineSpec is a flat, literal task list: no templating, no
// expressions, no conditionals. It exists to give `nodeflow run` a file
// to point at, not to grow into a workflow DSL.
type pipelineSpec struct {
	Tasks []taskSpec `yaml:"tasks"`
}

type taskSpec struct {
	ID           string    `yaml:"id"`
	Description  string    `yaml:"description"`
	Threads      int       `yaml:"threads"`
	Argv         []argSpec `yaml:"argv"`
	ExtraFiles   []argSpec `yaml:"extra_files"`
	Requirements []reqSpec `yaml:"requirements"`
	DependsOn    []string  `yaml:"depends_on"`
}

type reqSpec struct {
	Executable string `yaml:"executable"`
	Predicate  string `yaml:"predicate"`
}

// argSpec is a discriminated union over command.Arg's kinds. Exactly one
// field should be set per entry.
type argSpec struct {
	Lit        *string `yaml:"lit"`
	Input      *string `yaml:"input"`
	Output     *string `yaml:"output"`
	TempOutput *string `yaml:"temp_output"`
	Aux        *string `yaml:"aux"`
	Exec       *string `yaml:"exec"`
	TempDir    bool    `yaml:"temp_dir"`
}

func (a argSpec) toArg() (command.Arg, error) {
	switch {
	case a.Lit != nil:
		return command.Lit(*a.Lit), nil
	case a.TempDir:
		return command.TempDir(), nil
	case a.Input != nil:
		return command.FileArg(command.InputFile(*a.Input)), nil
	case a.Output != nil:
		return command.FileArg(command.OutputFile(*a.Output)), nil
	case a.TempOutput != nil:
		return command.FileArg(command.TempOutputFile(*a.TempOutput)), nil
	case a.Aux != nil:
		return command.FileArg(command.AuxiliaryFile(*a.Aux)), nil
	case a.Exec != nil:
		return command.FileArg(command.Executable(*a.Exec)), nil
	default:
		return command.Arg{}, fmt.Errorf("pipeline: argv entry has no kind set")
	}
}

func (a argSpec) toFile() (command.File, bool, error) {
	switch {
	case a.Input != nil:
		return command.InputFile(*a.Input), true, nil
	case a.Output != nil:
		return command.OutputFile(*a.Output), true, nil
	case a.TempOutput != nil:
		return command.TempOutputFile(*a.TempOutput), true, nil
	case a.Aux != nil:
		return command.AuxiliaryFile(*a.Aux), true, nil
	case a.Exec != nil:
		return command.Executable(*a.Exec), true, nil
	case a.Lit != nil, a.TempDir:
		return command.File{}, false, nil
	default:
		return command.File{}, false, fmt.Errorf("pipeline: extra_files entry has no kind set")
	}
}

// loadPipeline reads a declarative task list from path and builds the
// resulting NodeGraph. Tasks must be listed in dependency order: a
// depends_on reference to an id not yet seen is an error.
func loadPipeline(path string) (*graph.NodeGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read %s: %w", path, err)
	}
	var spec pipelineSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("pipeline: parse %s: %w", path, err)
	}

	byID := make(map[string]*node.Node, len(spec.Tasks))
	isDependedOn := make(map[string]bool, len(spec.Tasks))

	for _, ts := range spec.Tasks {
		if ts.ID == "" {
			return nil, fmt.Errorf("pipeline: task missing id")
		}
		if _, dup := byID[ts.ID]; dup {
			return nil, fmt.Errorf("pipeline: duplicate task id %q", ts.ID)
		}

		n, err := buildTask(ts, byID)
		if err != nil {
			return nil, fmt.Errorf("pipeline: task %q: %w", ts.ID, err)
		}
		byID[ts.ID] = n
		for _, dep := range ts.DependsOn {
			isDependedOn[dep] = true
		}
	}

	var roots []*node.Node
	for _, ts := range spec.Tasks {
		if !isDependedOn[ts.ID] {
			roots = append(roots, byID[ts.ID])
		}
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("pipeline: no tasks declared")
	}

	return graph.New(roots...)
}

func buildTask(ts taskSpec, byID map[string]*node.Node) (*node.Node, error) {
	argv := make([]command.Arg, len(ts.Argv))
	for i, a := range ts.Argv {
		arg, err := a.toArg()
		if err != nil {
			return nil, err
		}
		argv[i] = arg
	}

	var opts []command.Option
	for _, a := range ts.ExtraFiles {
		f, ok, err := a.toFile()
		if err != nil {
			return nil, err
		}
		if ok {
			opts = append(opts, command.WithExtraFiles(f))
		}
	}
	if len(ts.Requirements) > 0 {
		reqs := make([]types.VersionRequirement, len(ts.Requirements))
		for i, r := range ts.Requirements {
			reqs[i] = types.VersionRequirement{Executable: r.Executable, Predicate: r.Predicate}
		}
		opts = append(opts, command.WithRequirements(reqs...))
	}

	cmd, err := command.NewAtomicCmd(argv, opts...)
	if err != nil {
		return nil, err
	}

	threads := ts.Threads
	if threads < 1 {
		threads = 1
	}

	var deps []*node.Node
	for _, depID := range ts.DependsOn {
		dep, ok := byID[depID]
		if !ok {
			return nil, fmt.Errorf("depends_on %q not yet defined (tasks must be listed in dependency order)", depID)
		}
		deps = append(deps, dep)
	}

	nodeOpts := []node.Option{node.WithThreads(threads)}
	if len(deps) > 0 {
		nodeOpts = append(nodeOpts, node.WithDependencies(deps...))
	}

	return node.New(ts.Description, cmd, nodeOpts...)
}
