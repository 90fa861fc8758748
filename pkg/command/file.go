package command

import "path/filepath"

// FileKind tags the role a declared file plays in an AtomicCmd, mirroring
// the InputFile/OutputFile/TempOutputFile/AuxiliaryFile/Executable
// declarations of spec §3/§4.1.
type FileKind int

const (
	KindInput FileKind = iota
	KindOutput
	KindTempOutput
	KindAuxiliary
	KindExecutable
)

func (k FileKind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindOutput:
		return "output"
	case KindTempOutput:
		return "temp_output"
	case KindAuxiliary:
		return "auxiliary"
	case KindExecutable:
		return "executable"
	default:
		return "unknown"
	}
}

// File is one declared extra_files entry. Path holds an absolute path for
// Input/Output/Auxiliary/Executable entries, and a bare filename (resolved
// against the run's temp directory) for TempOutput entries.
type File struct {
	Kind FileKind
	Path string
}

func InputFile(path string) File      { return File{Kind: KindInput, Path: path} }
func OutputFile(path string) File     { return File{Kind: KindOutput, Path: path} }
func TempOutputFile(name string) File { return File{Kind: KindTempOutput, Path: name} }
func AuxiliaryFile(path string) File  { return File{Kind: KindAuxiliary, Path: path} }
func Executable(name string) File     { return File{Kind: KindExecutable, Path: name} }

// Arg is one argv element: a literal string, a reference to a declared
// File (resolved to an absolute or temp-relative path at run time), or the
// %(TEMP_DIR)s placeholder resolved to the run's temp directory.
type Arg struct {
	literal   string
	file      *File
	isTempDir bool
}

func Lit(s string) Arg { return Arg{literal: s} }

func TempDir() Arg { return Arg{isTempDir: true} }

func FileArg(f File) Arg { return Arg{file: &f} }

// IsTempDir reports whether this Arg is the %(TEMP_DIR)s placeholder.
func (a Arg) IsTempDir() bool { return a.isTempDir }

// File returns the declared File this Arg references, or nil if it is a
// literal or temp-dir placeholder.
func (a Arg) File() *File { return a.file }

// Literal returns the literal text of this Arg; meaningless if File is
// non-nil or IsTempDir is true.
func (a Arg) Literal() string { return a.literal }

// resolve returns the runtime argv value for this element given the
// directory outputs/temp-outputs are staged under.
func (a Arg) resolve(tempDir string) string {
	switch {
	case a.isTempDir:
		return tempDir
	case a.file != nil:
		return resolveFilePath(*a.file, tempDir)
	default:
		return a.literal
	}
}

func baseOf(path string) string {
	return filepath.Base(path)
}

func resolveFilePath(f File, tempDir string) string {
	switch f.Kind {
	case KindOutput, KindTempOutput:
		return filepath.Join(tempDir, filepath.Base(f.Path))
	case KindExecutable:
		return f.Path
	default:
		return f.Path
	}
}
