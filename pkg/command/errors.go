package command

import "fmt"

// CmdError is raised for construction-time and launch-time failures of an
// AtomicCmd or CmdSet: missing input at launch, a declared output not
// produced at commit, duplicate output declarations, or an illegal argv
// or membership shape. See spec §4.1-§4.2.
type CmdError struct {
	msg string
}

func (e *CmdError) Error() string {
	return e.msg
}

func errf(format string, args ...any) *CmdError {
	return &CmdError{msg: fmt.Sprintf(format, args...)}
}
