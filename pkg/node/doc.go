// Package node adapts a command.Command to the scheduler: a stable
// process-unique id, a human description, thread accounting, and the
// subnode/dependency relationships NodeGraph derives state from. A
// MetaNode carries no command and is done exactly when its subnodes and
// dependencies are all done.
package node
