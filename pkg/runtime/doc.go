// Package runtime starts and signals plain OS subprocesses in their own
// process group, so that a single signal reaches every descendant a task
// spawned. It is the shared primitive pkg/command's AtomicCmd and
// pkg/worker's LocalWorker child wrapper are built on.
package runtime
