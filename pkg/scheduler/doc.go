// Package scheduler implements dispatch selection for the pipeline
// execution engine: which RUNABLE node to run next, and which idle
// worker should run it, including the overcommit rule that lets a
// wide task still be scheduled on the single largest worker.
package scheduler
