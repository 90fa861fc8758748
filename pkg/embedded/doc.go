// Package embedded wires a single-process Manager for local runs and
// tests: a LocalWorker only, no discovery directory, no RemoteWorkers.
// It is a convenience constructor, not a distinct scheduling mode — the
// Manager it builds is the same type pkg/manager always builds, just
// configured with discovery disabled.
package embedded
