// Package versioncheck probes declared external executables with
// --version and matches the first version-looking token in their output
// against a VersionRequirement's predicate, the same exec-and-capture
// shape as an ExecChecker health probe, adapted to return a structured
// pass/fail result per requirement instead of a boolean health status.
package versioncheck
