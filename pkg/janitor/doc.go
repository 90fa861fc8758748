// Package janitor removes orphaned per-node temp directories left under
// the configured temp root by a run that crashed before its own
// commit/abort cleanup ran. It is invoked explicitly via the
// "nodeflow janitor" CLI command, never automatically.
package janitor
