// Package discovery finds candidate RemoteWorkers for a Manager to claim:
// either by scanning a directory of worker advertisement JSON files
// (unlinking each on successful claim) or by loading a static YAML list
// of pre-provisioned workers.
package discovery
