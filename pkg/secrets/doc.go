// Package secrets provides AES-256-GCM encryption of handshake and
// capacity payloads exchanged between a Manager and its RemoteWorkers,
// keyed from the discovery directory's shared secret rather than a
// cluster id.
package secrets
