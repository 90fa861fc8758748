// Package transport carries the authenticated wire protocol between a
// Manager and its RemoteWorkers: HANDSHAKE, CAPACITY, TASK_START,
// TASK_DONE and SHUTDOWN messages framed as JSON over a gorilla/websocket
// connection, with the manager dialing out to a worker's listen address
// and the worker accepting via a gorilla/mux-routed upgrade endpoint.
package transport
