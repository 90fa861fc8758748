// Package transport implements the authenticated bidirectional message
// channel a Manager uses to talk to a RemoteWorker, adapted from the
// teacher's WebSocket streaming server onto the spec's HANDSHAKE /
// CAPACITY / TASK_START / TASK_DONE / SHUTDOWN event vocabulary.
package transport

import (
	"github.com/cuemby/nodeflow/pkg/types"
)

// EventType discriminates a Message's payload, per spec §6.
type EventType string

const (
	EventHandshake         EventType = "HANDSHAKE"
	EventHandshakeResponse EventType = "HANDSHAKE_RESPONSE"
	EventCapacity          EventType = "CAPACITY"
	EventTaskStart         EventType = "TASK_START"
	EventTaskDone          EventType = "TASK_DONE"
	EventShutdown          EventType = "SHUTDOWN"
)

// Message is the envelope framed over the wire. Exactly one of the
// payload fields is populated, selected by Event.
type Message struct {
	Event EventType `json:"event"`

	Handshake         *HandshakePayload         `json:"handshake,omitempty"`
	HandshakeResponse *HandshakeResponsePayload `json:"handshake_response,omitempty"`
	Capacity          *CapacityPayload          `json:"capacity,omitempty"`
	TaskStart         *TaskStartPayload         `json:"task_start,omitempty"`
	TaskDone          *TaskDonePayload          `json:"task_done,omitempty"`
}

// HandshakePayload is sent Manager -> Worker to open a session.
type HandshakePayload struct {
	Cwd          string                     `json:"cwd"`
	Version      string                     `json:"version"`
	Requirements []types.VersionRequirement `json:"requirements"`
}

// HandshakeResponsePayload is sent Worker -> Manager; a non-nil Error
// fails the handshake and blacklists the worker for the session.
type HandshakeResponsePayload struct {
	Error *string `json:"error"`
}

// CapacityPayload reports idle thread budget. It flows Worker -> Manager
// and is also manager-synthesized for the LocalWorker.
type CapacityPayload struct {
	Threads    int  `json:"threads"`
	Overcommit bool `json:"overcommit,omitempty"`
}

// TaskStartPayload dispatches one task, Manager -> Worker.
type TaskStartPayload struct {
	Task     types.TaskDescriptor `json:"task"`
	TempRoot string               `json:"temp_root"`
}

// TaskDonePayload reports task completion, Worker -> Manager.
type TaskDonePayload struct {
	TaskID    int      `json:"task_id"`
	Error     *string  `json:"error"`
	Backtrace []string `json:"backtrace,omitempty"`
}

func strPtr(s string) *string { return &s }

// NewHandshake builds a HANDSHAKE message.
func NewHandshake(cwd, version string, reqs []types.VersionRequirement) Message {
	return Message{Event: EventHandshake, Handshake: &HandshakePayload{Cwd: cwd, Version: version, Requirements: reqs}}
}

// NewHandshakeOK builds a successful HANDSHAKE_RESPONSE.
func NewHandshakeOK() Message {
	return Message{Event: EventHandshakeResponse, HandshakeResponse: &HandshakeResponsePayload{}}
}

// NewHandshakeError builds a failing HANDSHAKE_RESPONSE.
func NewHandshakeError(reason string) Message {
	return Message{Event: EventHandshakeResponse, HandshakeResponse: &HandshakeResponsePayload{Error: strPtr(reason)}}
}

// NewCapacity builds a CAPACITY message.
func NewCapacity(threads int, overcommit bool) Message {
	return Message{Event: EventCapacity, Capacity: &CapacityPayload{Threads: threads, Overcommit: overcommit}}
}

// NewTaskStart builds a TASK_START message.
func NewTaskStart(task types.TaskDescriptor, tempRoot string) Message {
	return Message{Event: EventTaskStart, TaskStart: &TaskStartPayload{Task: task, TempRoot: tempRoot}}
}

// NewTaskDoneOK builds a successful TASK_DONE.
func NewTaskDoneOK(taskID int) Message {
	return Message{Event: EventTaskDone, TaskDone: &TaskDonePayload{TaskID: taskID}}
}

// NewTaskDoneError builds a failing TASK_DONE.
func NewTaskDoneError(taskID int, reason string, backtrace []string) Message {
	return Message{Event: EventTaskDone, TaskDone: &TaskDonePayload{TaskID: taskID, Error: strPtr(reason), Backtrace: backtrace}}
}

// NewShutdown builds a SHUTDOWN message.
func NewShutdown() Message {
	return Message{Event: EventShutdown}
}
