/*
Package events provides an in-memory broker for node-state and task
notifications.

A NodeGraph calls Publish synchronously whenever it transitions a node's
state; the Manager and CLI watch subscribers to print progress and feed
the history store. Delivery is non-blocking and best-effort: a
subscriber whose buffer is full silently misses an event rather than
stalling the publisher. Publish assigns each Event a monotonically
increasing ID from a per-broker sequence, so a subscriber can notice a
gap and know it missed something even though it can't know what.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			fmt.Printf("%s: %s\n", event.Type, event.Message)
		}
	}()

	broker.Publish(&events.Event{
		Type:    events.EventNodeStateChanged,
		Message: "node 3 -> RUNNING",
		Metadata: map[string]string{"node_id": "3", "state": "RUNNING"},
	})

# Event types

EventNodeStateChanged is published by NodeGraph.SetNodeState on every
transition; the initial states derived at construction are not published.
EventTaskDispatched/Completed/Failed are published by the Manager's
event loop around a worker round-trip. EventWorkerJoined/Left/Down track
worker lifecycle for CLI and metrics consumers.

Subscribers should filter by Type and process asynchronously; blocking
in the receive loop risks a full buffer and dropped events, since the
broker never waits on a subscriber. Publish itself blocks only while the
broker's own queue is full.
*/
package events
