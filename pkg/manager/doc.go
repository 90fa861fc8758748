/*
Package manager implements the single cooperative-threaded coordinator
that owns every Worker, drives the dependency graph to completion, and
answers to exactly one caller per run (spec §4.8, §5).

# Architecture

Unlike a Raft-backed cluster manager with peer managers and a leader
election, a Manager here has no peers: its event loop is the only place
that mutates NodeGraph state or the worker map, and parallelism comes
entirely from LocalWorker child processes and RemoteWorker peer
processes, never from concurrent manager instances.

	┌─────────────────────────── MANAGER ───────────────────────────┐
	│                                                                 │
	│  ┌───────────────┐   shared chan worker.Event   ┌────────────┐│
	│  │  LocalWorker   ├──────────────────────────────▶  event loop ││
	│  └───────────────┘                               │  (RunUntilDone)
	│  ┌───────────────┐                               │            ││
	│  │ RemoteWorker(s)├──────────────────────────────▶            ││
	│  └───────────────┘                               └─────┬──────┘│
	│  ┌────────────────┐  auto-connect every 15s             │       │
	│  │ discovery.Scanner◀─────────────────────────────────────┘       │
	│  └────────────────┘                                             │
	│                            dispatch via pkg/scheduler            │
	│                            state mutation via pkg/graph          │
	└──────────────────────────────────────────────────────────────────┘

# Usage

	mgr, err := manager.New(manager.Config{
		Threads:      4,
		Requirements: reqs,
		TempRoot:     "/tmp/nodeflow",
		DiscoveryDir: "~/.nodeflow/remote",
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := mgr.Start(); err != nil {
		log.Fatal(err)
	}
	defer mgr.Shutdown()

	g, err := graph.New(roots...)
	if err != nil {
		log.Fatal(err)
	}
	if err := mgr.RunUntilDone(ctx, g); err != nil {
		log.Fatal(err)
	}

# Cancellation

RunUntilDone honors ctx cancellation the way spec §4.8 describes SIGINT:
the first cancellation stops further dispatch but lets already-running
tasks finish; a caller observing a second interrupt (e.g. a second
SIGINT) is expected to abandon RunUntilDone and exit the process
directly, since children are reparented to init and signaled
independently by the worker that spawned them.

# Metrics and history

Manager implements metrics.WorkerSource directly, so a metrics.Collector
can sample worker load without depending on this package. A
history.Recorder is attached as a graph.Observer internally so every
completed run is written to the audit store without dispatch logic
needing to know about it.
*/
package manager
