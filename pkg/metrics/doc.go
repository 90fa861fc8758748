/*
Package metrics exposes Prometheus gauges, counters, and histograms over
the pipeline's node graph, worker registry, and dispatch loop, plus a
liveness/readiness/health HTTP surface in the teacher's shape.

# Metrics

Graph state (nodeflow_nodes_total{state}) is sampled from a GraphSource
(a *graph.NodeGraph in production) every 15 seconds by Collector, the
same ticker-driven polling shape the teacher used for its own
collector. Worker load (nodeflow_worker_capacity,
nodeflow_worker_idle_threads, nodeflow_workers_total{status}) is sampled
from a WorkerSource. Discovery counters
(nodeflow_discovery_cycles_total, nodeflow_discovered_workers_total) are
incremented directly by pkg/discovery on every scan. Dispatch counters
(nodeflow_tasks_dispatched_total, nodeflow_tasks_failed_total,
nodeflow_task_duration_seconds) are registered and exported, but no
package in this module updates them, so they stay at zero.

# Usage

	collector := metrics.NewCollector(nodeGraph, workerRegistry)
	collector.Start()
	defer collector.Stop()

	http.Handle("/metrics", metrics.Handler())

Timing a dispatch round-trip:

	timer := metrics.NewTimer()
	// ... dispatch and await completion ...
	timer.ObserveDurationVec(metrics.TaskDuration, workerID)

# Health

RegisterComponent/UpdateComponent track named component health; pkg/manager
registers "transport" once its LocalWorker handshakes and "discovery" on
every auto-discovery scan (or as disabled, if none is configured).
GetHealth aggregates all registered components, returning "degraded"
rather than "unhealthy" when only a non-critical one (e.g. a single
RemoteWorker) is down. GetReadiness requires "discovery" and "transport"
specifically for /ready, and LivenessHandler answers /live unconditionally
while the process is up.
*/
package metrics
