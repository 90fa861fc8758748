package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Graph metrics
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nodeflow_nodes_total",
			Help: "Total number of graph nodes by state",
		},
		[]string{"state"},
	)

	// Worker metrics
	WorkerCapacity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nodeflow_worker_capacity",
			Help: "Announced thread capacity by worker",
		},
		[]string{"worker_id"},
	)

	WorkerIdleThreads = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nodeflow_worker_idle_threads",
			Help: "Idle thread count by worker",
		},
		[]string{"worker_id"},
	)

	WorkersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nodeflow_workers_total",
			Help: "Total number of workers by status",
		},
		[]string{"status"},
	)

	// Task dispatch metrics
	TasksDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodeflow_tasks_dispatched_total",
			Help: "Total number of tasks dispatched by worker",
		},
		[]string{"worker_id"},
	)

	TasksFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodeflow_tasks_failed_total",
			Help: "Total number of tasks that finished in error by worker",
		},
		[]string{"worker_id"},
	)

	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nodeflow_task_duration_seconds",
			Help:    "Wall-clock duration of a node run from dispatch to completion",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"worker_id"},
	)

	// Discovery metrics
	DiscoveryCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nodeflow_discovery_cycles_total",
			Help: "Total number of worker auto-discovery scan cycles completed",
		},
	)

	DiscoveredWorkersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nodeflow_discovered_workers_total",
			Help: "Total number of workers claimed via auto-discovery",
		},
	)

	// Manager scheduling metrics
	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nodeflow_scheduling_latency_seconds",
			Help:    "Time from a node becoming RUNABLE to being dispatched",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(WorkerCapacity)
	prometheus.MustRegister(WorkerIdleThreads)
	prometheus.MustRegister(WorkersTotal)
	prometheus.MustRegister(TasksDispatchedTotal)
	prometheus.MustRegister(TasksFailedTotal)
	prometheus.MustRegister(TaskDuration)
	prometheus.MustRegister(DiscoveryCyclesTotal)
	prometheus.MustRegister(DiscoveredWorkersTotal)
	prometheus.MustRegister(SchedulingLatency)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
