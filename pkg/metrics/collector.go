package metrics

import (
	"time"

	"github.com/cuemby/nodeflow/pkg/graph"
	"github.com/cuemby/nodeflow/pkg/node"
	"github.com/cuemby/nodeflow/pkg/types"
)

// GraphSource is the read-only view of a NodeGraph the collector needs.
type GraphSource interface {
	Iterflat() []*node.Node
	State(n *node.Node) graph.State
}

// WorkerSource is the read-only view of the worker registry the
// collector needs.
type WorkerSource interface {
	Workers() []types.WorkerInfo
}

// Collector periodically samples a NodeGraph and a worker registry into
// the package's Prometheus gauges.
type Collector struct {
	graph   GraphSource
	workers WorkerSource
	stopCh  chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(g GraphSource, w WorkerSource) *Collector {
	return &Collector{graph: g, workers: w, stopCh: make(chan struct{})}
}

// Start begins sampling every 15 seconds until Stop is called.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectNodeMetrics()
	c.collectWorkerMetrics()
}

func (c *Collector) collectNodeMetrics() {
	if c.graph == nil {
		return
	}

	counts := make(map[string]int)
	for _, n := range c.graph.Iterflat() {
		counts[c.graph.State(n).String()]++
	}
	for state, count := range counts {
		NodesTotal.WithLabelValues(state).Set(float64(count))
	}
}

func (c *Collector) collectWorkerMetrics() {
	if c.workers == nil {
		return
	}

	statusCounts := make(map[string]int)
	for _, w := range c.workers.Workers() {
		statusCounts[string(w.Status)]++
		WorkerCapacity.WithLabelValues(w.ID).Set(float64(w.Capacity))
		WorkerIdleThreads.WithLabelValues(w.ID).Set(float64(w.IdleThreads(len(w.RunningIDs))))
	}
	for status, count := range statusCounts {
		WorkersTotal.WithLabelValues(status).Set(float64(count))
	}
}
