package master

import (
	"time"

	"github.com/skitter-project/skitter/pkg/metrics"
	"github.com/skitter-project/skitter/pkg/worker"
)

// Collector periodically samples this master's membership table and a
// node's local worker pool into gauge metrics. Counter and histogram
// metrics are updated inline by the packages that own the events they
// describe (pkg/worker, pkg/master's own Raft calls); Collector only
// covers point-in-time snapshots, same division of labor as the teacher's
// pkg/metrics.Collector over pkg/manager.
type Collector struct {
	master *Master
	pool   *worker.Pool
	stopCh chan struct{}
}

// NewCollector builds a collector sampling m's table and, if non-nil, a
// local worker pool.
func NewCollector(m *Master, pool *worker.Pool) *Collector {
	return &Collector{master: m, pool: pool, stopCh: make(chan struct{})}
}

// Start begins sampling on a 15-second tick until Stop is called.
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

// Stop halts sampling.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	metrics.NodesConnected.Set(float64(len(c.master.Table.Nodes())))

	if c.master.IsLeader() {
		metrics.RaftLeader.Set(1)
	} else {
		metrics.RaftLeader.Set(0)
	}
	if stats := c.master.RaftStats(); stats != nil {
		if peers, ok := stats["peers"].(uint64); ok {
			metrics.RaftPeers.Set(float64(peers))
		}
	}

	if c.pool == nil {
		return
	}
	counts := make(map[string]int)
	for _, w := range c.pool.All() {
		counts[w.Component.Name]++
	}
	for component, count := range counts {
		metrics.WorkersActive.WithLabelValues(component).Set(float64(count))
	}
}
