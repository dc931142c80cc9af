package metrics

import (
	"time"

	"github.com/cuemby/warren-bolt/pkg/pool"
)

// Collector periodically scrapes a Pool's occupancy into the PoolConnections
// gauge. Grounded on the teacher's pkg/metrics/collector.go: a ticker-driven
// Start/Stop pair collecting from a single long-lived handle.
type Collector struct {
	pool   *pool.Pool
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector for p.
func NewCollector(p *pool.Pool) *Collector {
	return &Collector{
		pool:   p,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds.
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
	for _, s := range c.pool.Stats() {
		PoolConnections.WithLabelValues(s.Address, "in_use").Set(float64(s.Active))
		PoolConnections.WithLabelValues(s.Address, "idle").Set(float64(s.Idle))
	}
}
