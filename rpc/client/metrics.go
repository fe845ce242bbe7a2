package client

import (
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	networkErrors   = metrics.NewCounter("rdbm_client_network_errors_total")
	poisonedHandles = metrics.NewCounter("rdbm_client_poisoned_handles_total")

	liveHandles atomic.Int64
	_           = metrics.NewGauge("rdbm_client_live_handles", func() float64 {
		return float64(liveHandles.Load())
	})

	// calls caches one counter per operation name
	calls = xsync.NewMapOf[string, *metrics.Counter]()
)

// countCall increments the call counter of the given operation
func countCall(op string) {
	c, _ := calls.LoadOrCompute(op, func() *metrics.Counter {
		return metrics.GetOrCreateCounter(`rdbm_client_calls_total{op="` + op + `"}`)
	})
	c.Inc()
}
