// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// MetricsRegistry backs the control plane's connections.active,
// requests.served, requests.errored, inbuffer.bytes and outbuffer.bytes
// entries (see ControlAdapter and service.Handler/worker.HandleRequest,
// the transition points that update them). Point-in-time values (buffer
// occupancy) go through Set; running totals (request/connection counts)
// go through Incr so two goroutines closing connections concurrently
// don't clobber each other's update.

package control

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsRegistry holds gauges and counters behind one lock-protected
// snapshot view.
type MetricsRegistry struct {
	mu       sync.RWMutex
	gauges   map[string]any
	counters map[string]*int64
	updated  time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		gauges:   make(map[string]any),
		counters: make(map[string]*int64),
	}
}

// Set records a point-in-time gauge value, such as current buffer
// occupancy.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.gauges[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Incr adds delta to a running counter, creating it at 0 on first use.
// Used for connections.active (delta +1/-1) and requests.served/
// requests.errored (delta +1).
func (mr *MetricsRegistry) Incr(key string, delta int64) {
	mr.mu.Lock()
	c, ok := mr.counters[key]
	if !ok {
		c = new(int64)
		mr.counters[key] = c
	}
	mr.mu.Unlock()
	atomic.AddInt64(c, delta)

	mr.mu.Lock()
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// GetSnapshot returns the latest gauges merged with the current value
// of every counter.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.gauges)+len(mr.counters))
	for k, v := range mr.gauges {
		out[k] = v
	}
	for k, c := range mr.counters {
		out[k] = atomic.LoadInt64(c)
	}
	return out
}
