// Package monitoring provides Prometheus metrics for the trace layer.
package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Capture metrics
	EventsPushed  *prometheus.CounterVec
	EventsDropped prometheus.Counter
	BufferSize    prometheus.Gauge

	// Delivery metrics
	BatchesFlushed prometheus.Counter
	BatchSize      prometheus.Histogram
	Subscribers    prometheus.Gauge

	// Router metrics
	RoutedCalls    *prometheus.CounterVec
	RouteDuration  prometheus.Histogram
	PendingInvokes prometheus.Gauge

	// Viewer surface metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the JSON API
type Snapshot struct {
	EventsPushed   int64
	EventsDropped  int64
	BatchesFlushed int64
	RoutedCalls    int64
	RouteTimeouts  int64
	Subscribers    int64
}

// New creates a new metrics collector
func New() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		EventsPushed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracehub_events_pushed_total",
				Help: "Total number of trace events pushed to the hub",
			},
			[]string{"kind"},
		),
		EventsDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tracehub_events_dropped_total",
				Help: "Total number of trace events evicted on buffer overflow",
			},
		),
		BufferSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracehub_buffer_size",
				Help: "Current number of events held in the ring buffer",
			},
		),
		BatchesFlushed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tracehub_batches_flushed_total",
				Help: "Total number of batch deliveries to subscribers",
			},
		),
		BatchSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tracehub_batch_size",
				Help:    "Number of events per delivered batch",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
			},
		),
		Subscribers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracehub_subscribers",
				Help: "Number of live viewer subscribers",
			},
		),
		RoutedCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracehub_routed_calls_total",
				Help: "Total number of cross-window invocations by outcome",
			},
			[]string{"outcome"},
		),
		RouteDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tracehub_route_duration_seconds",
				Help:    "Cross-window invocation duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
			},
		),
		PendingInvokes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracehub_pending_invokes",
				Help: "Cross-window invocations awaiting response or timeout",
			},
		),
		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracehub_ws_connections",
				Help: "Active viewer WebSocket connections",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracehub_ws_messages_total",
				Help: "Viewer WebSocket messages by type and direction",
			},
			[]string{"type", "direction"},
		),
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracehub_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
	}

	go m.updateUptime()
	return m
}

// RecordPush tracks one stored event. Nil-safe so hot paths need no guard.
func (m *Metrics) RecordPush(kind string, dropped bool) {
	if m == nil {
		return
	}
	m.EventsPushed.WithLabelValues(kind).Inc()
	m.mu.Lock()
	m.snapshot.EventsPushed++
	if dropped {
		m.snapshot.EventsDropped++
	}
	m.mu.Unlock()
	if dropped {
		m.EventsDropped.Inc()
	}
}

// RecordBatch tracks one batch delivery.
func (m *Metrics) RecordBatch(size int) {
	if m == nil {
		return
	}
	m.BatchesFlushed.Inc()
	m.BatchSize.Observe(float64(size))
	m.mu.Lock()
	m.snapshot.BatchesFlushed++
	m.mu.Unlock()
}

// RecordRoute tracks one settled cross-window invocation.
func (m *Metrics) RecordRoute(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RoutedCalls.WithLabelValues(outcome).Inc()
	m.RouteDuration.Observe(duration.Seconds())
	m.mu.Lock()
	m.snapshot.RoutedCalls++
	if outcome == "timeout" {
		m.snapshot.RouteTimeouts++
	}
	m.mu.Unlock()
}

// SetSubscribers tracks the live subscriber count.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.Subscribers.Set(float64(n))
	m.mu.Lock()
	m.snapshot.Subscribers = int64(n)
	m.mu.Unlock()
}

// SetBufferSize tracks the ring buffer occupancy.
func (m *Metrics) SetBufferSize(n int) {
	if m == nil {
		return
	}
	m.BufferSize.Set(float64(n))
}

// SetPending tracks the pending invocation count.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingInvokes.Set(float64(n))
}

// GetSnapshot returns current values for the JSON API.
func (m *Metrics) GetSnapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}
