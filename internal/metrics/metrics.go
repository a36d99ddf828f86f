// Package metrics exposes queue and API activity to Prometheus.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"morph/internal/queue"
)

// Metrics holds the collectors registered by New.
type Metrics struct {
	// Item metrics
	ItemsTotal    *prometheus.CounterVec
	ItemsInFlight prometheus.Gauge
	ItemDuration  *prometheus.HistogramVec
	QueueDepth    prometheus.Gauge
	QueueRunning  prometheus.Gauge

	// API metrics
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec

	gatherer prometheus.Gatherer

	mu      sync.Mutex
	started map[string]time.Time
	queued  map[string]bool // item ID to whether it is pending
	pending int
}

// New creates the collectors and registers them with reg. Passing a fresh
// prometheus.NewRegistry keeps tests independent of the global registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		ItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "morph",
				Subsystem: "items",
				Name:      "total",
				Help:      "Total number of queue items finished by outcome",
			},
			[]string{"status"},
		),
		ItemsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "morph",
				Subsystem: "items",
				Name:      "in_progress",
				Help:      "Number of items currently being converted",
			},
		),
		ItemDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "morph",
				Subsystem: "items",
				Name:      "duration_seconds",
				Help:      "Duration of item conversions in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"status"},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "morph",
				Subsystem: "queue",
				Name:      "pending",
				Help:      "Number of items waiting in the queue",
			},
		),
		QueueRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "morph",
				Subsystem: "queue",
				Name:      "running",
				Help:      "1 while the queue is draining, 0 when idle",
			},
		),
		APIRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "morph",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total number of API requests by endpoint and status",
			},
			[]string{"endpoint", "method", "status"},
		),
		APILatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "morph",
				Subsystem: "api",
				Name:      "latency_seconds",
				Help:      "API request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"endpoint", "method"},
		),
		gatherer: reg,
		started:  make(map[string]time.Time),
		queued:   make(map[string]bool),
	}

	reg.MustRegister(
		m.ItemsTotal,
		m.ItemsInFlight,
		m.ItemDuration,
		m.QueueDepth,
		m.QueueRunning,
		m.APIRequests,
		m.APILatency,
	)
	return m
}

// Handler serves the registry passed to New.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Attach keeps the item and queue collectors in step with p. The returned
// function detaches.
func (m *Metrics) Attach(p *queue.Processor) func() {
	detach := p.Subscribe(func(ev queue.Event) {
		switch ev.Kind {
		case queue.EventRunState:
			if ev.Running {
				m.QueueRunning.Set(1)
			} else {
				m.QueueRunning.Set(0)
			}
		case queue.EventItemAdded:
			m.trackDepth(*ev.Item, true)
		case queue.EventItemUpdated:
			m.observeItem(*ev.Item)
			m.trackDepth(*ev.Item, false)
		case queue.EventCleared:
			m.mu.Lock()
			clear(m.queued)
			m.pending = 0
			m.QueueDepth.Set(0)
			m.mu.Unlock()
		}
	})
	// Items added before the subscription; ones already seen are skipped.
	for _, item := range p.Items() {
		m.trackDepth(item, true)
	}
	return detach
}

// trackDepth updates the pending gauge from one item's status. Updates for
// items that were cleared from the queue are ignored.
func (m *Metrics) trackDepth(item queue.Snapshot, added bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	was, known := m.queued[item.ID]
	if added == known {
		return
	}
	now := item.Status == queue.StatusPending
	m.queued[item.ID] = now
	switch {
	case now && !was:
		m.pending++
	case !now && was:
		m.pending--
	}
	m.QueueDepth.Set(float64(m.pending))
}

func (m *Metrics) observeItem(item queue.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item.Status == queue.StatusInProgress {
		m.started[item.ID] = time.Now()
		m.ItemsInFlight.Inc()
		return
	}

	began, ok := m.started[item.ID]
	if !ok {
		return
	}
	delete(m.started, item.ID)
	m.ItemsInFlight.Dec()

	outcome := string(item.Status)
	if item.Status == queue.StatusPending {
		outcome = "cancelled"
	}
	m.ItemsTotal.WithLabelValues(outcome).Inc()
	m.ItemDuration.WithLabelValues(outcome).Observe(time.Since(began).Seconds())
}
