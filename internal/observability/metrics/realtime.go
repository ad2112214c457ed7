package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// RealtimeMetrics contains Prometheus metrics for alert dispatch and
// websocket broadcasting.
type RealtimeMetrics struct {
	AlertTotal      *prometheus.CounterVec
	WebhookDuration prometheus.Histogram

	SubscriberGauge  prometheus.Gauge
	BroadcastTotal   *prometheus.CounterVec
	DroppedMessages  prometheus.Counter

	registry *prometheus.Registry
}

// NewRealtimeMetrics creates a new instance of RealtimeMetrics registered
// against the given registry.
func NewRealtimeMetrics(registry *prometheus.Registry) (*RealtimeMetrics, error) {
	m := &RealtimeMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register realtime metrics: %w", err)
	}
	return m, nil
}

func (m *RealtimeMetrics) initMetrics() {
	m.AlertTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echoguard_alerts_total",
			Help: "Total number of dispatched alerts by terminal status",
		},
		[]string{"status"},
	)

	m.WebhookDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "echoguard_webhook_duration_seconds",
			Help:    "Time taken to deliver an alert webhook",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	m.SubscriberGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "echoguard_broadcast_subscribers",
			Help: "Number of currently connected websocket subscribers",
		},
	)

	m.BroadcastTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echoguard_broadcasts_total",
			Help: "Total number of broadcast events by event type",
		},
		[]string{"event_type"},
	)

	m.DroppedMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "echoguard_broadcast_dropped_total",
			Help: "Total number of broadcast messages dropped on slow subscribers",
		},
	)
}

// RecordAlert records a terminal alert delivery outcome.
func (m *RealtimeMetrics) RecordAlert(status string, durationSeconds float64) {
	m.AlertTotal.WithLabelValues(status).Inc()
	if durationSeconds > 0 {
		m.WebhookDuration.Observe(durationSeconds)
	}
}

// SetSubscribers reports the current websocket subscriber count.
func (m *RealtimeMetrics) SetSubscribers(count int) {
	m.SubscriberGauge.Set(float64(count))
}

// RecordBroadcast records one published broadcast event.
func (m *RealtimeMetrics) RecordBroadcast(eventType string) {
	m.BroadcastTotal.WithLabelValues(eventType).Inc()
}

// RecordDropped records a message dropped because a subscriber was slow.
func (m *RealtimeMetrics) RecordDropped() {
	m.DroppedMessages.Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *RealtimeMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.AlertTotal.Describe(ch)
	ch <- m.WebhookDuration.Desc()
	ch <- m.SubscriberGauge.Desc()
	m.BroadcastTotal.Describe(ch)
	ch <- m.DroppedMessages.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *RealtimeMetrics) Collect(ch chan<- prometheus.Metric) {
	m.AlertTotal.Collect(ch)
	ch <- m.WebhookDuration
	ch <- m.SubscriberGauge
	m.BroadcastTotal.Collect(ch)
	ch <- m.DroppedMessages
}
