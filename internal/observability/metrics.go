// Package observability provides metrics and monitoring capabilities for
// the EchoGuard service.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/echoguard/echoguard-go/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Pipeline *metrics.PipelineMetrics
	Realtime *metrics.RealtimeMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric
// collectors against a private registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	pipelineMetrics, err := metrics.NewPipelineMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	realtimeMetrics, err := metrics.NewRealtimeMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create realtime metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Pipeline: pipelineMetrics,
		Realtime: realtimeMetrics,
	}, nil
}

// Handler returns an http.Handler serving the Prometheus exposition format
// for all registered collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
