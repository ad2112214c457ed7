// Package metrics provides custom Prometheus metrics for EchoGuard.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains all Prometheus metrics related to the analysis
// pipeline, from audio decoding through classification and persistence.
type PipelineMetrics struct {
	DetectionCounter *prometheus.CounterVec

	AnalyzeDuration   *prometheus.HistogramVec
	ExtractDuration   prometheus.Histogram
	ClassifyDuration  prometheus.Histogram

	AnalyzeTotal  *prometheus.CounterVec
	AnalyzeErrors *prometheus.CounterVec

	ModelLoadedGauge prometheus.Gauge

	registry *prometheus.Registry
}

// NewPipelineMetrics creates a new instance of PipelineMetrics registered
// against the given registry.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.DetectionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echoguard_detections_total",
			Help: "Total number of detections partitioned by event type and threat flag.",
		},
		[]string{"event_type", "threat"},
	)

	m.AnalyzeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "echoguard_analyze_duration_seconds",
			Help:    "Time taken to run the full analysis pipeline for one clip",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"format"},
	)

	m.ExtractDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "echoguard_feature_extract_duration_seconds",
			Help:    "Time taken to extract the feature vector from a waveform",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
	)

	m.ClassifyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "echoguard_classify_duration_seconds",
			Help:    "Time taken for model inference on a feature vector",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 8),
		},
	)

	m.AnalyzeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echoguard_analyze_total",
			Help: "Total number of analysis requests",
		},
		[]string{"status"},
	)

	m.AnalyzeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echoguard_analyze_errors_total",
			Help: "Total number of analysis errors by category",
		},
		[]string{"category"},
	)

	m.ModelLoadedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "echoguard_model_loaded",
			Help: "Whether the classifier model is currently loaded (1) or not (0)",
		},
	)
}

// RecordDetection increments the detection counter for an event type.
func (m *PipelineMetrics) RecordDetection(eventType string, isThreat bool) {
	threat := "false"
	if isThreat {
		threat = "true"
	}
	m.DetectionCounter.WithLabelValues(eventType, threat).Inc()
}

// RecordAnalyze records the outcome and duration of one pipeline run.
func (m *PipelineMetrics) RecordAnalyze(format string, durationSeconds float64, err error) {
	if err != nil {
		m.AnalyzeTotal.WithLabelValues("error").Inc()
		m.AnalyzeErrors.WithLabelValues(categorizeError(err)).Inc()
		return
	}
	m.AnalyzeTotal.WithLabelValues("success").Inc()
	m.AnalyzeDuration.WithLabelValues(format).Observe(durationSeconds)
}

// RecordExtract records feature extraction duration.
func (m *PipelineMetrics) RecordExtract(durationSeconds float64) {
	m.ExtractDuration.Observe(durationSeconds)
}

// RecordClassify records model inference duration.
func (m *PipelineMetrics) RecordClassify(durationSeconds float64) {
	m.ClassifyDuration.Observe(durationSeconds)
}

// SetModelLoaded reports whether the classifier backend is available.
func (m *PipelineMetrics) SetModelLoaded(loaded bool) {
	if loaded {
		m.ModelLoadedGauge.Set(1)
	} else {
		m.ModelLoadedGauge.Set(0)
	}
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DetectionCounter.Describe(ch)
	m.AnalyzeDuration.Describe(ch)
	ch <- m.ExtractDuration.Desc()
	ch <- m.ClassifyDuration.Desc()
	m.AnalyzeTotal.Describe(ch)
	m.AnalyzeErrors.Describe(ch)
	ch <- m.ModelLoadedGauge.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DetectionCounter.Collect(ch)
	m.AnalyzeDuration.Collect(ch)
	ch <- m.ExtractDuration
	ch <- m.ClassifyDuration
	m.AnalyzeTotal.Collect(ch)
	m.AnalyzeErrors.Collect(ch)
	ch <- m.ModelLoadedGauge
}
