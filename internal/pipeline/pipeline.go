// Package pipeline orchestrates the full analysis chain: decode a clip,
// extract features, classify, persist the detection and notify listeners.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/echoguard/echoguard-go/internal/alert"
	"github.com/echoguard/echoguard-go/internal/classifier"
	"github.com/echoguard/echoguard-go/internal/conf"
	"github.com/echoguard/echoguard-go/internal/datastore"
	"github.com/echoguard/echoguard-go/internal/errors"
	"github.com/echoguard/echoguard-go/internal/hub"
	"github.com/echoguard/echoguard-go/internal/hydroaudio"
	"github.com/echoguard/echoguard-go/internal/logging"
	"github.com/echoguard/echoguard-go/internal/observability/metrics"
)

// AnalyzeRequest describes one clip to run through the pipeline. Position
// given here takes precedence over the hydrophone's registered position.
type AnalyzeRequest struct {
	Source       hydroaudio.AudioSource
	HydrophoneID *uint
	Latitude     *float64
	Longitude    *float64
}

// AnalysisResult is the outcome of one pipeline run.
type AnalysisResult struct {
	Detection datastore.Detection `json:"detection"`
	Alert     *datastore.Alert    `json:"alert,omitempty"`
}

// BatchResult pairs per-clip outcomes with per-clip failures. A failing
// clip never aborts the rest of the batch.
type BatchResult struct {
	Results []AnalysisResult `json:"results"`
	Errors  []BatchError     `json:"errors,omitempty"`
}

// BatchError records which clip of a batch failed and why.
type BatchError struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Processor wires the pipeline stages together.
type Processor struct {
	settings   *conf.Settings
	extractor  *hydroaudio.Extractor
	classifier *classifier.Classifier
	store      datastore.Interface
	dispatcher *alert.Dispatcher
	hub        *hub.Hub
	metrics    *metrics.PipelineMetrics
	logger     *slog.Logger
}

// New creates a processor. Dispatcher, hub and metrics may each be nil; the
// corresponding stage is then skipped.
func New(settings *conf.Settings, c *classifier.Classifier, store datastore.Interface, d *alert.Dispatcher, h *hub.Hub, m *metrics.PipelineMetrics) *Processor {
	return &Processor{
		settings:   settings,
		extractor:  hydroaudio.NewExtractor(settings.Audio.SampleRate, settings.Audio.ClipDuration),
		classifier: c,
		store:      store,
		dispatcher: d,
		hub:        h,
		metrics:    m,
		logger:     logging.ForService("pipeline"),
	}
}

// ModelLoaded reports whether a classification backend is available.
func (p *Processor) ModelLoaded() bool {
	return p.classifier != nil
}

// Analyze runs one clip through the full pipeline. The detection row is
// durable before any alert or broadcast goes out; notification failures are
// logged but never undo or fail the analysis.
func (p *Processor) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error) {
	start := time.Now()
	result, format, err := p.analyze(ctx, req)
	if p.metrics != nil {
		p.metrics.RecordAnalyze(string(format), time.Since(start).Seconds(), err)
	}
	return result, err
}

func (p *Processor) analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, hydroaudio.Format, error) {
	if err := ctx.Err(); err != nil {
		return nil, hydroaudio.FormatUnknown, err
	}

	format, err := hydroaudio.DetectFormat(req.Source.Name(), peekHeader(req.Source))
	if err != nil {
		return nil, hydroaudio.FormatUnknown, err
	}

	clipPath, err := p.persistClip(req.Source, format)
	if err != nil {
		return nil, format, err
	}

	waveform, err := hydroaudio.DecodeWaveform(req.Source, p.settings.Audio.SampleRate)
	if err != nil {
		return nil, format, err
	}

	extractStart := time.Now()
	features := p.extractor.Extract(waveform)
	if p.metrics != nil {
		p.metrics.RecordExtract(time.Since(extractStart).Seconds())
	}

	classifyStart := time.Now()
	prediction, err := p.classifier.Predict(features)
	if err != nil {
		return nil, format, err
	}
	if p.metrics != nil {
		p.metrics.RecordClassify(time.Since(classifyStart).Seconds())
	}

	detection := datastore.Detection{
		HydrophoneID:    req.HydrophoneID,
		EventType:       prediction.EventType,
		Confidence:      prediction.Confidence,
		Timestamp:       time.Now().UTC(),
		AudioFilePath:   clipPath,
		DurationSeconds: p.settings.Audio.ClipDuration,
		IsThreat:        prediction.IsThreat,
		Probabilities:   prediction.Probabilities,
	}
	p.resolvePosition(&detection, req)

	if err := p.store.SaveDetection(&detection); err != nil {
		return nil, format, err
	}
	if p.metrics != nil {
		p.metrics.RecordDetection(detection.EventType, detection.IsThreat)
	}

	p.logger.Info("detection recorded",
		"detection_id", detection.ID,
		"event_type", detection.EventType,
		"confidence", detection.Confidence,
		"is_threat", detection.IsThreat)

	result := &AnalysisResult{Detection: detection}
	if detection.IsThreat {
		result.Alert = p.notifyThreat(ctx, &detection)
	}

	if p.hub != nil {
		p.hub.Publish(hub.EventNewDetection, detection)
	}

	return result, format, nil
}

// notifyThreat dispatches the alert and publishes the alert event. Failures
// here are deliberately swallowed: the detection is already durable.
func (p *Processor) notifyThreat(ctx context.Context, detection *datastore.Detection) *datastore.Alert {
	if p.dispatcher == nil || !p.settings.Alerts.Enabled {
		return nil
	}

	dispatched, err := p.dispatcher.DispatchForDetection(ctx, detection)
	if err != nil {
		p.logger.Error("alert dispatch failed",
			"detection_id", detection.ID,
			"event_type", detection.EventType,
			"error", err)
	}
	if dispatched != nil && p.hub != nil {
		p.hub.Publish(hub.EventAlert, map[string]any{
			"alert_id":     dispatched.ID,
			"detection_id": detection.ID,
			"event_type":   detection.EventType,
			"confidence":   detection.Confidence,
			"status":       dispatched.Status,
		})
	}
	return dispatched
}

// ResendAlert dispatches a fresh alert for an existing detection and
// publishes the outcome. The new alert is returned even when delivery
// failed, so callers can surface its terminal status.
func (p *Processor) ResendAlert(ctx context.Context, detectionID uint) (*datastore.Alert, error) {
	if p.dispatcher == nil {
		return nil, errors.Newf("alert dispatch is not configured").
			Component("pipeline").
			Category(errors.CategoryState).
			Build()
	}

	dispatched, err := p.dispatcher.Resend(ctx, detectionID)
	if dispatched != nil && p.hub != nil {
		p.hub.Publish(hub.EventAlert, map[string]any{
			"alert_id":     dispatched.ID,
			"detection_id": detectionID,
			"status":       dispatched.Status,
		})
	}
	return dispatched, err
}

// AnalyzeBatch runs every clip of a batch, collecting results and per-clip
// failures independently.
func (p *Processor) AnalyzeBatch(ctx context.Context, reqs []AnalyzeRequest) *BatchResult {
	batch := &BatchResult{Results: make([]AnalysisResult, 0, len(reqs))}
	for i := range reqs {
		result, err := p.Analyze(ctx, reqs[i])
		if err != nil {
			batch.Errors = append(batch.Errors, BatchError{
				Index: i,
				Name:  reqs[i].Source.Name(),
				Error: err.Error(),
			})
			continue
		}
		batch.Results = append(batch.Results, *result)
	}
	return batch
}

// resolvePosition fills detection coordinates: the request wins, then the
// hydrophone's registered position, otherwise none.
func (p *Processor) resolvePosition(detection *datastore.Detection, req AnalyzeRequest) {
	if req.Latitude != nil || req.Longitude != nil {
		detection.Latitude = req.Latitude
		detection.Longitude = req.Longitude
		return
	}
	if req.HydrophoneID == nil {
		return
	}
	hydrophone, err := p.store.GetHydrophone(*req.HydrophoneID)
	if err != nil {
		p.logger.Warn("hydrophone lookup failed",
			"hydrophone_id", *req.HydrophoneID,
			"error", err)
		return
	}
	detection.Latitude = hydrophone.Latitude
	detection.Longitude = hydrophone.Longitude
}

// persistClip stores the clip under the configured clip directory so the
// original audio can be fetched later. An empty clip path disables
// persistence.
func (p *Processor) persistClip(src hydroaudio.AudioSource, format hydroaudio.Format) (string, error) {
	dir := p.settings.Audio.ClipPath
	if dir == "" {
		return src.Path(), nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.New(err).
			Component("pipeline").
			Category(errors.CategoryFileIO).
			FileContext(dir, 0).
			Build()
	}

	name := fmt.Sprintf("%s_%s.%s",
		time.Now().UTC().Format("20060102T150405Z"),
		uuid.New().String()[:8],
		format)
	dest := filepath.Join(dir, name)

	var data []byte
	if src.InMemory() {
		data = src.Data()
	} else {
		read, err := os.ReadFile(src.Path())
		if err != nil {
			return "", errors.New(err).
				Component("pipeline").
				Category(errors.CategoryFileIO).
				FileContext(src.Path(), 0).
				Build()
		}
		data = read
	}

	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", errors.New(err).
			Component("pipeline").
			Category(errors.CategoryFileIO).
			FileContext(dest, int64(len(data))).
			Build()
	}
	return dest, nil
}

// peekHeader returns the first bytes of the clip for magic-number checks.
// Failures fall back to extension-only detection.
func peekHeader(src hydroaudio.AudioSource) []byte {
	if src.InMemory() {
		data := src.Data()
		if len(data) > 4 {
			return data[:4]
		}
		return data
	}

	f, err := os.Open(src.Path())
	if err != nil {
		return nil
	}
	defer f.Close()

	header := make([]byte, 4)
	n, err := f.Read(header)
	if err != nil {
		return nil
	}
	return header[:n]
}
