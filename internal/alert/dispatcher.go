// Package alert dispatches webhook notifications for threat detections and
// records their delivery outcome.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/echoguard/echoguard-go/internal/conf"
	"github.com/echoguard/echoguard-go/internal/datastore"
	"github.com/echoguard/echoguard-go/internal/errors"
	"github.com/echoguard/echoguard-go/internal/logging"
	"github.com/echoguard/echoguard-go/internal/observability/metrics"
)

// WebhookPayload is the JSON body posted to the configured webhook.
type WebhookPayload struct {
	DetectionID uint      `json:"detection_id"`
	EventType   string    `json:"event_type"`
	Confidence  float64   `json:"confidence"`
	Timestamp   time.Time `json:"timestamp"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Message     string    `json:"message"`
}

// Dispatcher delivers alerts for threat detections. Each delivery attempt is
// persisted as its own Alert row before any network activity happens.
type Dispatcher struct {
	settings *conf.AlertSettings
	store    datastore.Interface
	client   *http.Client
	metrics  *metrics.RealtimeMetrics
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher bound to the given store and settings.
// Metrics may be nil.
func NewDispatcher(settings *conf.AlertSettings, store datastore.Interface, m *metrics.RealtimeMetrics) *Dispatcher {
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		settings: settings,
		store:    store,
		client:   &http.Client{Timeout: timeout},
		metrics:  m,
		logger:   logging.ForService("alert"),
	}
}

// DispatchForDetection creates an alert for the detection and attempts
// delivery. The returned alert reflects its terminal status. Delivery
// failures are reported through the error alongside the persisted alert.
func (d *Dispatcher) DispatchForDetection(ctx context.Context, detection *datastore.Detection) (*datastore.Alert, error) {
	alert := &datastore.Alert{
		DetectionID: detection.ID,
		AlertType:   datastore.AlertTypeWebhook,
		Status:      datastore.AlertStatusPending,
		Message: fmt.Sprintf("%s detected with confidence %.2f",
			detection.EventType, detection.Confidence),
	}
	if err := d.store.SaveAlert(alert); err != nil {
		return nil, err
	}
	return alert, d.deliver(ctx, alert, detection)
}

// Resend creates a fresh alert for an existing detection and attempts
// delivery again. Earlier alerts keep their terminal status.
func (d *Dispatcher) Resend(ctx context.Context, detectionID uint) (*datastore.Alert, error) {
	detection, err := d.store.GetDetection(detectionID)
	if err != nil {
		return nil, err
	}
	return d.DispatchForDetection(ctx, &detection)
}

// deliver performs the webhook POST and transitions the alert to a terminal
// status. With no webhook configured there is nothing to deliver, so the
// alert is marked sent immediately.
func (d *Dispatcher) deliver(ctx context.Context, alert *datastore.Alert, detection *datastore.Detection) error {
	if d.settings.WebhookURL == "" {
		now := time.Now().UTC()
		if err := d.store.UpdateAlertStatus(alert.ID, datastore.AlertStatusSent, &now); err != nil {
			return err
		}
		alert.Status = datastore.AlertStatusSent
		alert.SentAt = &now
		d.recordOutcome(datastore.AlertStatusSent, 0)
		return nil
	}

	payload := WebhookPayload{
		DetectionID: detection.ID,
		EventType:   detection.EventType,
		Confidence:  detection.Confidence,
		Timestamp:   detection.Timestamp,
		Latitude:    detection.Latitude,
		Longitude:   detection.Longitude,
		Message:     alert.Message,
	}

	start := time.Now()
	deliveryErr := d.post(ctx, payload)
	elapsed := time.Since(start)

	if deliveryErr != nil {
		if err := d.store.UpdateAlertStatus(alert.ID, datastore.AlertStatusFailed, nil); err != nil {
			return err
		}
		alert.Status = datastore.AlertStatusFailed
		d.recordOutcome(datastore.AlertStatusFailed, elapsed)
		d.logger.Error("webhook delivery failed",
			"alert_id", alert.ID,
			"detection_id", detection.ID,
			"error", deliveryErr)
		return deliveryErr
	}

	now := time.Now().UTC()
	if err := d.store.UpdateAlertStatus(alert.ID, datastore.AlertStatusSent, &now); err != nil {
		return err
	}
	alert.Status = datastore.AlertStatusSent
	alert.SentAt = &now
	d.recordOutcome(datastore.AlertStatusSent, elapsed)
	d.logger.Info("alert delivered",
		"alert_id", alert.ID,
		"detection_id", detection.ID,
		"event_type", detection.EventType,
		"duration_ms", elapsed.Milliseconds())
	return nil
}

func (d *Dispatcher) post(ctx context.Context, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.New(err).
			Component("alert").
			Category(errors.CategoryAlertDelivery).
			Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.settings.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return errors.New(err).
			Component("alert").
			Category(errors.CategoryAlertDelivery).
			Context("url", d.settings.WebhookURL).
			Build()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return errors.New(err).
			Component("alert").
			Category(errors.CategoryAlertDelivery).
			Context("url", d.settings.WebhookURL).
			Timing("webhook-post", d.client.Timeout).
			Build()
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf("webhook returned status %d", resp.StatusCode).
			Component("alert").
			Category(errors.CategoryAlertDelivery).
			Context("url", d.settings.WebhookURL).
			Context("status_code", resp.StatusCode).
			Build()
	}
	return nil
}

func (d *Dispatcher) recordOutcome(status string, elapsed time.Duration) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordAlert(status, elapsed.Seconds())
}
