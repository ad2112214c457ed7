// model.go defines the persisted data model: hydrophones, detections and
// alerts.
package datastore

import "time"

// Hydrophone represents a deployed hydrophone sensor. The detection
// pipeline only ever reads hydrophones; they are managed externally.
type Hydrophone struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	Depth     *float64  `json:"depth"` // meters
	Status    string    `gorm:"default:active" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Detection represents one classified acoustic event. Immutable after
// creation except for the Processed flag set by downstream consumers.
type Detection struct {
	ID              uint               `gorm:"primaryKey" json:"id"`
	HydrophoneID    *uint              `gorm:"index" json:"hydrophone_id"`
	EventType       string             `gorm:"index:idx_detections_event_type;not null" json:"event_type"`
	Confidence      float64            `gorm:"not null" json:"confidence"`
	Timestamp       time.Time          `gorm:"index:idx_detections_timestamp" json:"timestamp"`
	AudioFilePath   string             `json:"audio_file_path,omitempty"`
	DurationSeconds float64            `json:"duration_seconds,omitempty"`
	IsThreat        bool               `gorm:"index:idx_detections_is_threat" json:"is_threat"`
	Latitude        *float64           `json:"latitude"`
	Longitude       *float64           `json:"longitude"`
	Probabilities   map[string]float64 `gorm:"serializer:json" json:"probabilities,omitempty"`
	Processed       bool               `json:"processed"`

	Hydrophone *Hydrophone `gorm:"foreignKey:HydrophoneID" json:"-"`
}

// Alert status values. The status forms a one-way state machine:
// pending -> sent | failed, with no transition out of a terminal state.
const (
	AlertStatusPending = "pending"
	AlertStatusSent    = "sent"
	AlertStatusFailed  = "failed"
)

// AlertTypeWebhook is the only delivery channel currently dispatched.
const AlertTypeWebhook = "webhook"

// Alert represents one notification attempt for a threat detection.
// Re-dispatching creates a new Alert rather than mutating a terminal one,
// preserving the audit history.
type Alert struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	DetectionID uint       `gorm:"index;not null" json:"detection_id"`
	AlertType   string     `gorm:"not null" json:"alert_type"`
	Status      string     `gorm:"default:pending" json:"status"`
	Message     string     `gorm:"type:text" json:"message"`
	SentAt      *time.Time `json:"sent_at"`
	CreatedAt   time.Time  `json:"created_at"`

	Detection *Detection `gorm:"foreignKey:DetectionID" json:"-"`
}

// Terminal reports whether the alert status permits no further transition.
func (a *Alert) Terminal() bool {
	return a.Status == AlertStatusSent || a.Status == AlertStatusFailed
}
