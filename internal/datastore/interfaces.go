// interfaces.go defines the persistence boundary and its GORM-backed
// implementation shared by the SQLite and MySQL stores.
package datastore

import (
	"time"

	"gorm.io/gorm"

	"github.com/echoguard/echoguard-go/internal/conf"
	"github.com/echoguard/echoguard-go/internal/errors"
)

// DetectionQuery narrows GetDetections results. Zero values mean "any".
type DetectionQuery struct {
	EventType string
	IsThreat  *bool
	Limit     int
	Offset    int
}

// Interface abstracts the underlying database implementation. Identity and
// creation timestamps are assigned here, not by callers.
type Interface interface {
	Open() error
	Close() error

	SaveDetection(detection *Detection) error
	GetDetection(id uint) (Detection, error)
	GetDetections(query DetectionQuery) ([]Detection, error)
	CountDetections(query DetectionQuery) (int64, error)
	SetDetectionProcessed(id uint, processed bool) error

	SaveAlert(alert *Alert) error
	GetAlert(id uint) (Alert, error)
	GetAlertsForDetection(detectionID uint) ([]Alert, error)
	UpdateAlertStatus(id uint, status string, sentAt *time.Time) error

	GetHydrophone(id uint) (Hydrophone, error)
	GetHydrophones() ([]Hydrophone, error)
	SaveHydrophone(hydrophone *Hydrophone) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// New creates a store instance based on the enabled output backend.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// performAutoMigration migrates the schema for all persisted entities.
func performAutoMigration(db *gorm.DB) error {
	if err := db.AutoMigrate(&Hydrophone{}, &Detection{}, &Alert{}); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto-migration").
			Build()
	}
	return nil
}

func dbError(err error, operation string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("operation", operation).
			Build()
	}
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}

// SaveDetection inserts a new detection, assigning its identity and, when
// unset, its creation timestamp.
func (ds *DataStore) SaveDetection(detection *Detection) error {
	if detection.Timestamp.IsZero() {
		detection.Timestamp = time.Now().UTC()
	}
	if err := ds.DB.Create(detection).Error; err != nil {
		return dbError(err, "save-detection")
	}
	return nil
}

// GetDetection retrieves a detection by its ID.
func (ds *DataStore) GetDetection(id uint) (Detection, error) {
	var detection Detection
	if err := ds.DB.First(&detection, id).Error; err != nil {
		return Detection{}, dbError(err, "get-detection")
	}
	return detection, nil
}

func applyDetectionQuery(tx *gorm.DB, query DetectionQuery) *gorm.DB {
	if query.EventType != "" {
		tx = tx.Where("event_type = ?", query.EventType)
	}
	if query.IsThreat != nil {
		tx = tx.Where("is_threat = ?", *query.IsThreat)
	}
	return tx
}

// GetDetections retrieves detections matching the query, newest first.
func (ds *DataStore) GetDetections(query DetectionQuery) ([]Detection, error) {
	tx := applyDetectionQuery(ds.DB.Model(&Detection{}), query).
		Order("timestamp DESC")
	if query.Limit > 0 {
		tx = tx.Limit(query.Limit)
	}
	if query.Offset > 0 {
		tx = tx.Offset(query.Offset)
	}

	var detections []Detection
	if err := tx.Find(&detections).Error; err != nil {
		return nil, dbError(err, "get-detections")
	}
	return detections, nil
}

// CountDetections returns the number of detections matching the query.
func (ds *DataStore) CountDetections(query DetectionQuery) (int64, error) {
	var count int64
	tx := applyDetectionQuery(ds.DB.Model(&Detection{}), query)
	if err := tx.Count(&count).Error; err != nil {
		return 0, dbError(err, "count-detections")
	}
	return count, nil
}

// SetDetectionProcessed updates the processed flag, the only mutable
// detection field.
func (ds *DataStore) SetDetectionProcessed(id uint, processed bool) error {
	result := ds.DB.Model(&Detection{}).Where("id = ?", id).Update("processed", processed)
	if result.Error != nil {
		return dbError(result.Error, "set-detection-processed")
	}
	if result.RowsAffected == 0 {
		return dbError(gorm.ErrRecordNotFound, "set-detection-processed")
	}
	return nil
}

// SaveAlert inserts a new alert, assigning its identity. Status defaults
// to pending when unset.
func (ds *DataStore) SaveAlert(alert *Alert) error {
	if alert.Status == "" {
		alert.Status = AlertStatusPending
	}
	if err := ds.DB.Create(alert).Error; err != nil {
		return dbError(err, "save-alert")
	}
	return nil
}

// GetAlert retrieves an alert by its ID.
func (ds *DataStore) GetAlert(id uint) (Alert, error) {
	var alert Alert
	if err := ds.DB.First(&alert, id).Error; err != nil {
		return Alert{}, dbError(err, "get-alert")
	}
	return alert, nil
}

// GetAlertsForDetection retrieves every alert dispatched for a detection,
// oldest first.
func (ds *DataStore) GetAlertsForDetection(detectionID uint) ([]Alert, error) {
	var alerts []Alert
	if err := ds.DB.Where("detection_id = ?", detectionID).
		Order("created_at ASC, id ASC").
		Find(&alerts).Error; err != nil {
		return nil, dbError(err, "get-alerts-for-detection")
	}
	return alerts, nil
}

// UpdateAlertStatus transitions an alert out of pending. It enforces the
// one-way state machine: only pending alerts transition, only to sent or
// failed, and sent_at is set iff the new status is sent.
func (ds *DataStore) UpdateAlertStatus(id uint, status string, sentAt *time.Time) error {
	if status != AlertStatusSent && status != AlertStatusFailed {
		return errors.Newf("invalid alert status transition target %q", status).
			Component("datastore").
			Category(errors.CategoryState).
			Build()
	}
	if (status == AlertStatusSent) != (sentAt != nil) {
		return errors.Newf("sent_at must be set exactly when status is sent").
			Component("datastore").
			Category(errors.CategoryState).
			Build()
	}

	result := ds.DB.Model(&Alert{}).
		Where("id = ? AND status = ?", id, AlertStatusPending).
		Updates(map[string]any{"status": status, "sent_at": sentAt})
	if result.Error != nil {
		return dbError(result.Error, "update-alert-status")
	}
	if result.RowsAffected == 0 {
		// Either the alert does not exist or it already reached a terminal
		// status. Distinguish the two for the caller.
		var alert Alert
		if err := ds.DB.First(&alert, id).Error; err != nil {
			return dbError(err, "update-alert-status")
		}
		return errors.Newf("alert %d is already %s", id, alert.Status).
			Component("datastore").
			Category(errors.CategoryState).
			Build()
	}
	return nil
}

// GetHydrophone retrieves a hydrophone by its ID.
func (ds *DataStore) GetHydrophone(id uint) (Hydrophone, error) {
	var hydrophone Hydrophone
	if err := ds.DB.First(&hydrophone, id).Error; err != nil {
		return Hydrophone{}, dbError(err, "get-hydrophone")
	}
	return hydrophone, nil
}

// GetHydrophones retrieves all hydrophones ordered by name.
func (ds *DataStore) GetHydrophones() ([]Hydrophone, error) {
	var hydrophones []Hydrophone
	if err := ds.DB.Order("name ASC").Find(&hydrophones).Error; err != nil {
		return nil, dbError(err, "get-hydrophones")
	}
	return hydrophones, nil
}

// SaveHydrophone inserts a new hydrophone.
func (ds *DataStore) SaveHydrophone(hydrophone *Hydrophone) error {
	if err := ds.DB.Create(hydrophone).Error; err != nil {
		return dbError(err, "save-hydrophone")
	}
	return nil
}
