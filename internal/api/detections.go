package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/echoguard/echoguard-go/internal/datastore"
	"github.com/echoguard/echoguard-go/internal/errors"
)

const defaultPageLimit = 50

// DetectionsPage is the paged list response for detections.
type DetectionsPage struct {
	Detections []datastore.Detection `json:"detections"`
	Total      int64                 `json:"total"`
	Limit      int                   `json:"limit"`
	Offset     int                   `json:"offset"`
}

// GetDetections lists detections with optional event_type and threat
// filters plus limit/offset paging. Results are briefly cached.
func (c *Controller) GetDetections(ctx echo.Context) error {
	query := datastore.DetectionQuery{Limit: defaultPageLimit}

	query.EventType = ctx.QueryParam("event_type")
	if raw := ctx.QueryParam("threat"); raw != "" {
		threat, err := strconv.ParseBool(raw)
		if err != nil {
			return c.HandleError(ctx, err, "invalid threat filter", http.StatusBadRequest)
		}
		query.IsThreat = &threat
	}
	if raw := ctx.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 1000 {
			return c.HandleError(ctx, err, "invalid limit", http.StatusBadRequest)
		}
		query.Limit = limit
	}
	if raw := ctx.QueryParam("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return c.HandleError(ctx, err, "invalid offset", http.StatusBadRequest)
		}
		query.Offset = offset
	}

	cacheKey := fmt.Sprintf("detections:%s:%v:%d:%d",
		query.EventType, query.IsThreat, query.Limit, query.Offset)
	if cached, found := c.detectionCache.Get(cacheKey); found {
		return ctx.JSON(http.StatusOK, cached)
	}

	detections, err := c.DS.GetDetections(query)
	if err != nil {
		return c.HandleError(ctx, err, "failed to list detections", http.StatusInternalServerError)
	}
	total, err := c.DS.CountDetections(query)
	if err != nil {
		return c.HandleError(ctx, err, "failed to count detections", http.StatusInternalServerError)
	}

	page := DetectionsPage{
		Detections: detections,
		Total:      total,
		Limit:      query.Limit,
		Offset:     query.Offset,
	}
	c.detectionCache.SetDefault(cacheKey, page)
	return ctx.JSON(http.StatusOK, page)
}

func (c *Controller) detectionFromParam(ctx echo.Context) (*datastore.Detection, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		return nil, validationError(err, "id")
	}
	detection, err := c.DS.GetDetection(uint(id))
	if err != nil {
		return nil, err
	}
	return &detection, nil
}

// GetDetection returns a single detection by ID.
func (c *Controller) GetDetection(ctx echo.Context) error {
	detection, err := c.detectionFromParam(ctx)
	if err != nil {
		return c.detectionError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, detection)
}

// SetDetectionProcessed toggles the reviewed flag on a detection.
//
// Body: {"processed": true}
func (c *Controller) SetDetectionProcessed(ctx echo.Context) error {
	detection, err := c.detectionFromParam(ctx)
	if err != nil {
		return c.detectionError(ctx, err)
	}

	var body struct {
		Processed bool `json:"processed"`
	}
	if err := ctx.Bind(&body); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}

	if err := c.DS.SetDetectionProcessed(detection.ID, body.Processed); err != nil {
		return c.detectionError(ctx, err)
	}
	detection.Processed = body.Processed
	c.detectionCache.Flush()
	return ctx.JSON(http.StatusOK, detection)
}

// GetDetectionAudio serves the persisted clip for a detection.
func (c *Controller) GetDetectionAudio(ctx echo.Context) error {
	detection, err := c.detectionFromParam(ctx)
	if err != nil {
		return c.detectionError(ctx, err)
	}
	if detection.AudioFilePath == "" {
		return c.HandleError(ctx, nil, "no audio stored for detection", http.StatusNotFound)
	}
	return ctx.Attachment(detection.AudioFilePath, fmt.Sprintf("detection_%d%s",
		detection.ID, fileExt(detection.AudioFilePath)))
}

// GetDetectionAlerts lists every alert dispatched for a detection.
func (c *Controller) GetDetectionAlerts(ctx echo.Context) error {
	detection, err := c.detectionFromParam(ctx)
	if err != nil {
		return c.detectionError(ctx, err)
	}
	alerts, err := c.DS.GetAlertsForDetection(detection.ID)
	if err != nil {
		return c.HandleError(ctx, err, "failed to list alerts", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{"alerts": alerts})
}

// ResendAlert dispatches a fresh alert for a threat detection.
func (c *Controller) ResendAlert(ctx echo.Context) error {
	detection, err := c.detectionFromParam(ctx)
	if err != nil {
		return c.detectionError(ctx, err)
	}
	if !detection.IsThreat {
		return c.HandleError(ctx, nil, "detection is not a threat", http.StatusConflict)
	}

	dispatched, err := c.Processor.ResendAlert(ctx.Request().Context(), detection.ID)
	if err != nil && dispatched == nil {
		return c.HandleError(ctx, err, "alert dispatch failed", http.StatusInternalServerError)
	}
	// A failed delivery still created an alert row worth returning.
	return ctx.JSON(http.StatusCreated, dispatched)
}

func (c *Controller) detectionError(ctx echo.Context, err error) error {
	switch {
	case errors.IsNotFound(err):
		return c.HandleError(ctx, err, "detection not found", http.StatusNotFound)
	case errors.IsCategory(err, errors.CategoryValidation):
		return c.HandleError(ctx, err, "invalid detection id", http.StatusBadRequest)
	default:
		return c.HandleError(ctx, err, "detection lookup failed", http.StatusInternalServerError)
	}
}

func fileExt(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/' && path[i] != '\\'; i-- {
		if path[i] == '.' {
			return path[i:]
		}
	}
	return ""
}
