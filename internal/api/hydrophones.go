package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/echoguard/echoguard-go/internal/datastore"
	"github.com/echoguard/echoguard-go/internal/errors"
)

// GetHydrophones lists all registered hydrophones.
func (c *Controller) GetHydrophones(ctx echo.Context) error {
	hydrophones, err := c.DS.GetHydrophones()
	if err != nil {
		return c.HandleError(ctx, err, "failed to list hydrophones", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{"hydrophones": hydrophones})
}

// GetHydrophone returns a single hydrophone by ID.
func (c *Controller) GetHydrophone(ctx echo.Context) error {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		return c.HandleError(ctx, err, "invalid hydrophone id", http.StatusBadRequest)
	}

	hydrophone, err := c.DS.GetHydrophone(uint(id))
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "hydrophone not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "hydrophone lookup failed", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, hydrophone)
}

// CreateHydrophone registers a new hydrophone.
func (c *Controller) CreateHydrophone(ctx echo.Context) error {
	var body struct {
		Name      string   `json:"name"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Depth     *float64 `json:"depth"`
		Status    string   `json:"status"`
	}
	if err := ctx.Bind(&body); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}
	if body.Name == "" {
		return c.HandleError(ctx, nil, "name is required", http.StatusBadRequest)
	}
	if body.Latitude != nil && (*body.Latitude < -90 || *body.Latitude > 90) {
		return c.HandleError(ctx, nil, "latitude out of range", http.StatusBadRequest)
	}
	if body.Longitude != nil && (*body.Longitude < -180 || *body.Longitude > 180) {
		return c.HandleError(ctx, nil, "longitude out of range", http.StatusBadRequest)
	}

	hydrophone := &datastore.Hydrophone{
		Name:      body.Name,
		Latitude:  body.Latitude,
		Longitude: body.Longitude,
		Depth:     body.Depth,
		Status:    body.Status,
	}
	if err := c.DS.SaveHydrophone(hydrophone); err != nil {
		return c.HandleError(ctx, err, "failed to save hydrophone", http.StatusConflict)
	}
	return ctx.JSON(http.StatusCreated, hydrophone)
}
