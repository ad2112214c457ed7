// Package api exposes the REST and websocket surface of the service.
package api

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/echoguard/echoguard-go/internal/conf"
	"github.com/echoguard/echoguard-go/internal/datastore"
	"github.com/echoguard/echoguard-go/internal/hub"
	"github.com/echoguard/echoguard-go/internal/logging"
	"github.com/echoguard/echoguard-go/internal/observability"
	"github.com/echoguard/echoguard-go/internal/pipeline"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo      *echo.Echo
	Group     *echo.Group
	DS        datastore.Interface
	Settings  *conf.Settings
	Processor *pipeline.Processor
	Hub       *hub.Hub

	detectionCache *cache.Cache
	metrics        *observability.Metrics
	logger         *slog.Logger
	startTime      time.Time
}

// New creates the API controller and registers all routes on the given
// echo instance. Hub and metrics may be nil.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	proc *pipeline.Processor, h *hub.Hub, m *observability.Metrics) *Controller {

	c := &Controller{
		Echo:           e,
		DS:             ds,
		Settings:       settings,
		Processor:      proc,
		Hub:            h,
		detectionCache: cache.New(5*time.Minute, 10*time.Minute),
		metrics:        m,
		logger:         logging.ForService("api"),
		startTime:      time.Now(),
	}

	c.Group = e.Group("/api/v1")
	c.Group.Use(middleware.Recover())
	c.Group.Use(middleware.CORS())
	c.Group.Use(c.loggingMiddleware())

	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	// Analysis
	c.Group.POST("/analyze", c.Analyze)
	c.Group.POST("/analyze/batch", c.AnalyzeBatch)

	// Detections
	c.Group.GET("/detections", c.GetDetections)
	c.Group.GET("/detections/:id", c.GetDetection)
	c.Group.PATCH("/detections/:id/processed", c.SetDetectionProcessed)
	c.Group.GET("/detections/:id/audio", c.GetDetectionAudio)
	c.Group.GET("/detections/:id/alerts", c.GetDetectionAlerts)
	c.Group.POST("/detections/:id/alerts/resend", c.ResendAlert)

	// Hydrophones
	c.Group.GET("/hydrophones", c.GetHydrophones)
	c.Group.GET("/hydrophones/:id", c.GetHydrophone)
	c.Group.POST("/hydrophones", c.CreateHydrophone)

	// System
	c.Group.GET("/health", c.Health)
	if c.Hub != nil {
		c.Echo.GET("/ws", c.Hub.HandleWS)
		c.Group.GET("/ws/status", c.WSStatus)
	}
	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// loggingMiddleware logs every API request with timing and outcome.
func (c *Controller) loggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			status := ctx.Response().Status
			if httpErr, ok := err.(*echo.HTTPError); ok {
				status = httpErr.Code
			}

			c.logger.Info("request",
				"method", ctx.Request().Method,
				"path", ctx.Request().URL.Path,
				"status", status,
				"ip", ctx.RealIP(),
				"duration_ms", time.Since(start).Milliseconds())
			return err
		}
	}
}

// ErrorResponse is the JSON body returned for any failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response with a correlation ID
// for log lookup.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError constructs and returns an appropriate error response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)
	c.logger.Error("request failed",
		"correlation_id", resp.CorrelationID,
		"message", message,
		"error", resp.Error,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP())
	return ctx.JSON(code, resp)
}

// Health reports service liveness and component status.
func (c *Controller) Health(ctx echo.Context) error {
	dbStatus := "ok"
	if _, err := c.DS.CountDetections(datastore.DetectionQuery{}); err != nil {
		dbStatus = "error"
	}

	status := http.StatusOK
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
	}
	return ctx.JSON(status, map[string]any{
		"status":         dbStatus,
		"model_loaded":   c.Processor.ModelLoaded(),
		"uptime_seconds": int(time.Since(c.startTime).Seconds()),
	})
}

// WSStatus reports the broadcast hub's subscriber count.
func (c *Controller) WSStatus(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"subscribers": c.Hub.SubscriberCount(),
	})
}
