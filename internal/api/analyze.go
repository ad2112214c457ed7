package api

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/echoguard/echoguard-go/internal/errors"
	"github.com/echoguard/echoguard-go/internal/hydroaudio"
	"github.com/echoguard/echoguard-go/internal/pipeline"
)

// maxClipBytes bounds a single uploaded clip. 5 seconds of 32-bit stereo
// at 48 kHz is under 2 MiB, so this leaves generous headroom.
const maxClipBytes = 32 << 20

// Analyze accepts one uploaded clip and runs it through the pipeline.
//
// Form fields: file (required), hydrophone_id, latitude, longitude.
func (c *Controller) Analyze(ctx echo.Context) error {
	req, err := c.parseAnalyzeRequest(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid analyze request", http.StatusBadRequest)
	}

	result, err := c.Processor.Analyze(ctx.Request().Context(), *req)
	if err != nil {
		return c.analyzeError(ctx, err)
	}

	c.detectionCache.Flush()
	return ctx.JSON(http.StatusCreated, result)
}

// AnalyzeBatch accepts multiple clips under the "files" form field and runs
// each through the pipeline independently.
func (c *Controller) AnalyzeBatch(ctx echo.Context) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		return c.HandleError(ctx, err, "invalid multipart form", http.StatusBadRequest)
	}
	files := form.File["files"]
	if len(files) == 0 {
		return c.HandleError(ctx, nil, "no files provided", http.StatusBadRequest)
	}

	shared, err := c.parsePosition(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid analyze request", http.StatusBadRequest)
	}

	reqs := make([]pipeline.AnalyzeRequest, 0, len(files))
	for _, fh := range files {
		data, err := readUpload(fh)
		if err != nil {
			return c.HandleError(ctx, err, "failed to read upload", http.StatusBadRequest)
		}
		reqs = append(reqs, pipeline.AnalyzeRequest{
			Source:       hydroaudio.BytesSource(fh.Filename, data),
			HydrophoneID: shared.HydrophoneID,
			Latitude:     shared.Latitude,
			Longitude:    shared.Longitude,
		})
	}

	batch := c.Processor.AnalyzeBatch(ctx.Request().Context(), reqs)
	c.detectionCache.Flush()

	status := http.StatusCreated
	if len(batch.Results) == 0 && len(batch.Errors) > 0 {
		status = http.StatusUnprocessableEntity
	}
	return ctx.JSON(status, batch)
}

func (c *Controller) parseAnalyzeRequest(ctx echo.Context) (*pipeline.AnalyzeRequest, error) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return nil, errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Context("field", "file").
			Build()
	}
	data, err := readUpload(fh)
	if err != nil {
		return nil, err
	}

	req, err := c.parsePosition(ctx)
	if err != nil {
		return nil, err
	}
	req.Source = hydroaudio.BytesSource(fh.Filename, data)
	return req, nil
}

func (c *Controller) parsePosition(ctx echo.Context) (*pipeline.AnalyzeRequest, error) {
	req := &pipeline.AnalyzeRequest{}

	if raw := ctx.FormValue("hydrophone_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return nil, validationError(err, "hydrophone_id")
		}
		hid := uint(id)
		req.HydrophoneID = &hid
	}
	if raw := ctx.FormValue("latitude"); raw != "" {
		lat, err := strconv.ParseFloat(raw, 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, validationError(err, "latitude")
		}
		req.Latitude = &lat
	}
	if raw := ctx.FormValue("longitude"); raw != "" {
		lon, err := strconv.ParseFloat(raw, 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, validationError(err, "longitude")
		}
		req.Longitude = &lon
	}
	return req, nil
}

func validationError(err error, field string) error {
	builder := errors.Newf("invalid value for %s", field)
	if err != nil {
		builder = errors.New(err)
	}
	return builder.
		Component("api").
		Category(errors.CategoryValidation).
		Context("field", field).
		Build()
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > maxClipBytes {
		return nil, errors.Newf("uploaded clip %q exceeds size limit", fh.Filename).
			Component("api").
			Category(errors.CategoryValidation).
			FileContext(fh.Filename, fh.Size).
			Build()
	}

	f, err := fh.Open()
	if err != nil {
		return nil, errors.New(err).
			Component("api").
			Category(errors.CategoryFileIO).
			FileContext(fh.Filename, fh.Size).
			Build()
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxClipBytes+1))
	if err != nil {
		return nil, errors.New(err).
			Component("api").
			Category(errors.CategoryFileIO).
			FileContext(fh.Filename, fh.Size).
			Build()
	}
	if len(data) > maxClipBytes {
		return nil, errors.Newf("uploaded clip %q exceeds size limit", fh.Filename).
			Component("api").
			Category(errors.CategoryValidation).
			FileContext(fh.Filename, int64(len(data))).
			Build()
	}
	return data, nil
}

// analyzeError maps pipeline error categories to HTTP statuses.
func (c *Controller) analyzeError(ctx echo.Context, err error) error {
	switch {
	case errors.IsCategory(err, errors.CategoryUnsupportedFormat):
		return c.HandleError(ctx, err, "unsupported audio format", http.StatusUnsupportedMediaType)
	case errors.IsCategory(err, errors.CategoryAudioDecode):
		return c.HandleError(ctx, err, "failed to decode audio clip", http.StatusUnprocessableEntity)
	case errors.IsCategory(err, errors.CategoryModelUnavailable):
		return c.HandleError(ctx, err, "classification model unavailable", http.StatusServiceUnavailable)
	case errors.IsCategory(err, errors.CategoryValidation):
		return c.HandleError(ctx, err, "invalid analyze request", http.StatusBadRequest)
	default:
		return c.HandleError(ctx, err, "analysis failed", http.StatusInternalServerError)
	}
}
