package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/echoguard/echoguard-go/internal/alert"
	"github.com/echoguard/echoguard-go/internal/classifier"
	"github.com/echoguard/echoguard-go/internal/conf"
	"github.com/echoguard/echoguard-go/internal/datastore"
	"github.com/echoguard/echoguard-go/internal/pipeline"
)

// biasedScorer always favors one label index.
type biasedScorer struct {
	index int
}

func (s biasedScorer) Score(vector []float32) ([]float32, error) {
	scores := make([]float32, classifier.NumLabels())
	scores[s.index] = 5.0
	return scores, nil
}

type testEnv struct {
	controller *Controller
	store      datastore.Interface
	echo       *echo.Echo
}

func newTestEnv(t *testing.T, scorerLabel string) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&datastore.Hydrophone{}, &datastore.Detection{}, &datastore.Alert{}))
	store := &datastore.DataStore{DB: db}

	settings := &conf.Settings{}
	settings.Audio.SampleRate = 22050
	settings.Audio.ClipDuration = 5.0
	settings.Audio.ClipPath = t.TempDir()
	settings.Alerts.Enabled = true
	settings.Alerts.Timeout = 5 * time.Second

	index := -1
	for i, label := range classifier.Labels() {
		if label == scorerLabel {
			index = i
		}
	}
	require.GreaterOrEqual(t, index, 0)

	cls := classifier.NewWithScorer(biasedScorer{index: index}, classifier.DefaultThreatPolicy())
	dispatcher := alert.NewDispatcher(&settings.Alerts, store, nil)
	proc := pipeline.New(settings, cls, store, dispatcher, nil, nil)

	e := echo.New()
	controller := New(e, store, settings, proc, nil, nil)
	return &testEnv{controller: controller, store: store, echo: e}
}

func wavClipBytes(t *testing.T, samples int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	encoder := wav.NewEncoder(f, 22050, 16, 1, 1)
	data := make([]int, samples)
	for i := range data {
		data[i] = int(6000 * (float64(i%200)/100 - 1))
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 22050},
		Data:           data,
		SourceBitDepth: 16,
	}
	require.NoError(t, encoder.Write(buf))
	require.NoError(t, encoder.Close())
	require.NoError(t, f.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return raw
}

func multipartUpload(t *testing.T, field, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func doRequest(env *testEnv, method, target, contentType string, body *bytes.Buffer) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeEndpoint(t *testing.T) {
	env := newTestEnv(t, classifier.LabelVessel)

	clip := wavClipBytes(t, 22050)
	body, contentType := multipartUpload(t, "file", "clip.wav", clip, nil)
	rec := doRequest(env, http.MethodPost, "/api/v1/analyze", contentType, body)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result pipeline.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, classifier.LabelVessel, result.Detection.EventType)
	assert.True(t, result.Detection.IsThreat)
	require.NotNil(t, result.Alert)
	assert.Equal(t, datastore.AlertStatusSent, result.Alert.Status)
}

func TestAnalyzeUnsupportedFormat(t *testing.T) {
	env := newTestEnv(t, classifier.LabelAmbient)

	body, contentType := multipartUpload(t, "file", "clip.mp3", []byte("ID3 garbage"), nil)
	rec := doRequest(env, http.MethodPost, "/api/v1/analyze", contentType, body)

	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.CorrelationID)
}

func TestAnalyzeMissingFile(t *testing.T) {
	env := newTestEnv(t, classifier.LabelAmbient)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("latitude", "1.0"))
	require.NoError(t, writer.Close())

	rec := doRequest(env, http.MethodPost, "/api/v1/analyze", writer.FormDataContentType(), body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeInvalidPosition(t *testing.T) {
	env := newTestEnv(t, classifier.LabelAmbient)

	clip := wavClipBytes(t, 2205)
	body, contentType := multipartUpload(t, "file", "clip.wav", clip,
		map[string]string{"latitude": "123.0"})
	rec := doRequest(env, http.MethodPost, "/api/v1/analyze", contentType, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeBatchEndpoint(t *testing.T) {
	env := newTestEnv(t, classifier.LabelAmbient)

	clip := wavClipBytes(t, 2205)
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, name := range []string{"a.wav", "b.wav"} {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(clip)
		require.NoError(t, err)
	}
	part, err := writer.CreateFormFile("files", "bad.ogg")
	require.NoError(t, err)
	_, err = part.Write([]byte("OggS"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rec := doRequest(env, http.MethodPost, "/api/v1/analyze/batch", writer.FormDataContentType(), body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var batch pipeline.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batch))
	assert.Len(t, batch.Results, 2)
	require.Len(t, batch.Errors, 1)
	assert.Equal(t, "bad.ogg", batch.Errors[0].Name)
}

func seedDetection(t *testing.T, env *testEnv, eventType string, isThreat bool) *datastore.Detection {
	t.Helper()
	detection := &datastore.Detection{
		EventType:       eventType,
		Confidence:      0.9,
		IsThreat:        isThreat,
		Timestamp:       time.Now().UTC(),
		DurationSeconds: 5.0,
	}
	require.NoError(t, env.store.SaveDetection(detection))
	return detection
}

func TestGetDetections(t *testing.T) {
	env := newTestEnv(t, classifier.LabelAmbient)
	seedDetection(t, env, "vessel", true)
	seedDetection(t, env, "ambient", false)

	rec := doRequest(env, http.MethodGet, "/api/v1/detections", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page DetectionsPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.EqualValues(t, 2, page.Total)
	assert.Len(t, page.Detections, 2)

	rec = doRequest(env, http.MethodGet, "/api/v1/detections?threat=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.EqualValues(t, 1, page.Total)

	rec = doRequest(env, http.MethodGet, "/api/v1/detections?threat=banana", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDetectionByID(t *testing.T) {
	env := newTestEnv(t, classifier.LabelAmbient)
	detection := seedDetection(t, env, "seismic", true)

	rec := doRequest(env, http.MethodGet, fmt.Sprintf("/api/v1/detections/%d", detection.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(env, http.MethodGet, "/api/v1/detections/99999", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(env, http.MethodGet, "/api/v1/detections/notanid", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetDetectionProcessed(t *testing.T) {
	env := newTestEnv(t, classifier.LabelAmbient)
	detection := seedDetection(t, env, "marine_life", false)

	body := bytes.NewBufferString(`{"processed":true}`)
	rec := doRequest(env, http.MethodPatch,
		fmt.Sprintf("/api/v1/detections/%d/processed", detection.ID),
		echo.MIMEApplicationJSON, body)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := env.store.GetDetection(detection.ID)
	require.NoError(t, err)
	assert.True(t, stored.Processed)
}

func TestResendAlertRejectsNonThreat(t *testing.T) {
	env := newTestEnv(t, classifier.LabelAmbient)
	detection := seedDetection(t, env, "ambient", false)

	rec := doRequest(env, http.MethodPost,
		fmt.Sprintf("/api/v1/detections/%d/alerts/resend", detection.ID), "", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestResendAlertCreatesAlert(t *testing.T) {
	env := newTestEnv(t, classifier.LabelAmbient)
	detection := seedDetection(t, env, "vessel", true)

	rec := doRequest(env, http.MethodPost,
		fmt.Sprintf("/api/v1/detections/%d/alerts/resend", detection.ID), "", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var dispatched datastore.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dispatched))
	assert.Equal(t, datastore.AlertStatusSent, dispatched.Status)

	rec = doRequest(env, http.MethodGet,
		fmt.Sprintf("/api/v1/detections/%d/alerts", detection.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHydrophoneEndpoints(t *testing.T) {
	env := newTestEnv(t, classifier.LabelAmbient)

	body := bytes.NewBufferString(`{"name":"MBARI-01","latitude":36.7,"longitude":-122.0,"depth":890}`)
	rec := doRequest(env, http.MethodPost, "/api/v1/hydrophones", echo.MIMEApplicationJSON, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created datastore.Hydrophone
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created.ID)

	rec = doRequest(env, http.MethodGet, fmt.Sprintf("/api/v1/hydrophones/%d", created.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(env, http.MethodGet, "/api/v1/hydrophones", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Name is required.
	body = bytes.NewBufferString(`{"latitude":1}`)
	rec = doRequest(env, http.MethodPost, "/api/v1/hydrophones", echo.MIMEApplicationJSON, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, classifier.LabelAmbient)

	rec := doRequest(env, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, true, health["model_loaded"])
}
