package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikeyg42/sentry/internal/alert"
	"github.com/mikeyg42/sentry/internal/metrics"
	"github.com/mikeyg42/sentry/internal/report"
)

type fakeCore struct {
	running   bool
	startErr  error
	submitErr error
	submitted []string
}

func (c *fakeCore) StartDetection() error {
	if c.startErr != nil {
		return c.startErr
	}
	c.running = true
	return nil
}

func (c *fakeCore) StopDetection() { c.running = false }

func (c *fakeCore) Status() alert.Status {
	return alert.Status{Running: c.running}
}

func (c *fakeCore) SubmitReport(incidentType, description string) error {
	if c.submitErr != nil {
		return c.submitErr
	}
	c.submitted = append(c.submitted, incidentType)
	return nil
}

func newTestServer(t *testing.T, core *fakeCore) (*Server, *alert.Log) {
	t.Helper()
	alerts := alert.NewLog(nil)
	incidents := report.NewLogStore(filepath.Join(t.TempDir(), "incidents.json"))
	s := NewServer(":0", core, alerts, alert.NewHub(zap.NewNop().Sugar()), incidents,
		metrics.New(), zap.NewNop().Sugar())
	return s, alerts
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestStartStop(t *testing.T) {
	core := &fakeCore{}
	s, _ := newTestServer(t, core)

	rec := doRequest(s, http.MethodPost, "/api/detection/start", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, core.running)

	rec = doRequest(s, http.MethodPost, "/api/detection/stop", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, core.running)
}

func TestStartConflict(t *testing.T) {
	core := &fakeCore{startErr: errors.New("camera not available")}
	s, _ := newTestServer(t, core)

	rec := doRequest(s, http.MethodPost, "/api/detection/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "camera not available", body["error"])
}

func TestStatus(t *testing.T) {
	s, _ := newTestServer(t, &fakeCore{running: true})

	rec := doRequest(s, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status alert.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Running)
}

func TestAlerts(t *testing.T) {
	s, alerts := newTestServer(t, &fakeCore{})
	alerts.Add("Detection system activated")
	alerts.Add("Motion detected")

	rec := doRequest(s, http.MethodGet, "/api/alerts?n=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Alerts []string `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Alerts, 1)
	assert.Contains(t, body.Alerts[0], "Motion detected")
}

func TestSubmitReport(t *testing.T) {
	core := &fakeCore{}
	s, _ := newTestServer(t, core)

	rec := doRequest(s, http.MethodPost, "/api/reports", `{"type":"Theft","description":"Bike missing"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"Theft"}, core.submitted)
}

func TestSubmitReportValidation(t *testing.T) {
	core := &fakeCore{submitErr: report.ErrMissingFields}
	s, _ := newTestServer(t, core)

	rec := doRequest(s, http.MethodPost, "/api/reports", `{"type":"","description":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitReportBadJSON(t *testing.T) {
	s, _ := newTestServer(t, &fakeCore{})

	rec := doRequest(s, http.MethodPost, "/api/reports", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, &fakeCore{})

	rec := doRequest(s, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sentry_detection_active")
}

func TestIncidents(t *testing.T) {
	s, _ := newTestServer(t, &fakeCore{})

	rec := doRequest(s, http.MethodGet, "/api/incidents", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Incidents []report.Incident `json:"incidents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Incidents)
}
