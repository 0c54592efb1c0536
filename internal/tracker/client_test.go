package tracker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikeyg42/sentry/internal/evidence"
)

func TestCreateIncident(t *testing.T) {
	var got IncidentPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/incidents/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": 17})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zap.NewNop().Sugar())
	id, err := c.CreateIncident(context.Background(), IncidentPayload{
		Device:      "station-01",
		Type:        "Motion detected",
		Description: "Frame difference exceeded threshold (12000)",
		Severity:    2,
		Timestamp:   "2026-03-01T12:00:00Z",
		Location:    "Main Entrance",
		Zone:        "Zone A",
	})
	require.NoError(t, err)
	assert.Equal(t, 17, id)
	assert.Equal(t, "station-01", got.Device)
	assert.Equal(t, "Motion detected", got.Type)
	assert.Equal(t, 2, got.Severity)
	assert.False(t, got.Verified)
}

func TestCreateIncidentNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zap.NewNop().Sugar())
	_, err := c.CreateIncident(context.Background(), IncidentPayload{Type: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestUploadEvidenceMultipart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "motion_20260301_120000_abcd1234.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg-bytes"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/evidences/", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "17", r.FormValue("incident"))
		assert.Equal(t, "IMAGE", r.FormValue("evidence_type"))
		assert.Equal(t, "2026-03-01T12:00:05Z", r.FormValue("timestamp"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "motion_20260301_120000_abcd1234.jpg", hdr.Filename)
		body, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "jpeg-bytes", string(body))

		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zap.NewNop().Sugar())
	ts := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	err := c.UploadEvidence(context.Background(), 17, evidence.KindImage, ts, path)
	require.NoError(t, err)
}

func TestUploadEvidenceMissingFile(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", zap.NewNop().Sugar())
	err := c.UploadEvidence(context.Background(), 1, evidence.KindImage, time.Now(), "does/not/exist.jpg")
	require.Error(t, err)
}

func TestDetectionStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/detection-status/", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"status": "start"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zap.NewNop().Sugar())
	status, err := c.DetectionStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "start", status)
}

func TestBaseURLTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/detection-status/", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"status": "stop"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", zap.NewNop().Sugar())
	status, err := c.DetectionStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stop", status)
}
