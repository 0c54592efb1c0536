// Package tracker is the HTTP client for the remote incident-tracking
// service: incident creation, multipart evidence upload, and the
// detection-status command flag.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/mikeyg42/sentry/internal/evidence"
)

// IncidentPayload is the body of POST /incidents/.
type IncidentPayload struct {
	Device      string `json:"device"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    int    `json:"severity"`
	Verified    bool   `json:"verified"`
	Timestamp   string `json:"timestamp"`
	Location    string `json:"location"`
	Zone        string `json:"zone"`
}

// incidentResponse is the created record; only the id matters to the agent.
type incidentResponse struct {
	ID int `json:"id"`
}

// statusResponse is the body of GET /detection-status/.
type statusResponse struct {
	Status string `json:"status"`
}

// Client talks to the tracker. All methods treat non-2xx responses as
// errors; callers decide whether that is fatal (it never is, per the error
// policy: tracker failures are warnings).
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *zap.SugaredLogger
}

// NewClient creates a tracker client with a bounded request timeout.
func NewClient(baseURL string, logger *zap.SugaredLogger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// Probe checks connectivity at startup, retrying with exponential backoff
// for up to maxWait. Failure is reported to the caller but the agent runs
// regardless; detection does not depend on the tracker.
func (c *Client) Probe(ctx context.Context, maxWait time.Duration) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxWait

	return backoff.Retry(func() error {
		_, err := c.DetectionStatus(ctx)
		return err
	}, backoff.WithContext(bo, ctx))
}

// CreateIncident submits an incident and returns the remote id.
func (c *Client) CreateIncident(ctx context.Context, p IncidentPayload) (int, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("encode incident: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/incidents/", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("submit incident: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("submit incident: unexpected status %d", resp.StatusCode)
	}

	var created incidentResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, fmt.Errorf("decode incident response: %w", err)
	}
	return created.ID, nil
}

// UploadEvidence forwards one evidence file as a multipart POST /evidences/
// with fields incident, evidence_type, timestamp and the file itself.
func (c *Client) UploadEvidence(ctx context.Context, incidentID int, kind evidence.Kind, timestamp time.Time, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open evidence file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("incident", strconv.Itoa(incidentID)); err != nil {
		return err
	}
	if err := w.WriteField("evidence_type", string(kind)); err != nil {
		return err
	}
	if err := w.WriteField("timestamp", timestamp.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read evidence file: %w", err)
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/evidences/", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("upload evidence: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload evidence: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// DetectionStatus fetches the remote start/stop flag.
func (c *Client) DetectionStatus(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/detection-status/", nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch detection status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch detection status: unexpected status %d", resp.StatusCode)
	}

	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return "", fmt.Errorf("decode detection status: %w", err)
	}
	return s.Status, nil
}
