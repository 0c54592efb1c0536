package report

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/sentry/internal/alert"
	"github.com/mikeyg42/sentry/internal/evidence"
	"github.com/mikeyg42/sentry/internal/metrics"
	"github.com/mikeyg42/sentry/internal/recording"
	"github.com/mikeyg42/sentry/internal/tracker"
)

// ErrMissingFields rejects manual reports with an empty type or
// description, before any state is touched.
var ErrMissingFields = errors.New("incident type and description are required")

// Submitter is the tracker operation the reporter depends on.
type Submitter interface {
	CreateIncident(ctx context.Context, p tracker.IncidentPayload) (int, error)
}

// Reporter turns triggers and manual submissions into incident records:
// remote submission, local log append, upload-budget reset, alerts, and
// (for auto-triggers) the recording episode.
type Reporter struct {
	store     *LogStore
	submitter Submitter
	budget    *evidence.Budget
	machine   *recording.Machine
	alerts    *alert.Log
	hub       *alert.Hub
	metrics   *metrics.Metrics
	logger    *zap.SugaredLogger

	deviceID string
	location string
	zone     string

	severity func(min, max int) int
	now      func() time.Time
	timeout  time.Duration
}

// NewReporter wires the reporter. submitter may be nil for a fully local
// station; hub may be nil when no UI is attached.
func NewReporter(store *LogStore, submitter Submitter, budget *evidence.Budget, machine *recording.Machine,
	alerts *alert.Log, hub *alert.Hub, m *metrics.Metrics, logger *zap.SugaredLogger,
	deviceID, location, zone string) *Reporter {
	return &Reporter{
		store:     store,
		submitter: submitter,
		budget:    budget,
		machine:   machine,
		alerts:    alerts,
		hub:       hub,
		metrics:   m,
		logger:    logger,
		deviceID:  deviceID,
		location:  location,
		zone:      zone,
		severity:  func(min, max int) int { return min + rand.Intn(max-min+1) },
		now:       time.Now,
		timeout:   15 * time.Second,
	}
}

// AutoReport handles a sensor-originated trigger. The remote submission,
// local record and recording episode are independent: a tracker failure
// clears the active incident (so no evidence uploads) but the local record
// is still written and the episode still starts.
func (r *Reporter) AutoReport(eventType, description string) {
	now := r.now()
	remoteID, err := r.submit(eventType, description, r.severity(1, 3), false, now)

	if err != nil {
		r.budget.Close()
		r.logger.Warnw("auto-report remote submission failed", "type", eventType, "error", err)
		r.metrics.TrackerErrors.Inc()
	} else if remoteID != nil {
		r.budget.Open(*remoteID)
	}

	r.appendLocal(eventType, description, remoteID, now, "auto")
	r.alerts.Addf("AUTO-REPORT: %s", eventType)
	if r.hub != nil {
		r.hub.Broadcast(alert.Message{Type: "flash"})
	}
	r.machine.Start()
}

// SubmitReport handles a manual, user-attested report. Validation happens
// before any state mutation; no recording episode is started. Returns nil
// when the local record was written, even if the tracker was unreachable.
func (r *Reporter) SubmitReport(incidentType, description string) error {
	if incidentType == "" || description == "" {
		return ErrMissingFields
	}

	now := r.now()
	remoteID, err := r.submit(incidentType, description, r.severity(3, 5), true, now)
	if err != nil {
		r.budget.Close()
		r.logger.Warnw("manual report remote submission failed", "type", incidentType, "error", err)
		r.metrics.TrackerErrors.Inc()
	} else if remoteID != nil {
		r.budget.Open(*remoteID)
	}

	r.appendLocal(incidentType, description, remoteID, now, "manual")
	r.alerts.Addf("MANUAL REPORT: %s", incidentType)
	return nil
}

// submit sends the incident payload to the tracker. Returns the remote id,
// or nil with no error when no tracker is configured.
func (r *Reporter) submit(incidentType, description string, severity int, verified bool, now time.Time) (*int, error) {
	if r.submitter == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	id, err := r.submitter.CreateIncident(ctx, tracker.IncidentPayload{
		Device:      r.deviceID,
		Type:        incidentType,
		Description: description,
		Severity:    severity,
		Verified:    verified,
		Timestamp:   now.UTC().Format(time.RFC3339),
		Location:    r.location,
		Zone:        r.zone,
	})
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (r *Reporter) appendLocal(incidentType, description string, remoteID *int, now time.Time, origin string) {
	inc := Incident{
		Type:        incidentType,
		Description: description,
		Timestamp:   now.Format("2006-01-02 15:04:05"),
		RemoteID:    remoteID,
	}
	localID, err := r.store.Append(inc)
	if err != nil {
		// The in-memory record survives; only the file write failed.
		r.alerts.Addf("Failed to save incidents: %v", err)
		r.logger.Warnw("incident log save failed", "error", err)
	}
	r.metrics.IncidentsReported.WithLabelValues(origin).Inc()
	r.logger.Infow("incident recorded",
		"origin", origin,
		"type", incidentType,
		"local_id", localID,
		"remote_id", remoteID)
}
