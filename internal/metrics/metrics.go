// Package metrics exposes the agent's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the agent's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	FramesProcessed    prometheus.Counter
	AudioBuffers       prometheus.Counter
	TriggersFired      prometheus.Counter
	TriggersSuppressed prometheus.Counter
	IncidentsReported  *prometheus.CounterVec // origin: auto | manual
	EvidenceSaved      *prometheus.CounterVec // kind: IMAGE | AUDIO
	EvidenceUploaded   *prometheus.CounterVec
	EvidenceSuppressed *prometheus.CounterVec
	TrackerErrors      prometheus.Counter
	DetectionActive    prometheus.Gauge
}

// New builds and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentry_frames_processed_total",
			Help: "Camera frames scored for motion.",
		}),
		AudioBuffers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentry_audio_buffers_total",
			Help: "Audio buffers scored for sound.",
		}),
		TriggersFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentry_triggers_fired_total",
			Help: "Auto-triggers that won the cooldown gate.",
		}),
		TriggersSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentry_triggers_suppressed_total",
			Help: "Threshold crossings suppressed by the cooldown gate.",
		}),
		IncidentsReported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentry_incidents_reported_total",
			Help: "Incidents recorded locally.",
		}, []string{"origin"}),
		EvidenceSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentry_evidence_saved_total",
			Help: "Evidence items persisted to local storage.",
		}, []string{"kind"}),
		EvidenceUploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentry_evidence_uploaded_total",
			Help: "Evidence items forwarded to the tracker.",
		}, []string{"kind"}),
		EvidenceSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentry_evidence_suppressed_total",
			Help: "Evidence uploads withheld by the budget (cap, interval, or no open incident).",
		}, []string{"kind"}),
		TrackerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentry_tracker_errors_total",
			Help: "Failed calls to the incident tracker.",
		}),
		DetectionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentry_detection_active",
			Help: "1 while the sensor loops are running.",
		}),
	}

	reg.MustRegister(
		m.FramesProcessed,
		m.AudioBuffers,
		m.TriggersFired,
		m.TriggersSuppressed,
		m.IncidentsReported,
		m.EvidenceSaved,
		m.EvidenceUploaded,
		m.EvidenceSuppressed,
		m.TrackerErrors,
		m.DetectionActive,
	)
	return m
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
