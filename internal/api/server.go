// Package api provides the local control surface: detection start/stop,
// manual report submission, status, alerts, and the UI websocket stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mikeyg42/sentry/internal/alert"
	"github.com/mikeyg42/sentry/internal/metrics"
	"github.com/mikeyg42/sentry/internal/report"
)

// Core is the agent surface the API exposes.
type Core interface {
	StartDetection() error
	StopDetection()
	Status() alert.Status
	SubmitReport(incidentType, description string) error
}

// Server is the control API server.
type Server struct {
	httpServer *http.Server
	core       Core
	alerts     *alert.Log
	incidents  *report.LogStore
	logger     *zap.SugaredLogger
}

// NewServer builds the router and the underlying http.Server.
func NewServer(addr string, core Core, alerts *alert.Log, hub *alert.Hub, incidents *report.LogStore,
	m *metrics.Metrics, logger *zap.SugaredLogger) *Server {
	s := &Server{
		core:      core,
		alerts:    alerts,
		incidents: incidents,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/detection/start", s.handleStart)
		r.Post("/detection/stop", s.handleStop)
		r.Get("/status", s.handleStatus)
		r.Get("/alerts", s.handleAlerts)
		r.Get("/incidents", s.handleIncidents)
		r.Post("/reports", s.handleSubmitReport)
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})
	r.Get("/ws", hub.ServeHTTP)
	r.Handle("/metrics", m.Handler())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start serves until Shutdown. Blocks; run in a goroutine.
func (s *Server) Start() error {
	s.logger.Infow("control API listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStart(w http.ResponseWriter, _ *http.Request) {
	if err := s.core.StartDetection(); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.core.StopDetection()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.core.Status())
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	n := 50
	if q := r.URL.Query().Get("n"); q != "" {
		if v, err := strconv.Atoi(q); err == nil && v > 0 {
			n = v
		}
	}
	entries := s.alerts.Recent(n)
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Line()
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": lines})
}

func (s *Server) handleIncidents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"incidents": s.incidents.All()})
}

type submitRequest struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	if err := s.core.SubmitReport(req.Type, req.Description); err != nil {
		if errors.Is(err, report.ErrMissingFields) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "reported"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
