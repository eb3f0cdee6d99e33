// Package httpapi exposes the dashboard REST endpoints and the WebSocket
// notification stream.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"clearance-monitor/internal/detection"
	"clearance-monitor/internal/domain"
	"clearance-monitor/internal/notify"
	"clearance-monitor/internal/registry"
	"clearance-monitor/internal/stats"
	"clearance-monitor/internal/store"
)

type Server struct {
	registry   *registry.Registry
	detection  *detection.Service
	aggregator *stats.Aggregator
	hub        *notify.Hub
	logger     *zap.Logger
}

func NewServer(
	reg *registry.Registry,
	det *detection.Service,
	agg *stats.Aggregator,
	hub *notify.Hub,
	logger *zap.Logger,
) *Server {
	return &Server{
		registry:   reg,
		detection:  det,
		aggregator: agg,
		hub:        hub,
		logger:     logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/detectors/register", s.handleRegisterDetector)
	mux.HandleFunc("GET /api/detectors", s.handleActiveDetectors)
	mux.HandleFunc("GET /api/detectors/inactive", s.handleInactiveDetectors)
	mux.HandleFunc("GET /api/detectors/{deviceId}", s.handleGetDetector)
	mux.HandleFunc("POST /api/detectors/{deviceId}/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("DELETE /api/detectors/{deviceId}", s.handleDeleteDetector)

	mux.HandleFunc("GET /api/violations/pending", s.handlePendingViolations)
	mux.HandleFunc("GET /api/violations/device/{deviceId}", s.handleViolationsByDevice)
	mux.HandleFunc("GET /api/violations", s.handleViolationsByRange)
	mux.HandleFunc("PUT /api/violations/{id}/acknowledge", s.handleAcknowledge)

	mux.HandleFunc("GET /api/dashboard/stats", s.handleStats)
	mux.HandleFunc("GET /api/dashboard/health", s.handleHealth)

	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

type registerRequest struct {
	DeviceID        string  `json:"device_id"`
	Location        string  `json:"location"`
	ClearanceHeight float64 `json:"clearance_height"`
}

func (s *Server) handleRegisterDetector(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	det, err := s.registry.Register(r.Context(), req.DeviceID, req.Location, req.ClearanceHeight)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, det)
}

func (s *Server) handleActiveDetectors(w http.ResponseWriter, r *http.Request) {
	dets, err := s.registry.Active(r.Context())
	if err != nil {
		s.internalError(w, "list active detectors", err)
		return
	}
	writeJSON(w, http.StatusOK, dets)
}

func (s *Server) handleInactiveDetectors(w http.ResponseWriter, r *http.Request) {
	dets, err := s.registry.Inactive(r.Context())
	if err != nil {
		s.internalError(w, "list inactive detectors", err)
		return
	}
	writeJSON(w, http.StatusOK, dets)
}

func (s *Server) handleGetDetector(w http.ResponseWriter, r *http.Request) {
	det, err := s.registry.Get(r.Context(), r.PathValue("deviceId"))
	if errors.Is(err, store.ErrDetectorNotFound) {
		writeError(w, http.StatusNotFound, "detector not found")
		return
	}
	if err != nil {
		s.internalError(w, "get detector", err)
		return
	}
	writeJSON(w, http.StatusOK, det)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.UpdateHeartbeat(r.Context(), r.PathValue("deviceId")); err != nil {
		s.internalError(w, "update heartbeat", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDeleteDetector(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("deviceId")
	err := s.registry.Delete(r.Context(), deviceID)
	if errors.Is(err, store.ErrDetectorNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":     "detector not found",
			"device_id": deviceID,
			"timestamp": time.Now(),
		})
		return
	}
	if err != nil {
		s.internalError(w, "delete detector", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Detector and associated violations deleted successfully",
		"device_id": deviceID,
		"timestamp": time.Now(),
	})
}

func (s *Server) handlePendingViolations(w http.ResponseWriter, r *http.Request) {
	violations, err := s.detection.Pending(r.Context())
	if err != nil {
		s.internalError(w, "list pending violations", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(violations))
}

func (s *Server) handleViolationsByDevice(w http.ResponseWriter, r *http.Request) {
	violations, err := s.detection.ByDevice(r.Context(), r.PathValue("deviceId"))
	if err != nil {
		s.internalError(w, "list violations by device", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(violations))
}

func (s *Server) handleViolationsByRange(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be RFC 3339")
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be RFC 3339")
		return
	}

	violations, err := s.detection.ByDateRange(r.Context(), start, end)
	if err != nil {
		s.internalError(w, "list violations by range", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(violations))
}

type acknowledgeRequest struct {
	Notes  string        `json:"notes"`
	Status domain.Status `json:"status,omitempty"`
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid violation id")
		return
	}

	var req acknowledgeRequest
	if r.Body != nil {
		// An empty body acknowledges with no notes.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	v, err := s.detection.Acknowledge(r.Context(), id, req.Notes, req.Status)
	if errors.Is(err, store.ErrViolationNotFound) {
		writeError(w, http.StatusNotFound, "violation not found")
		return
	}
	if err != nil {
		s.internalError(w, "acknowledge violation", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.aggregator.Snapshot(r.Context())
	if err != nil {
		s.internalError(w, "compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "UP",
		"service":   "Clearance Monitor API",
		"websocket": "enabled",
	})
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func emptyIfNil(vs []*domain.Violation) []*domain.Violation {
	if vs == nil {
		return []*domain.Violation{}
	}
	return vs
}
