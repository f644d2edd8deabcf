package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"griefing/internal/models"
	"griefing/internal/storage"
)

// handleIndex returns basic service information
// GET / - Returns service info and available endpoints
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"service":     "Griefing Agreements",
		"version":     "1.0.0",
		"description": "One-way griefing agreements, factories and registry",
		"endpoints": map[string]string{
			"GET /":                       "This page - Service information",
			"GET /health":                 "Health check endpoint",
			"GET /metrics":                "Prometheus metrics for monitoring",
			"GET /agreements":             "List agreements (supports ?factory=, ?staker=, ?counterparty=, ?limit=, ?offset=)",
			"GET /agreements/{id}":        "Get agreement details with current state",
			"GET /agreements/{id}/events": "Get event timeline for an agreement",
			"GET /factories":              "List factories known to the registry",
		},
	}

	s.sendJSON(w, http.StatusOK, info)
}

// handleHealth returns health status
// GET /health - Health check for monitoring systems
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if err := s.repository.Ping(r.Context()); err != nil {
		slog.Warn("Health check failed", "error", err)
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	health := map[string]interface{}{
		"status":    status,
		"timestamp": s.clock.Now().UTC(),
		"service":   "griefing",
	}

	s.sendJSON(w, code, health)
}

// handleMetrics returns Prometheus metrics
// GET /metrics - Prometheus scraping endpoint
func (s *Server) handleMetrics() http.Handler {
	return promhttp.Handler()
}

// =============================================================================
// AGREEMENT ENDPOINTS
// =============================================================================

// handleListAgreements lists agreements with optional filtering
// GET /agreements?factory=CXXX...&staker=GXXX...&limit=50&offset=0
func (s *Server) handleListAgreements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	// Pagination
	limit := 50 // default
	if limitStr := query.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	offset := 0
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	filter := models.AgreementFilter{
		FactoryID:    query.Get("factory"),
		Staker:       query.Get("staker"),
		Counterparty: query.Get("counterparty"),
		Limit:        limit,
		Offset:       offset,
	}

	total, err := s.repository.CountAgreements(ctx, filter)
	if err != nil {
		slog.Error("Failed to count agreements", "error", err)
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	agreements, err := s.repository.ListAgreements(ctx, filter)
	if err != nil {
		slog.Error("Failed to list agreements", "error", err)
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	now := s.clock.Now()
	summaries := make([]models.AgreementSummary, len(agreements))
	for i, a := range agreements {
		summaries[i] = BuildAgreementSummary(a, now)
	}

	response := models.AgreementListResponse{
		Agreements: summaries,
		Total:      total,
		Page:       offset/limit + 1,
		PageSize:   limit,
	}

	s.sendJSON(w, http.StatusOK, response)
}

// handleGetAgreement returns detailed agreement information with current state
// GET /agreements/{id}
func (s *Server) handleGetAgreement(w http.ResponseWriter, r *http.Request) {
	agreementID := chi.URLParam(r, "id")

	agreement, err := s.repository.GetAgreement(r.Context(), agreementID)
	if errors.Is(err, storage.ErrNotFound) {
		s.sendError(w, "Agreement not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Failed to get agreement", "agreement_id", agreementID, "error", err)
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response, err := BuildAgreementResponse(agreement, s.clock.Now())
	if err != nil {
		slog.Error("Failed to build response", "agreement_id", agreementID, "error", err)
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.sendJSON(w, http.StatusOK, response)
}

// handleGetAgreementEvents returns the event timeline for an agreement
// GET /agreements/{id}/events
func (s *Server) handleGetAgreementEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agreementID := chi.URLParam(r, "id")

	if _, err := s.repository.GetAgreement(ctx, agreementID); errors.Is(err, storage.ErrNotFound) {
		s.sendError(w, "Agreement not found", http.StatusNotFound)
		return
	}

	events, err := s.repository.ListEvents(ctx, models.EventFilter{SourceID: agreementID, Limit: 1000})
	if err != nil {
		slog.Error("Failed to get events", "agreement_id", agreementID, "error", err)
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	eventResponses := make([]models.EventResponse, len(events))
	for i, event := range events {
		eventResponses[i] = models.EventResponse{
			EventID:   event.EventID,
			EventType: string(event.EventType),
			Sequence:  event.Sequence,
			Timestamp: event.Timestamp,
			Data:      event.Data,
		}
	}

	response := models.EventsResponse{
		AgreementID: agreementID,
		Events:      eventResponses,
		Total:       len(eventResponses),
	}

	s.sendJSON(w, http.StatusOK, response)
}

// handleListFactories lists factories and their registry status
// GET /factories
func (s *Server) handleListFactories(w http.ResponseWriter, r *http.Request) {
	factories, err := s.repository.ListFactories(r.Context())
	if err != nil {
		slog.Error("Failed to list factories", "error", err)
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := models.FactoriesResponse{
		Factories: make([]models.Factory, 0, len(factories)),
		Total:     len(factories),
	}
	for _, f := range factories {
		response.Factories = append(response.Factories, *f)
	}

	s.sendJSON(w, http.StatusOK, response)
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// sendError sends a JSON error response
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.sendJSON(w, code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}
