package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mark-ai1/Break-Management/internal/domain/breaks"
	"github.com/mark-ai1/Break-Management/internal/service"
)

// Handler provides the JSON API over the break engine.
type Handler struct {
	engine       *service.Engine
	adjudication *service.AdjudicationService
	stats        *service.StatsService
	metrics      *Metrics
	logger       *slog.Logger
	startTime    time.Time
}

// NewHandler creates the API handler.
func NewHandler(engine *service.Engine, adjudication *service.AdjudicationService, stats *service.StatsService, metrics *Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		engine:       engine,
		adjudication: adjudication,
		stats:        stats,
		metrics:      metrics,
		logger:       logger,
		startTime:    time.Now().UTC(),
	}
}

// Routes returns the API mux.
func (h *Handler) Routes(registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/breaks", h.instrument("admit", h.handleAdmit))
	mux.HandleFunc("POST /api/v1/breaks/return", h.instrument("return", h.handleReturn))
	mux.HandleFunc("GET /api/v1/breaks/{id}", h.instrument("get", h.handleGetSession))
	mux.HandleFunc("POST /api/v1/breaks/{id}/reason", h.instrument("reason", h.handleSubmitReason))
	mux.HandleFunc("POST /api/v1/breaks/{id}/verdict", h.instrument("verdict", h.handleAdjudicate))
	mux.HandleFunc("GET /api/v1/stats", h.instrument("stats", h.handleStats))

	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return mux
}

// instrument records the request duration histogram per route.
func (h *Handler) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		h.metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// admitRequest is the JSON request body for starting a break.
type admitRequest struct {
	SubjectID string `json:"subject_id"`
	Category  string `json:"category"`
}

// handleAdmit starts a break.
// POST /api/v1/breaks
func (h *Handler) handleAdmit(w http.ResponseWriter, r *http.Request) {
	var req admitRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SubjectID == "" || req.Category == "" {
		h.respondError(w, http.StatusBadRequest, "subject_id and category are required")
		return
	}

	id, err := h.engine.Admit(r.Context(), req.SubjectID, req.Category)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

// returnRequest is the JSON request body for ending a break.
type returnRequest struct {
	SubjectID string `json:"subject_id"`
}

// handleReturn ends the subject's open break.
// POST /api/v1/breaks/return
func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SubjectID == "" {
		h.respondError(w, http.StatusBadRequest, "subject_id is required")
		return
	}

	outcome, sessionID, err := h.engine.Return(r.Context(), req.SubjectID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	body := map[string]string{"session_id": sessionID}
	if outcome == breaks.OutcomeNeedsReason {
		body["outcome"] = "needs_reason"
	} else {
		body["outcome"] = "returned_on_time"
	}
	h.respondJSON(w, http.StatusOK, body)
}

// sessionResponse is the JSON view of a session.
type sessionResponse struct {
	ID         string `json:"id"`
	SubjectID  string `json:"subject_id"`
	Category   string `json:"category"`
	State      string `json:"state"`
	StartedAt  string `json:"started_at"`
	EndedAt    string `json:"ended_at,omitempty"`
	Reason     string `json:"reason,omitempty"`
	FineAmount int    `json:"fine_amount,omitempty"`
}

// handleGetSession returns one session.
// GET /api/v1/breaks/{id}
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.respondError(w, http.StatusBadRequest, "session id is required")
		return
	}

	sess, err := h.engine.Get(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	resp := sessionResponse{
		ID:         sess.ID,
		SubjectID:  sess.SubjectID,
		Category:   sess.Category,
		State:      string(sess.State),
		StartedAt:  sess.StartedAt.Format(time.RFC3339),
		Reason:     sess.Reason,
		FineAmount: sess.FineAmount,
	}
	if !sess.EndedAt.IsZero() {
		resp.EndedAt = sess.EndedAt.Format(time.RFC3339)
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// reasonRequest is the JSON request body for a late-return reason.
type reasonRequest struct {
	Reason string `json:"reason"`
}

// handleSubmitReason records a late subject's explanation.
// POST /api/v1/breaks/{id}/reason
func (h *Handler) handleSubmitReason(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.respondError(w, http.StatusBadRequest, "session id is required")
		return
	}

	var req reasonRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.adjudication.SubmitReason(r.Context(), id, req.Reason); err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{
		"status": "pending_adjudication",
		"id":     id,
	})
}

// verdictRequest is the JSON request body for an operator verdict.
type verdictRequest struct {
	Verdict string `json:"verdict"`
}

// handleAdjudicate applies an operator verdict.
// POST /api/v1/breaks/{id}/verdict
func (h *Handler) handleAdjudicate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.respondError(w, http.StatusBadRequest, "session id is required")
		return
	}

	var req verdictRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.adjudication.Adjudicate(r.Context(), id, req.Verdict); err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{
		"status": "adjudicated",
		"id":     id,
	})
}

// statsResponse is the JSON view of the current reporting window.
type statsResponse struct {
	WindowStart string                      `json:"window_start"`
	Categories  map[string]service.Counters `json:"categories"`
}

// handleStats returns the per-category counters for the current window.
// GET /api/v1/stats
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, statsResponse{
		WindowStart: h.stats.WindowStart().Format(time.RFC3339),
		Categories:  h.stats.Snapshot(),
	})
}

// handleHealth reports liveness.
// GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}

// respondDomainError maps the error taxonomy to HTTP statuses.
// Everything in the taxonomy is a user-facing denial; only
// ErrStoreUnavailable is treated as a backend failure.
func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, breaks.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, breaks.ErrUnknownCategory):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, breaks.ErrCapacityExceeded),
		errors.Is(err, breaks.ErrAlreadyOnBreak),
		errors.Is(err, breaks.ErrNotOnBreak),
		errors.Is(err, breaks.ErrInvalidTransition):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, breaks.ErrReasonRequired),
		errors.Is(err, breaks.ErrUnknownVerdict):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, breaks.ErrStoreUnavailable):
		h.logger.Error("store unavailable", "error", err)
		h.respondError(w, http.StatusServiceUnavailable, "storage backend unavailable")
	default:
		h.logger.Error("unexpected error", "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// respondJSON writes a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a JSON error response.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// readJSON decodes the request body into the given value.
func (h *Handler) readJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
