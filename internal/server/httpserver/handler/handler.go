// Package handler provides HTTP request handlers for WirePool.
package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wirepool/wirepool-go/internal/core/domain"
	"github.com/wirepool/wirepool-go/internal/core/service"
	"github.com/wirepool/wirepool-go/internal/telemetry/logger"
)

// ClientIDHeader carries the caller's client identity.
const ClientIDHeader = "X-Client-ID"

// EventSource is the subscription surface of the event bus.
type EventSource interface {
	Subscribe(clientID string) <-chan domain.Event
	Unsubscribe(clientID string)
}

// Handler is the main HTTP handler that routes requests to appropriate handlers.
type Handler struct {
	orch      *service.SessionOrchestrator
	directory *service.NodeDirectory
	events    EventSource
	logger    logger.Logger
	mux       *http.ServeMux
}

// New creates a new Handler with the given services.
// events may be nil; the event stream endpoint then responds 503.
func New(orch *service.SessionOrchestrator, directory *service.NodeDirectory, events EventSource, log logger.Logger) *Handler {
	h := &Handler{
		orch:      orch,
		directory: directory,
		events:    events,
		logger:    log,
		mux:       http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	// Health endpoints (no client identity required)
	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	h.mux.HandleFunc("GET /readyz", h.handleReady)

	// Session endpoints
	h.mux.HandleFunc("POST /v1/connect", h.handleConnect)
	h.mux.HandleFunc("GET /v1/status", h.handleStatus)
	h.mux.HandleFunc("GET /v1/sessions/{id}", h.handleGetSession)
	h.mux.HandleFunc("POST /v1/sessions/{id}/disconnect", h.handleDisconnect)
	h.mux.HandleFunc("POST /v1/sessions/{id}/metrics", h.handleSessionMetrics)

	// Node catalog
	h.mux.HandleFunc("GET /v1/nodes", h.handleListNodes)

	// Event stream
	h.mux.HandleFunc("GET /v1/events", h.handleEvents)
}

// clientID extracts the caller identity header.
func clientID(r *http.Request) string {
	return r.Header.Get(ClientIDHeader)
}

// requireClientID extracts the caller identity or writes a 400.
func (h *Handler) requireClientID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := clientID(r)
	if id == "" {
		h.writeError(w, r, http.StatusBadRequest, "WP-ARG-1001", "client id header is required", nil)
		return "", false
	}
	return id, true
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := getRequestID(r)
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// getRequestID extracts request ID from header (set by middleware).
func getRequestID(r *http.Request) string {
	return r.Header.Get("X-Request-ID")
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsDomainError(err, "") {
		code := domain.GetErrorCode(err)
		status := errorCodeToHTTPStatus(code)
		h.writeError(w, r, status, code, err.Error(), nil)
		return
	}

	// Generic internal error
	h.logger.Error("internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, "WP-SYS-5000", "internal server error", nil)
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4040"), strings.HasSuffix(code, "-4041"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4090"), strings.HasSuffix(code, "-4091"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-4000"), strings.HasSuffix(code, "-4001"), strings.HasSuffix(code, "-4002"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-4010"), strings.HasSuffix(code, "-4011"):
		return http.StatusUnauthorized
	case strings.HasSuffix(code, "-4030"), strings.HasSuffix(code, "-4031"):
		return http.StatusForbidden
	case strings.HasSuffix(code, "-5030"):
		return http.StatusServiceUnavailable
	case strings.HasSuffix(code, "-5040"):
		return http.StatusGatewayTimeout
	case strings.HasPrefix(code, "WP-ARG-"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
