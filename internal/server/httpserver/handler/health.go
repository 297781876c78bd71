// Package handler provides HTTP request handlers for WirePool.
package handler

import (
	"net/http"
	"time"
)

// handleHealth handles GET /healthz.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /readyz.
//
// The broker is ready when at least one node accepts reservations.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	available := h.directory.ListAvailable(nil)
	status := "ready"
	code := http.StatusOK
	if len(available) == 0 {
		status = "no nodes available"
		code = http.StatusServiceUnavailable
	}

	h.writeJSON(w, r, code, map[string]any{
		"status": status,
		"nodes":  len(available),
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
