// Package handler provides HTTP request handlers for WirePool.
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleEvents handles GET /v1/events.
//
// It streams the caller's event feed as server-sent events until the
// client disconnects. A new subscription replaces any previous one for
// the same client.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	client, ok := h.requireClientID(w, r)
	if !ok {
		return
	}

	if h.events == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "WP-SYS-5001", "event stream unavailable", nil)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, r, http.StatusInternalServerError, "WP-SYS-5000", "streaming unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := h.events.Subscribe(client)
	defer h.events.Unsubscribe(client)

	for {
		select {
		case <-r.Context().Done():
			return
		case e, open := <-ch:
			if !open {
				// Subscription replaced by a newer connection or the
				// bus shut down.
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				h.logger.Error("failed to encode event", "error", err, "type", e.Type)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
			flusher.Flush()
		}
	}
}
