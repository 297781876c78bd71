// Package handler provides HTTP request handlers for WirePool.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/wirepool/wirepool-go/internal/configstore"
	"github.com/wirepool/wirepool-go/internal/core/domain"
	"github.com/wirepool/wirepool-go/internal/core/service"
)

// handleConnect handles POST /v1/connect.
func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	client, ok := h.requireClientID(w, r)
	if !ok {
		return
	}

	var req ConnectRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, r, http.StatusBadRequest, "WP-SYS-4000", "invalid request body", nil)
			return
		}
	}

	resp, err := h.orch.Connect(r.Context(), &service.ConnectRequest{
		ClientID:        client,
		NodeID:          req.NodeID,
		PreferredRegion: req.Region,
		Tier:            domain.ClientTier(req.Tier),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	// The credential is returned exactly once; afterwards only the
	// rendered config file is retrievable from the store.
	rendered, err := configstore.Render(resp.Credential)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, ConnectResponse{
		Session:    sessionToResponse(resp.Session),
		Node:       nodeToResponse(resp.Node),
		Credential: credentialToResponse(resp.Credential),
		Config:     rendered,
	})
}

// handleDisconnect handles POST /v1/sessions/{id}/disconnect.
func (h *Handler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	client, ok := h.requireClientID(w, r)
	if !ok {
		return
	}
	sessionID := r.PathValue("id")
	if sessionID == "" {
		h.writeError(w, r, http.StatusBadRequest, "WP-ARG-1002", "session_id is required", nil)
		return
	}

	resp, err := h.orch.Disconnect(r.Context(), sessionID, client)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, DisconnectResponse{
		Session:         sessionToResponse(resp.Session),
		DurationSeconds: resp.Duration.Seconds(),
		BytesUp:         resp.BytesUp,
		BytesDown:       resp.BytesDown,
	})
}

// handleSessionMetrics handles POST /v1/sessions/{id}/metrics.
func (h *Handler) handleSessionMetrics(w http.ResponseWriter, r *http.Request) {
	client, ok := h.requireClientID(w, r)
	if !ok {
		return
	}
	sessionID := r.PathValue("id")
	if sessionID == "" {
		h.writeError(w, r, http.StatusBadRequest, "WP-ARG-1002", "session_id is required", nil)
		return
	}

	var req MetricsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "WP-SYS-4000", "invalid request body", nil)
		return
	}

	session, err := h.orch.UpdateMetrics(r.Context(), sessionID, client, &service.MetricsUpdate{
		BytesUpDelta:   req.BytesUpDelta,
		BytesDownDelta: req.BytesDownDelta,
		SpeedMbps:      req.SpeedMbps,
		PingMS:         req.PingMS,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, sessionToResponse(session))
}

// handleStatus handles GET /v1/status.
//
// It reports the caller's current session, or 404 when the caller has
// no live session.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	client, ok := h.requireClientID(w, r)
	if !ok {
		return
	}

	session, err := h.orch.GetStatus(client)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if session == nil {
		h.writeError(w, r, http.StatusNotFound, "WP-SESS-4040", "no active session", nil)
		return
	}

	h.writeJSON(w, r, http.StatusOK, sessionToResponse(session))
}

// handleGetSession handles GET /v1/sessions/{id}.
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	client, ok := h.requireClientID(w, r)
	if !ok {
		return
	}
	sessionID := r.PathValue("id")
	if sessionID == "" {
		h.writeError(w, r, http.StatusBadRequest, "WP-ARG-1002", "session_id is required", nil)
		return
	}

	session, err := h.orch.GetSession(sessionID, client)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, sessionToResponse(session))
}

// sessionToResponse converts a domain.Session to a SessionResponse.
func sessionToResponse(s *domain.Session) SessionResponse {
	resp := SessionResponse{
		ID:                s.ID,
		ClientID:          s.ClientID,
		NodeID:            s.NodeID,
		State:             string(s.State),
		StartedAt:         time.UnixMilli(s.StartedAt),
		BytesUp:           s.BytesUp,
		BytesDown:         s.BytesDown,
		SpeedMbps:         s.SpeedMbps,
		PingMS:            s.PingMS,
		TerminationReason: s.TerminationReason,
	}
	if s.EndedAt != 0 {
		resp.EndedAt = time.UnixMilli(s.EndedAt)
	}
	return resp
}

// credentialToResponse converts a domain.Credential to wire form.
func credentialToResponse(c *domain.Credential) CredentialResponse {
	return CredentialResponse{
		PrivateKey:    c.PrivateKey,
		PublicKey:     c.PublicKey,
		PresharedKey:  c.PresharedKey,
		Address:       c.Address,
		DNS:           c.DNS,
		Endpoint:      c.Endpoint,
		PeerPublicKey: c.PeerPublicKey,
		AllowedIPs:    c.AllowedIPs,
		KeepaliveSec:  c.KeepaliveSec,
	}
}
