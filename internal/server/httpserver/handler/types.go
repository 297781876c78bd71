// Package handler provides HTTP request handlers for WirePool.
package handler

import "time"

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses
// Prometheus format and /v1/events which streams SSE).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"` // Additional error details
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// ConnectRequest is the request body for POST /v1/connect.
type ConnectRequest struct {
	// NodeID pins a specific node when set.
	NodeID string `json:"node_id,omitempty"`

	// Region biases node selection when set.
	Region string `json:"region,omitempty"`

	// Tier is the client tier ("free" or "premium"). Defaults to free.
	Tier string `json:"tier,omitempty"`
}

// CredentialResponse carries the issued tunnel credential. It is
// returned exactly once, in the connect response.
type CredentialResponse struct {
	PrivateKey    string `json:"private_key"`
	PublicKey     string `json:"public_key"`
	PresharedKey  string `json:"preshared_key,omitempty"`
	Address       string `json:"address"`
	DNS           string `json:"dns"`
	Endpoint      string `json:"endpoint"`
	PeerPublicKey string `json:"peer_public_key"`
	AllowedIPs    string `json:"allowed_ips"`
	KeepaliveSec  int    `json:"keepalive_sec"`
}

// ConnectResponse is the response body for POST /v1/connect.
type ConnectResponse struct {
	Session    SessionResponse    `json:"session"`
	Node       NodeResponse       `json:"node"`
	Credential CredentialResponse `json:"credential"`

	// Config is the rendered tunnel configuration for direct import.
	Config string `json:"config"`
}

// SessionResponse represents a session in API responses.
type SessionResponse struct {
	ID                string    `json:"id"`
	ClientID          string    `json:"client_id"`
	NodeID            string    `json:"node_id"`
	State             string    `json:"state"`
	StartedAt         time.Time `json:"started_at"`
	EndedAt           time.Time `json:"ended_at,omitzero"`
	BytesUp           uint64    `json:"bytes_up"`
	BytesDown         uint64    `json:"bytes_down"`
	SpeedMbps         float64   `json:"speed_mbps"`
	PingMS            int       `json:"ping_ms"`
	TerminationReason string    `json:"termination_reason,omitempty"`
}

// DisconnectResponse is the response body for POST /v1/sessions/{id}/disconnect.
type DisconnectResponse struct {
	Session         SessionResponse `json:"session"`
	DurationSeconds float64         `json:"duration_seconds"`
	BytesUp         uint64          `json:"bytes_up"`
	BytesDown       uint64          `json:"bytes_down"`
}

// MetricsRequest is the request body for POST /v1/sessions/{id}/metrics.
type MetricsRequest struct {
	BytesUpDelta   int64   `json:"bytes_up_delta"`
	BytesDownDelta int64   `json:"bytes_down_delta"`
	SpeedMbps      float64 `json:"speed_mbps"`
	PingMS         int     `json:"ping_ms"`
}

// NodeResponse represents a server node in API responses.
type NodeResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	PublicKey   string  `json:"public_key"`
	Region      string  `json:"region"`
	Premium     bool    `json:"premium"`
	Capacity    int     `json:"capacity"`
	Occupancy   int     `json:"occupancy"`
	Load        int     `json:"load"`
	PingMS      int     `json:"ping_ms"`
	HealthState string  `json:"health_state"`
	Score       float64 `json:"score"`
}

// ListNodesResponse is the response body for GET /v1/nodes.
type ListNodesResponse struct {
	Nodes []NodeResponse `json:"nodes"`
	Total int            `json:"total"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
