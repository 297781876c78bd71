package domain

import "time"

// EventType classifies events delivered through the event bus.
type EventType string

// Event types.
const (
	EventSessionStarted   EventType = "session_started"
	EventSessionEnded     EventType = "session_ended"
	EventMetricsUpdated   EventType = "metrics_updated"
	EventOverloadDetected EventType = "overload_detected"
	EventHeartbeat        EventType = "heartbeat"
)

// Event is one state-change notification pushed to observers.
type Event struct {
	// Type is the event classification.
	Type EventType `json:"type"`

	// Payload carries type-specific data.
	Payload map[string]any `json:"payload,omitempty"`

	// Timestamp is when the event was produced (Unix milliseconds).
	Timestamp int64 `json:"timestamp"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(t EventType, payload map[string]any) Event {
	return Event{
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

// AuditAction classifies audit records.
type AuditAction string

// Audit actions emitted by the orchestration core.
const (
	AuditConnect        AuditAction = "connect"
	AuditDisconnect     AuditAction = "disconnect"
	AuditUpdateMetrics  AuditAction = "update_metrics"
	AuditForceTerminate AuditAction = "force_terminate"
	AuditAdmission      AuditAction = "admission"
	AuditTransition     AuditAction = "transition"
)

// AuditRecord is the structured record handed to the audit sink for
// every admission decision, state transition and error. Fire-and-forget:
// sink failures never fail the calling operation.
type AuditRecord struct {
	Action    AuditAction `json:"action"`
	ClientID  string      `json:"client_id,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	NodeID    string      `json:"node_id,omitempty"`
	Outcome   string      `json:"outcome"`
	Detail    string      `json:"detail,omitempty"`
	Timestamp int64       `json:"timestamp"`
}
