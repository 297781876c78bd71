package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionIDPrefix is the prefix for session IDs.
const SessionIDPrefix = "wpss-"

// SessionState is one state of the session lifecycle machine.
type SessionState string

// Session states. The machine is Connecting -> Connected -> Disconnecting
// -> Disconnected, with Error reachable from any non-terminal state and
// TimedOut as the Error variant for a missed connect deadline.
const (
	StateConnecting    SessionState = "connecting"
	StateConnected     SessionState = "connected"
	StateDisconnecting SessionState = "disconnecting"
	StateDisconnected  SessionState = "disconnected"
	StateError         SessionState = "error"
	StateTimedOut      SessionState = "timed_out"
)

// IsTerminal reports whether the state accepts no further transitions.
func (s SessionState) IsTerminal() bool {
	switch s {
	case StateDisconnected, StateError, StateTimedOut:
		return true
	}
	return false
}

// legalTransitions holds the forward edges of the state machine.
// Error and TimedOut are additionally reachable from every
// non-terminal state (handled in CanTransition).
var legalTransitions = map[SessionState]SessionState{
	StateConnecting:    StateConnected,
	StateConnected:     StateDisconnecting,
	StateDisconnecting: StateDisconnected,
}

// CanTransition reports whether moving from s to next is legal.
func (s SessionState) CanTransition(next SessionState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateError || next == StateTimedOut {
		return true
	}
	// Connecting may be torn down without ever reaching Connected.
	if s == StateConnecting && next == StateDisconnecting {
		return true
	}
	return legalTransitions[s] == next
}

// Session represents one client's exclusive claim on a node.
//
// NodeID is set once at creation and never changes. A session is
// immutable once it reaches a terminal state.
type Session struct {
	// ID is the unique session identifier.
	// Format: wpss-{ulid_lowercase}, 31 characters total.
	ID string `json:"id"`

	// ClientID identifies the client who owns this session.
	ClientID string `json:"client_id"`

	// NodeID is the node this session is reserved on (immutable).
	NodeID string `json:"node_id"`

	// State is the current lifecycle state.
	State SessionState `json:"state"`

	// StartedAt is the session creation timestamp (Unix milliseconds).
	StartedAt int64 `json:"started_at"`

	// EndedAt is the terminal timestamp (Unix milliseconds, 0 while live).
	EndedAt int64 `json:"ended_at,omitempty"`

	// BytesUp and BytesDown accumulate transferred byte deltas.
	BytesUp   uint64 `json:"bytes_up"`
	BytesDown uint64 `json:"bytes_down"`

	// SpeedMbps is the last reported absolute speed snapshot.
	SpeedMbps float64 `json:"speed_mbps"`

	// PingMS is the last reported client-side ping snapshot.
	PingMS int `json:"ping_ms"`

	// LastMetricsAt is when metrics were last reported (Unix milliseconds).
	LastMetricsAt int64 `json:"last_metrics_at,omitempty"`

	// TerminationReason is populated only for Error and TimedOut.
	TerminationReason string `json:"termination_reason,omitempty"`
}

// NewSession creates a Session in the Connecting state with a generated ID.
func NewSession(clientID, nodeID string) (*Session, error) {
	id, err := GenerateSessionID()
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        id,
		ClientID:  clientID,
		NodeID:    nodeID,
		State:     StateConnecting,
		StartedAt: time.Now().UnixMilli(),
	}, nil
}

// GenerateSessionID generates a new session ID using ULID.
// Format: wpss-{ulid_lowercase}, 31 characters total.
func GenerateSessionID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	return SessionIDPrefix + strings.ToLower(id.String()), nil
}

// Transition moves the session to the next state, rejecting any move the
// state machine does not allow. Terminal states stamp EndedAt.
func (s *Session) Transition(next SessionState) error {
	if !s.State.CanTransition(next) {
		return ErrIllegalTransition.WithDetails(
			string(s.State) + " -> " + string(next))
	}
	s.State = next
	if next.IsTerminal() {
		s.EndedAt = time.Now().UnixMilli()
	}
	return nil
}

// Fail moves the session to Error (or TimedOut) recording the reason.
func (s *Session) Fail(state SessionState, reason string) error {
	if state != StateError && state != StateTimedOut {
		return ErrIllegalTransition.WithDetails("fail state must be error or timed_out")
	}
	if err := s.Transition(state); err != nil {
		return err
	}
	s.TerminationReason = reason
	return nil
}

// IsActive reports whether the session counts against the one-session-
// per-client invariant: any of Connecting, Connected, Disconnecting.
func (s *Session) IsActive() bool {
	return !s.State.IsTerminal()
}

// Duration returns the session lifetime. Live sessions measure up to now.
func (s *Session) Duration() time.Duration {
	end := s.EndedAt
	if end == 0 {
		end = time.Now().UnixMilli()
	}
	return time.Duration(end-s.StartedAt) * time.Millisecond
}

// AddTransfer accumulates non-negative transferred byte deltas.
func (s *Session) AddTransfer(up, down uint64) {
	s.BytesUp += up
	s.BytesDown += down
}

// Clone creates a copy of the session.
func (s *Session) Clone() *Session {
	clone := *s
	return &clone
}

// StartedAtTime returns StartedAt as time.Time.
func (s *Session) StartedAtTime() time.Time {
	return time.UnixMilli(s.StartedAt)
}

// EndedAtTime returns EndedAt as time.Time (zero while live).
func (s *Session) EndedAtTime() time.Time {
	if s.EndedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.EndedAt)
}

// IsValidSessionID checks if a string is a valid session ID format.
// It normalizes the ID to lowercase before validation.
func IsValidSessionID(id string) bool {
	id = strings.ToLower(id)
	if !strings.HasPrefix(id, SessionIDPrefix) {
		return false
	}
	// wpss- (5) + ULID (26) = 31 characters
	if len(id) != 31 {
		return false
	}
	ulidPart := strings.ToUpper(id[len(SessionIDPrefix):])
	_, err := ulid.Parse(ulidPart)
	return err == nil
}
