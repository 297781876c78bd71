package domain

import (
	"strings"
	"testing"
)

func TestNewSession(t *testing.T) {
	s, err := NewSession("client-1", "node-1")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	if s.State != StateConnecting {
		t.Errorf("State = %q, want %q", s.State, StateConnecting)
	}
	if s.ClientID != "client-1" || s.NodeID != "node-1" {
		t.Errorf("owner = %q/%q, want client-1/node-1", s.ClientID, s.NodeID)
	}
	if s.StartedAt == 0 {
		t.Error("StartedAt should be stamped")
	}
	if !IsValidSessionID(s.ID) {
		t.Errorf("generated ID %q is not valid", s.ID)
	}
}

func TestGenerateSessionID(t *testing.T) {
	id, err := GenerateSessionID()
	if err != nil {
		t.Fatalf("GenerateSessionID: %v", err)
	}
	if !strings.HasPrefix(id, SessionIDPrefix) {
		t.Errorf("ID %q missing prefix %q", id, SessionIDPrefix)
	}
	if len(id) != 31 {
		t.Errorf("len(ID) = %d, want 31", len(id))
	}
	if id != strings.ToLower(id) {
		t.Errorf("ID %q should be lowercase", id)
	}
}

func TestIsValidSessionID(t *testing.T) {
	valid, err := GenerateSessionID()
	if err != nil {
		t.Fatalf("GenerateSessionID: %v", err)
	}

	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"generated", valid, true},
		{"uppercase variant", strings.ToUpper(valid), true},
		{"empty", "", false},
		{"wrong prefix", "sess-" + valid[5:], false},
		{"too short", valid[:30], false},
		{"too long", valid + "x", false},
		{"bad ulid chars", SessionIDPrefix + strings.Repeat("!", 26), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidSessionID(tt.id); got != tt.want {
				t.Errorf("IsValidSessionID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestSessionState_CanTransition(t *testing.T) {
	tests := []struct {
		from, to SessionState
		want     bool
	}{
		{StateConnecting, StateConnected, true},
		{StateConnected, StateDisconnecting, true},
		{StateDisconnecting, StateDisconnected, true},
		{StateConnecting, StateDisconnecting, true},
		{StateConnecting, StateError, true},
		{StateConnecting, StateTimedOut, true},
		{StateConnected, StateError, true},
		{StateDisconnecting, StateError, true},

		{StateConnecting, StateDisconnected, false},
		{StateConnected, StateConnecting, false},
		{StateConnected, StateDisconnected, false},
		{StateDisconnected, StateConnecting, false},
		{StateDisconnected, StateError, false},
		{StateError, StateConnected, false},
		{StateTimedOut, StateDisconnecting, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSession_Transition(t *testing.T) {
	s, _ := NewSession("client-1", "node-1")

	if err := s.Transition(StateConnected); err != nil {
		t.Fatalf("Connecting -> Connected: %v", err)
	}
	if err := s.Transition(StateDisconnecting); err != nil {
		t.Fatalf("Connected -> Disconnecting: %v", err)
	}

	if s.EndedAt != 0 {
		t.Error("EndedAt should not be stamped before a terminal state")
	}

	if err := s.Transition(StateDisconnected); err != nil {
		t.Fatalf("Disconnecting -> Disconnected: %v", err)
	}
	if s.EndedAt == 0 {
		t.Error("EndedAt should be stamped on terminal transition")
	}

	// Terminal states reject everything
	err := s.Transition(StateConnecting)
	if !IsDomainError(err, "WP-SESS-4090") {
		t.Errorf("transition out of terminal state: err = %v, want WP-SESS-4090", err)
	}
}

func TestSession_Transition_Illegal(t *testing.T) {
	s, _ := NewSession("client-1", "node-1")

	err := s.Transition(StateDisconnected)
	if !IsDomainError(err, "WP-SESS-4090") {
		t.Fatalf("err = %v, want WP-SESS-4090", err)
	}
	if s.State != StateConnecting {
		t.Errorf("state changed on rejected transition: %q", s.State)
	}
}

func TestSession_Fail(t *testing.T) {
	s, _ := NewSession("client-1", "node-1")

	if err := s.Fail(StateTimedOut, "connect deadline exceeded"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if s.State != StateTimedOut {
		t.Errorf("State = %q, want %q", s.State, StateTimedOut)
	}
	if s.TerminationReason != "connect deadline exceeded" {
		t.Errorf("TerminationReason = %q", s.TerminationReason)
	}
	if s.EndedAt == 0 {
		t.Error("EndedAt should be stamped")
	}
}

func TestSession_Fail_RejectsNonFailureStates(t *testing.T) {
	s, _ := NewSession("client-1", "node-1")
	if err := s.Fail(StateDisconnected, "nope"); err == nil {
		t.Error("Fail(Disconnected) should be rejected")
	}
}

func TestSession_IsActive(t *testing.T) {
	s, _ := NewSession("client-1", "node-1")
	if !s.IsActive() {
		t.Error("Connecting session should be active")
	}

	s.Transition(StateConnected)
	if !s.IsActive() {
		t.Error("Connected session should be active")
	}

	s.Transition(StateDisconnecting)
	if !s.IsActive() {
		t.Error("Disconnecting session should be active")
	}

	s.Transition(StateDisconnected)
	if s.IsActive() {
		t.Error("Disconnected session should not be active")
	}
}

func TestSession_AddTransfer(t *testing.T) {
	s, _ := NewSession("client-1", "node-1")

	s.AddTransfer(100, 200)
	s.AddTransfer(50, 25)

	if s.BytesUp != 150 {
		t.Errorf("BytesUp = %d, want 150", s.BytesUp)
	}
	if s.BytesDown != 225 {
		t.Errorf("BytesDown = %d, want 225", s.BytesDown)
	}
}

func TestSession_Duration(t *testing.T) {
	s, _ := NewSession("client-1", "node-1")
	s.StartedAt -= 5000 // five seconds ago

	d := s.Duration()
	if d.Seconds() < 4.9 || d.Seconds() > 6 {
		t.Errorf("live Duration = %v, want ~5s", d)
	}

	s.Transition(StateError)
	terminal := s.Duration()
	if terminal < d {
		t.Errorf("terminal Duration = %v, want >= %v", terminal, d)
	}
}
