package service

import (
	"context"
	"time"

	"github.com/wirepool/wirepool-go/internal/core/domain"
)

// CredentialIssuer generates per-session key material and a routable
// tunnel address. Implementations must be stateless: the credential is
// a pure function of the session and node.
type CredentialIssuer interface {
	Issue(ctx context.Context, session *domain.Session, node *domain.ServerNode) (*domain.Credential, error)
}

// ConfigStore persists the rendered client configuration for a session.
type ConfigStore interface {
	// Save persists the config payload for a session.
	Save(ctx context.Context, sessionID string, cred *domain.Credential, node *domain.ServerNode) error

	// Delete removes the persisted payload. Deleting an unknown
	// session is not an error.
	Delete(ctx context.Context, sessionID string) error
}

// TunnelProvisioner is the opaque control-plane collaborator that
// establishes and tears down the actual tunnel for a session.
type TunnelProvisioner interface {
	// Establish confirms the tunnel for a credential on a node.
	// It must honor ctx cancellation and deadline.
	Establish(ctx context.Context, cred *domain.Credential, node *domain.ServerNode) error

	// Teardown releases the tunnel for a session.
	Teardown(ctx context.Context, sessionID string) error
}

// AuditSink receives a structured record for every admission decision,
// state transition and error. Record delivery is fire-and-forget:
// implementations must never block the caller and their failures are
// swallowed.
type AuditSink interface {
	Record(rec domain.AuditRecord)
}

// EventPublisher delivers state-change events to observers.
type EventPublisher interface {
	// Publish delivers an event to one client's subscription,
	// dropping it when the subscriber is absent or slow.
	// Reports whether the event was delivered.
	Publish(clientID string, e domain.Event) bool

	// Broadcast fans an event out to all live subscribers and
	// returns the number of deliveries.
	Broadcast(e domain.Event) int
}

// Instrumentation receives lifecycle counts from the orchestrator.
// Implementations must not block; the orchestrator calls these inline.
type Instrumentation interface {
	// ConnectAttempt counts one connect by outcome: "accepted" for a
	// placed session, otherwise the refusal's error code.
	ConnectAttempt(outcome string)

	// SessionEnded counts one terminal session by cause ("client",
	// "superseded", "timed_out", "establish_failed", "node_offline")
	// together with its lifetime.
	SessionEnded(cause string, duration time.Duration)
}

// NopAuditSink discards all records.
type NopAuditSink struct{}

// Record implements AuditSink.
func (NopAuditSink) Record(domain.AuditRecord) {}

// NopEventPublisher discards all events.
type NopEventPublisher struct{}

// Publish implements EventPublisher.
func (NopEventPublisher) Publish(string, domain.Event) bool { return false }

// Broadcast implements EventPublisher.
func (NopEventPublisher) Broadcast(domain.Event) int { return 0 }

// NopInstrumentation discards all counts.
type NopInstrumentation struct{}

// ConnectAttempt implements Instrumentation.
func (NopInstrumentation) ConnectAttempt(string) {}

// SessionEnded implements Instrumentation.
func (NopInstrumentation) SessionEnded(string, time.Duration) {}
