package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wirepool/wirepool-go/internal/core/domain"
	"github.com/wirepool/wirepool-go/pkg/cmap"
)

// Orchestrator defaults.
const (
	// DefaultConnectDeadline bounds the Connecting -> Connected settle.
	DefaultConnectDeadline = 10 * time.Second

	// DefaultSettleDelay is the fixed settle delay used when no tunnel
	// provisioner is configured.
	DefaultSettleDelay = 500 * time.Millisecond

	// DefaultSelectRetries bounds selection retries when a selected
	// node fills up before the reservation lands.
	DefaultSelectRetries = 3
)

// OrchestratorConfig configures the session orchestrator.
type OrchestratorConfig struct {
	// ConnectDeadline is how long a session may stay in Connecting
	// before it is moved to TimedOut and its slot released.
	ConnectDeadline time.Duration

	// SettleDelay is the simulated settle time used when Provisioner
	// is nil.
	SettleDelay time.Duration

	// SelectRetries is the number of extra selection attempts after a
	// reservation race loss.
	SelectRetries int
}

func (c *OrchestratorConfig) withDefaults() OrchestratorConfig {
	out := *c
	if out.ConnectDeadline <= 0 {
		out.ConnectDeadline = DefaultConnectDeadline
	}
	if out.SettleDelay <= 0 {
		out.SettleDelay = DefaultSettleDelay
	}
	if out.SelectRetries <= 0 {
		out.SelectRetries = DefaultSelectRetries
	}
	return out
}

// SessionOrchestrator owns the session state machine. It coordinates
// node reservation, credential issuance, persistence and event
// publication, and enforces the single-active-session-per-client
// invariant.
type SessionOrchestrator struct {
	cfg         OrchestratorConfig
	directory   *NodeDirectory
	issuer      CredentialIssuer
	store       ConfigStore
	provisioner TunnelProvisioner
	audit       AuditSink
	events      EventPublisher
	instr       Instrumentation

	// sessions is the session table: session ID -> guarded entry.
	sessions *cmap.Map[*sessionEntry]

	// activeByClient maps a client to its one active session ID.
	activeByClient *cmap.Map[string]

	// clientLocks serializes per-client connect/supersession so the
	// old session is fully released before the new reservation.
	// Entries live for the life of the process: a waiter may hold the
	// mutex pointer at any moment, so eviction is unsafe. One mutex
	// per client ever seen.
	clientLocks *cmap.Map[*sync.Mutex]

	// settles holds the cancel functions of in-flight settle tasks.
	settles *cmap.Map[context.CancelFunc]

	// credentials holds issued key material until the owning session
	// reaches a terminal state, at which point it is wiped.
	credentials *cmap.Map[*domain.Credential]
}

// sessionEntry pairs a session with its guard. State transitions and
// metric updates happen under the entry mutex.
type sessionEntry struct {
	mu sync.Mutex
	s  *domain.Session
}

// OrchestratorOption configures optional orchestrator collaborators.
type OrchestratorOption func(*SessionOrchestrator)

// WithInstrumentation wires a lifecycle metrics receiver.
func WithInstrumentation(in Instrumentation) OrchestratorOption {
	return func(o *SessionOrchestrator) {
		if in != nil {
			o.instr = in
		}
	}
}

// NewSessionOrchestrator creates a session orchestrator.
// issuer and directory are required; store, provisioner, audit and
// events may be nil and default to no-ops.
func NewSessionOrchestrator(
	cfg OrchestratorConfig,
	directory *NodeDirectory,
	issuer CredentialIssuer,
	store ConfigStore,
	provisioner TunnelProvisioner,
	audit AuditSink,
	events EventPublisher,
	opts ...OrchestratorOption,
) *SessionOrchestrator {
	if audit == nil {
		audit = NopAuditSink{}
	}
	if events == nil {
		events = NopEventPublisher{}
	}
	o := &SessionOrchestrator{
		cfg:            cfg.withDefaults(),
		directory:      directory,
		issuer:         issuer,
		store:          store,
		provisioner:    provisioner,
		audit:          audit,
		events:         events,
		instr:          NopInstrumentation{},
		sessions:       cmap.New[*sessionEntry](),
		activeByClient: cmap.New[string](),
		clientLocks:    cmap.New[*sync.Mutex](),
		settles:        cmap.New[context.CancelFunc](),
		credentials:    cmap.New[*domain.Credential](),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// clientLock returns the mutex serializing operations for one client.
func (o *SessionOrchestrator) clientLock(clientID string) *sync.Mutex {
	return o.clientLocks.Update(clientID, func(mu *sync.Mutex, exists bool) *sync.Mutex {
		if exists {
			return mu
		}
		return &sync.Mutex{}
	})
}

// ============================================================================
// Connect
// ============================================================================

// ConnectRequest contains parameters for session establishment.
type ConnectRequest struct {
	ClientID        string            // Required
	NodeID          string            // Optional: pin a specific node
	PreferredRegion string            // Optional: bias node selection
	Tier            domain.ClientTier // Defaults to free
}

// ConnectResponse contains the result of session establishment.
// The caller observes the session in Connecting; Connected arrives
// asynchronously via the event bus or a status query.
type ConnectResponse struct {
	Session    *domain.Session
	Credential *domain.Credential
	Node       *domain.ServerNode
}

// Connect establishes a new session for a client.
//
// Any prior non-terminal session of the same client is superseded
// synchronously (fully released) before the new reservation is
// attempted. When no node is pinned, selection retries a bounded
// number of times against reservation races before giving up with
// NoCapacityAvailable. Any failure after the reservation releases the
// slot and marks the session Error with a cause code.
func (o *SessionOrchestrator) Connect(ctx context.Context, req *ConnectRequest) (*ConnectResponse, error) {
	if req.ClientID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("client_id is required")
	}
	tier := req.Tier
	if tier == "" {
		tier = domain.TierFree
	}

	mu := o.clientLock(req.ClientID)
	mu.Lock()
	defer mu.Unlock()

	// Supersession: the old session must be fully released before the
	// new reservation, so one client can never hold two live sessions.
	if prevID, ok := o.activeByClient.Get(req.ClientID); ok {
		o.supersede(ctx, prevID)
	}

	node, err := o.reserveNode(req.NodeID, tier, req.PreferredRegion)
	if err != nil {
		o.instr.ConnectAttempt(domain.GetErrorCode(err))
		o.auditRecord(domain.AuditConnect, req.ClientID, "", req.NodeID, "refused", err.Error())
		return nil, err
	}

	session, err := domain.NewSession(req.ClientID, node.ID)
	if err != nil {
		o.directory.Release(node.ID)
		o.instr.ConnectAttempt(domain.GetErrorCode(err))
		return nil, err
	}
	o.sessions.Set(session.ID, &sessionEntry{s: session})
	o.activeByClient.Set(req.ClientID, session.ID)

	cred, err := o.issuer.Issue(ctx, session, node)
	if err != nil {
		ferr := domain.ErrCredentialGeneration.WithCause(err)
		o.instr.ConnectAttempt(domain.GetErrorCode(ferr))
		o.abandonConnect(session, ferr.Error())
		return nil, ferr
	}
	o.credentials.Set(session.ID, cred)

	if o.store != nil {
		if err := o.store.Save(ctx, session.ID, cred, node); err != nil {
			ferr := domain.ErrPersistenceFailed.WithCause(err)
			o.instr.ConnectAttempt(domain.GetErrorCode(ferr))
			o.abandonConnect(session, ferr.Error())
			return nil, ferr
		}
	}

	o.events.Publish(req.ClientID, domain.NewEvent(domain.EventSessionStarted, map[string]any{
		"session_id": session.ID,
		"node_id":    node.ID,
		"state":      string(domain.StateConnecting),
	}))
	o.auditRecord(domain.AuditConnect, req.ClientID, session.ID, node.ID, "accepted", "")
	o.instr.ConnectAttempt("accepted")

	o.scheduleSettle(session.ID, cred, node)

	return &ConnectResponse{
		Session:    session.Clone(),
		Credential: cred,
		Node:       node,
	}, nil
}

// reserveNode resolves and reserves the target node. Pinned nodes
// surface AtCapacity directly; selection retries on a race loss.
func (o *SessionOrchestrator) reserveNode(nodeID string, tier domain.ClientTier, region string) (*domain.ServerNode, error) {
	if nodeID != "" {
		node, err := o.directory.Get(nodeID)
		if err != nil {
			return nil, err
		}
		if err := o.directory.Reserve(node.ID); err != nil {
			return nil, err
		}
		return node, nil
	}

	for attempt := 0; attempt <= o.cfg.SelectRetries; attempt++ {
		node, err := o.directory.SelectOptimal(tier, region)
		if err != nil {
			return nil, err
		}
		err = o.directory.Reserve(node.ID)
		if err == nil {
			return node, nil
		}
		// The node filled up between selection and reservation.
		// Stale-read race, retry selection.
		if !errors.Is(err, domain.ErrAtCapacity) && !errors.Is(err, domain.ErrNodeOffline) {
			return nil, err
		}
	}
	return nil, domain.ErrNoCapacityAvailable
}

// abandonConnect rolls back a post-reservation connect failure: the
// slot is released and the session marked Error with the cause.
func (o *SessionOrchestrator) abandonConnect(session *domain.Session, reason string) {
	entry, ok := o.sessions.Get(session.ID)
	if !ok {
		return
	}
	entry.mu.Lock()
	if entry.s.IsActive() {
		_ = entry.s.Fail(domain.StateError, reason)
	}
	clientID, nodeID := entry.s.ClientID, entry.s.NodeID
	entry.mu.Unlock()

	o.directory.Release(nodeID)
	o.dropActive(clientID, session.ID)
	o.wipeCredential(session.ID)
	o.auditRecord(domain.AuditTransition, clientID, session.ID, nodeID, "error", reason)
}

// supersede force-disconnects a client's prior session. Runs under the
// client lock; completes before the caller proceeds.
func (o *SessionOrchestrator) supersede(ctx context.Context, sessionID string) {
	entry, ok := o.sessions.Get(sessionID)
	if !ok {
		return
	}
	o.cancelSettle(sessionID)

	entry.mu.Lock()
	s := entry.s
	if !s.IsActive() {
		entry.mu.Unlock()
		return
	}
	_ = s.Transition(domain.StateDisconnecting)
	_ = s.Transition(domain.StateDisconnected)
	s.TerminationReason = "superseded by new connection"
	clientID, nodeID := s.ClientID, s.NodeID
	duration := s.Duration()
	entry.mu.Unlock()

	o.directory.Release(nodeID)
	o.dropActive(clientID, sessionID)
	o.wipeCredential(sessionID)
	o.deletePersisted(ctx, sessionID)
	o.teardownTunnel(sessionID)

	o.events.Publish(clientID, domain.NewEvent(domain.EventSessionEnded, map[string]any{
		"session_id":  sessionID,
		"node_id":     nodeID,
		"reason":      "superseded",
		"duration_ms": duration.Milliseconds(),
	}))
	o.auditRecord(domain.AuditDisconnect, clientID, sessionID, nodeID, "superseded", "")
	o.instr.SessionEnded("superseded", duration)
}

// ============================================================================
// Settle (Connecting -> Connected)
// ============================================================================

// scheduleSettle starts the cancellable deferred task that moves the
// session to Connected once the provisioner confirms, or to TimedOut
// when the connect deadline passes first.
func (o *SessionOrchestrator) scheduleSettle(sessionID string, cred *domain.Credential, node *domain.ServerNode) {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.ConnectDeadline)
	o.settles.Set(sessionID, cancel)

	go func() {
		defer cancel()
		defer o.settles.Delete(sessionID)

		var err error
		if o.provisioner != nil {
			err = o.provisioner.Establish(ctx, cred, node)
		} else {
			// No control plane wired in: settle after a fixed delay.
			select {
			case <-time.After(o.cfg.SettleDelay):
			case <-ctx.Done():
				err = ctx.Err()
			}
		}
		o.completeSettle(sessionID, ctx, err)
	}()
}

// completeSettle applies the settle outcome, checked against the
// current state so a terminated session is never resurrected.
func (o *SessionOrchestrator) completeSettle(sessionID string, ctx context.Context, establishErr error) {
	entry, ok := o.sessions.Get(sessionID)
	if !ok {
		return
	}

	entry.mu.Lock()
	s := entry.s
	if s.State != domain.StateConnecting {
		// Disconnected or failed while we were settling: no-op.
		entry.mu.Unlock()
		return
	}

	switch {
	case establishErr == nil:
		_ = s.Transition(domain.StateConnected)
		clientID, nodeID := s.ClientID, s.NodeID
		entry.mu.Unlock()
		o.events.Publish(clientID, domain.NewEvent(domain.EventSessionStarted, map[string]any{
			"session_id": sessionID,
			"node_id":    nodeID,
			"state":      string(domain.StateConnected),
		}))
		o.auditRecord(domain.AuditTransition, clientID, sessionID, nodeID, "connected", "")

	case errors.Is(establishErr, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded:
		_ = s.Fail(domain.StateTimedOut, domain.ErrConnectTimeout.Message)
		o.finishFailedSettle(entry, sessionID, "timed_out")

	case errors.Is(establishErr, context.Canceled):
		// Cancelled by a concurrent disconnect; that path owns cleanup.
		entry.mu.Unlock()

	default:
		_ = s.Fail(domain.StateError, domain.ErrTunnelEstablish.WithCause(establishErr).Error())
		o.finishFailedSettle(entry, sessionID, "establish_failed")
	}
}

// finishFailedSettle releases resources for a settle failure.
// Called with entry.mu held; unlocks it.
func (o *SessionOrchestrator) finishFailedSettle(entry *sessionEntry, sessionID, outcome string) {
	clientID, nodeID := entry.s.ClientID, entry.s.NodeID
	reason := entry.s.TerminationReason
	duration := entry.s.Duration()
	entry.mu.Unlock()

	o.directory.Release(nodeID)
	o.dropActive(clientID, sessionID)
	o.wipeCredential(sessionID)
	o.deletePersisted(context.Background(), sessionID)

	o.events.Publish(clientID, domain.NewEvent(domain.EventSessionEnded, map[string]any{
		"session_id": sessionID,
		"node_id":    nodeID,
		"reason":     outcome,
	}))
	o.auditRecord(domain.AuditTransition, clientID, sessionID, nodeID, outcome, reason)
	o.instr.SessionEnded(outcome, duration)
}

// cancelSettle cancels an in-flight settle task, if any.
func (o *SessionOrchestrator) cancelSettle(sessionID string) {
	if cancel, ok := o.settles.Pop(sessionID); ok {
		cancel()
	}
}

// ============================================================================
// Disconnect
// ============================================================================

// DisconnectResponse contains the result of an orderly disconnect.
type DisconnectResponse struct {
	Session   *domain.Session
	Duration  time.Duration
	BytesUp   uint64
	BytesDown uint64
}

// Disconnect ends a session. It fails with AccessDenied when the
// requesting client does not own the session and is a no-op when the
// session is already terminal. A disconnect racing an in-flight
// connect cancels the pending settle.
func (o *SessionOrchestrator) Disconnect(ctx context.Context, sessionID, clientID string) (*DisconnectResponse, error) {
	if sessionID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("session_id is required")
	}
	entry, ok := o.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound.WithDetails(sessionID)
	}

	entry.mu.Lock()
	s := entry.s
	if s.ClientID != clientID {
		entry.mu.Unlock()
		o.auditRecord(domain.AuditDisconnect, clientID, sessionID, "", "denied", "ownership mismatch")
		return nil, domain.ErrAccessDenied
	}
	if !s.IsActive() {
		resp := o.disconnectResult(s)
		entry.mu.Unlock()
		return resp, nil
	}

	o.cancelSettle(sessionID)
	_ = s.Transition(domain.StateDisconnecting)
	nodeID := s.NodeID
	o.directory.Release(nodeID)
	_ = s.Transition(domain.StateDisconnected)
	resp := o.disconnectResult(s)
	entry.mu.Unlock()

	o.dropActive(clientID, sessionID)
	o.wipeCredential(sessionID)
	o.deletePersisted(ctx, sessionID)
	o.teardownTunnel(sessionID)

	o.events.Publish(clientID, domain.NewEvent(domain.EventSessionEnded, map[string]any{
		"session_id":  sessionID,
		"node_id":     nodeID,
		"reason":      "disconnected",
		"duration_ms": resp.Duration.Milliseconds(),
	}))
	o.auditRecord(domain.AuditDisconnect, clientID, sessionID, nodeID, "disconnected", "")
	o.instr.SessionEnded("client", resp.Duration)
	return resp, nil
}

func (o *SessionOrchestrator) disconnectResult(s *domain.Session) *DisconnectResponse {
	return &DisconnectResponse{
		Session:   s.Clone(),
		Duration:  s.Duration(),
		BytesUp:   s.BytesUp,
		BytesDown: s.BytesDown,
	}
}

// ============================================================================
// Metrics
// ============================================================================

// MetricsUpdate carries one transfer report from a client.
// Byte figures are deltas added to the running totals; speed and ping
// are absolute snapshots.
type MetricsUpdate struct {
	BytesUpDelta   int64
	BytesDownDelta int64
	SpeedMbps      float64
	PingMS         int
}

// UpdateMetrics records a transfer report against a Connected session.
func (o *SessionOrchestrator) UpdateMetrics(ctx context.Context, sessionID, clientID string, update *MetricsUpdate) (*domain.Session, error) {
	if sessionID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("session_id is required")
	}
	if update.BytesUpDelta < 0 || update.BytesDownDelta < 0 {
		return nil, domain.ErrInvalidArgument.WithDetails("byte deltas must be non-negative")
	}
	if update.PingMS < 0 || update.SpeedMbps < 0 {
		return nil, domain.ErrInvalidArgument.WithDetails("snapshots must be non-negative")
	}

	entry, ok := o.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound.WithDetails(sessionID)
	}

	entry.mu.Lock()
	s := entry.s
	if s.ClientID != clientID {
		entry.mu.Unlock()
		return nil, domain.ErrAccessDenied
	}
	if s.State != domain.StateConnected {
		entry.mu.Unlock()
		return nil, domain.ErrSessionNotConnected.WithDetails(string(s.State))
	}
	s.AddTransfer(uint64(update.BytesUpDelta), uint64(update.BytesDownDelta))
	s.SpeedMbps = update.SpeedMbps
	s.PingMS = update.PingMS
	s.LastMetricsAt = time.Now().UnixMilli()
	snapshot := s.Clone()
	entry.mu.Unlock()

	o.events.Publish(clientID, domain.NewEvent(domain.EventMetricsUpdated, map[string]any{
		"session_id": sessionID,
		"bytes_up":   snapshot.BytesUp,
		"bytes_down": snapshot.BytesDown,
		"speed_mbps": snapshot.SpeedMbps,
		"ping_ms":    snapshot.PingMS,
	}))
	o.auditRecord(domain.AuditUpdateMetrics, clientID, sessionID, snapshot.NodeID, "updated", "")
	return snapshot, nil
}

// ============================================================================
// Status / force termination
// ============================================================================

// GetStatus returns the client's current active session, or nil when
// the client holds none.
func (o *SessionOrchestrator) GetStatus(clientID string) (*domain.Session, error) {
	if clientID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("client_id is required")
	}
	sessionID, ok := o.activeByClient.Get(clientID)
	if !ok {
		return nil, nil
	}
	entry, ok := o.sessions.Get(sessionID)
	if !ok {
		return nil, nil
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if !entry.s.IsActive() {
		return nil, nil
	}
	return entry.s.Clone(), nil
}

// GetSession returns any session by ID, subject to ownership.
func (o *SessionOrchestrator) GetSession(sessionID, clientID string) (*domain.Session, error) {
	entry, ok := o.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound.WithDetails(sessionID)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.s.ClientID != clientID {
		return nil, domain.ErrAccessDenied
	}
	return entry.s.Clone(), nil
}

// ForceTerminate moves every active session on a node straight to
// Error with the given reason. No per-session slot release happens
// here: the caller resets the node's occupancy separately.
func (o *SessionOrchestrator) ForceTerminate(nodeID, reason string) int {
	terminated := 0
	o.sessions.Range(func(id string, entry *sessionEntry) bool {
		entry.mu.Lock()
		s := entry.s
		if s.NodeID != nodeID || !s.IsActive() {
			entry.mu.Unlock()
			return true
		}
		o.cancelSettle(id)
		_ = s.Fail(domain.StateError, reason)
		clientID := s.ClientID
		duration := s.Duration()
		entry.mu.Unlock()

		o.dropActive(clientID, id)
		o.wipeCredential(id)
		o.deletePersisted(context.Background(), id)
		o.teardownTunnel(id)

		o.events.Publish(clientID, domain.NewEvent(domain.EventSessionEnded, map[string]any{
			"session_id": id,
			"node_id":    nodeID,
			"reason":     reason,
		}))
		o.auditRecord(domain.AuditForceTerminate, clientID, id, nodeID, "error", reason)
		o.instr.SessionEnded("node_offline", duration)
		terminated++
		return true
	})
	return terminated
}

// ActiveSessionCount returns the number of non-terminal sessions.
func (o *SessionOrchestrator) ActiveSessionCount() int {
	return o.activeByClient.Count()
}

// ============================================================================
// Helpers
// ============================================================================

// dropActive clears the client's active pointer if it still references
// the given session.
func (o *SessionOrchestrator) dropActive(clientID, sessionID string) {
	if cur, ok := o.activeByClient.Get(clientID); ok && cur == sessionID {
		o.activeByClient.Delete(clientID)
	}
}

// wipeCredential discards the key material of a terminal session.
func (o *SessionOrchestrator) wipeCredential(sessionID string) {
	if cred, ok := o.credentials.Pop(sessionID); ok {
		cred.Wipe()
	}
}

// deletePersisted removes the stored config payload, best-effort.
func (o *SessionOrchestrator) deletePersisted(ctx context.Context, sessionID string) {
	if o.store == nil {
		return
	}
	if err := o.store.Delete(ctx, sessionID); err != nil {
		o.auditRecord(domain.AuditTransition, "", sessionID, "", "persistence_error", err.Error())
	}
}

// teardownTunnel asks the provisioner to drop the tunnel, best-effort.
func (o *SessionOrchestrator) teardownTunnel(sessionID string) {
	if o.provisioner == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.provisioner.Teardown(ctx, sessionID)
}

func (o *SessionOrchestrator) auditRecord(action domain.AuditAction, clientID, sessionID, nodeID, outcome, detail string) {
	o.audit.Record(domain.AuditRecord{
		Action:    action,
		ClientID:  clientID,
		SessionID: sessionID,
		NodeID:    nodeID,
		Outcome:   outcome,
		Detail:    detail,
		Timestamp: time.Now().UnixMilli(),
	})
}
