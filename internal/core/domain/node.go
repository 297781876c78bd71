package domain

import (
	"strings"
	"time"
)

// HealthState describes the observed health of a server node.
type HealthState string

// Health states for a server node.
const (
	HealthHealthy  HealthState = "healthy"
	HealthDegraded HealthState = "degraded"
	HealthOffline  HealthState = "offline"
)

// ClientTier distinguishes free and premium clients for node selection.
type ClientTier string

// Client tiers.
const (
	TierFree    ClientTier = "free"
	TierPremium ClientTier = "premium"
)

// Node capacity thresholds. Selection stops considering a node earlier
// than reservation stops admitting to it; the two thresholds are
// intentionally distinct.
const (
	// SelectOccupancyFraction is the occupancy fraction above which a node
	// is no longer a selection candidate.
	SelectOccupancyFraction = 0.9

	// ReserveOccupancyFraction is the occupancy fraction above which a
	// reservation is refused.
	ReserveOccupancyFraction = 0.95

	// SelectMaxLoad is the load above which a node is no longer a
	// selection candidate.
	SelectMaxLoad = 80

	// OverloadLoadThreshold is the load at which a node is reported
	// as overloaded.
	OverloadLoadThreshold = 90
)

// ServerNode represents one shared endpoint in the pool.
//
// Occupancy is mutated only through directory reserve/release; load, ping
// and health are observed figures written by the telemetry scheduler.
// Nodes are never deleted while referenced by a session; deactivation
// flips the Active flag instead.
type ServerNode struct {
	// ID is the stable node identifier.
	ID string `json:"id"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// Address is the routable network address (host:port).
	Address string `json:"address"`

	// PublicKey is the node's tunnel public key, handed to clients
	// as the peer key.
	PublicKey string `json:"public_key"`

	// Region is the geographic tag (e.g. "eu-west").
	Region string `json:"region"`

	// IsPremium restricts the node to premium-tier clients.
	IsPremium bool `json:"is_premium"`

	// Active is the deactivation flag. Inactive nodes are kept in the
	// catalog but excluded from listing and selection.
	Active bool `json:"active"`

	// MaxCapacity is the maximum number of concurrent sessions.
	MaxCapacity int `json:"max_capacity"`

	// CurrentOccupancy is the number of reserved session slots.
	// Invariant: 0 <= CurrentOccupancy <= MaxCapacity.
	CurrentOccupancy int `json:"current_occupancy"`

	// CurrentLoad is the observed utilization score in [0,100].
	CurrentLoad int `json:"current_load"`

	// PingMS is the last observed round-trip time in milliseconds.
	PingMS int `json:"ping_ms"`

	// HealthState is the observed health classification.
	HealthState HealthState `json:"health_state"`

	// LastObservedAt is when load/ping/health were last written
	// (Unix milliseconds, 0 when never observed).
	LastObservedAt int64 `json:"last_observed_at"`
}

// NodeFilter selects a subset of the node catalog.
type NodeFilter struct {
	// Region restricts results to one region when non-empty.
	Region string

	// PremiumOnly restricts results to premium nodes.
	PremiumOnly bool
}

// Matches reports whether the node satisfies the filter.
func (f *NodeFilter) Matches(n *ServerNode) bool {
	if f.Region != "" && !strings.EqualFold(f.Region, n.Region) {
		return false
	}
	if f.PremiumOnly && !n.IsPremium {
		return false
	}
	return true
}

// Validate validates the node fields against catalog constraints.
func (n *ServerNode) Validate() error {
	var violations []string
	if n.ID == "" {
		violations = append(violations, "id is required")
	}
	if n.Address == "" {
		violations = append(violations, "address is required")
	}
	if n.MaxCapacity <= 0 {
		violations = append(violations, "max_capacity must be positive")
	}
	if n.CurrentOccupancy < 0 || n.CurrentOccupancy > n.MaxCapacity {
		violations = append(violations, "current_occupancy out of range")
	}
	if len(violations) > 0 {
		return ErrInvalidArgument.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

// AcceptsReservations reports whether the node may take a new reservation.
// Offline and inactive nodes never accept; occupancy is checked against
// the reservation threshold.
func (n *ServerNode) AcceptsReservations() bool {
	if !n.Active || n.HealthState == HealthOffline {
		return false
	}
	return float64(n.CurrentOccupancy) < ReserveOccupancyFraction*float64(n.MaxCapacity)
}

// IsSelectionCandidate reports whether the node qualifies for optimal
// selection: healthy, under the selection occupancy threshold and under
// the load ceiling.
func (n *ServerNode) IsSelectionCandidate() bool {
	if !n.Active || n.HealthState != HealthHealthy {
		return false
	}
	if float64(n.CurrentOccupancy) >= SelectOccupancyFraction*float64(n.MaxCapacity) {
		return false
	}
	return n.CurrentLoad < SelectMaxLoad
}

// Score computes the selection score for a candidate node.
// Higher is better: low load and ping weigh 40% each, low occupancy 20%.
func (n *ServerNode) Score() float64 {
	ping := n.PingMS
	if ping > 200 {
		ping = 200
	}
	occupancyPct := 100 * float64(n.CurrentOccupancy) / float64(n.MaxCapacity)
	return 0.4*float64(100-n.CurrentLoad) +
		0.4*(100-float64(ping)/2) +
		0.2*(100-occupancyPct)
}

// OccupancyFraction returns occupancy as a fraction of capacity.
func (n *ServerNode) OccupancyFraction() float64 {
	if n.MaxCapacity == 0 {
		return 0
	}
	return float64(n.CurrentOccupancy) / float64(n.MaxCapacity)
}

// IsOverloaded reports whether the node exceeds the overload thresholds
// used by the operator-facing overload sweep.
func (n *ServerNode) IsOverloaded() bool {
	return n.CurrentLoad > OverloadLoadThreshold ||
		n.OccupancyFraction() > ReserveOccupancyFraction
}

// Observe overwrites the observed metrics, clamped to their valid ranges,
// and stamps LastObservedAt.
func (n *ServerNode) Observe(load, pingMS int, health HealthState) {
	if load < 0 {
		load = 0
	}
	if load > 100 {
		load = 100
	}
	if pingMS < 0 {
		pingMS = 0
	}
	n.CurrentLoad = load
	n.PingMS = pingMS
	n.HealthState = health
	n.LastObservedAt = time.Now().UnixMilli()
}

// Clone creates a copy of the node.
func (n *ServerNode) Clone() *ServerNode {
	clone := *n
	return &clone
}

// LastObservedTime returns LastObservedAt as time.Time.
func (n *ServerNode) LastObservedTime() time.Time {
	if n.LastObservedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(n.LastObservedAt)
}
