package service

import (
	"sort"
	"sync"

	"github.com/wirepool/wirepool-go/internal/core/domain"
	"github.com/wirepool/wirepool-go/pkg/cmap"
)

// NodeDirectory owns the catalog of server nodes and their live
// capacity and health counters.
//
// Occupancy counters are guarded per node: reserve and release for the
// same node are linearizable, while operations on distinct nodes never
// contend. Selection reads are allowed to be slightly stale; callers
// retry selection when a reservation subsequently fails.
type NodeDirectory struct {
	nodes *cmap.Map[*nodeEntry]
}

// nodeEntry pairs a node with its guard. All reads and writes of the
// node go through the entry mutex.
type nodeEntry struct {
	mu   sync.Mutex
	node *domain.ServerNode
}

// NewNodeDirectory creates an empty directory.
func NewNodeDirectory() *NodeDirectory {
	return &NodeDirectory{
		nodes: cmap.New[*nodeEntry](),
	}
}

// AddNode registers a node in the catalog. New nodes start Healthy
// unless a health state is already set.
func (d *NodeDirectory) AddNode(node *domain.ServerNode) error {
	if err := node.Validate(); err != nil {
		return err
	}
	n := node.Clone()
	if n.HealthState == "" {
		n.HealthState = domain.HealthHealthy
	}
	if !d.nodes.SetIfAbsent(n.ID, &nodeEntry{node: n}) {
		return domain.ErrInvalidArgument.WithDetails("node already registered: " + n.ID)
	}
	return nil
}

// Deactivate flags a node as inactive. The node stays in the catalog:
// nodes referenced by sessions are never removed.
func (d *NodeDirectory) Deactivate(nodeID string) error {
	entry, ok := d.nodes.Get(nodeID)
	if !ok {
		return domain.ErrNodeNotFound.WithDetails(nodeID)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.node.Active = false
	return nil
}

// Get returns a copy of one node.
func (d *NodeDirectory) Get(nodeID string) (*domain.ServerNode, error) {
	entry, ok := d.nodes.Get(nodeID)
	if !ok {
		return nil, domain.ErrNodeNotFound.WithDetails(nodeID)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.node.Clone(), nil
}

// ListAvailable returns copies of the nodes matching the filter,
// excluding Offline and inactive nodes. Safe for concurrent callers;
// does not mutate state.
func (d *NodeDirectory) ListAvailable(filter *domain.NodeFilter) []*domain.ServerNode {
	if filter == nil {
		filter = &domain.NodeFilter{}
	}
	var out []*domain.ServerNode
	d.nodes.Range(func(_ string, entry *nodeEntry) bool {
		entry.mu.Lock()
		n := entry.node.Clone()
		entry.mu.Unlock()
		if !n.Active || n.HealthState == domain.HealthOffline {
			return true
		}
		if filter.Matches(n) {
			out = append(out, n)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot returns copies of every active node regardless of health.
// Used by the telemetry sweeps.
func (d *NodeDirectory) Snapshot() []*domain.ServerNode {
	var out []*domain.ServerNode
	d.nodes.Range(func(_ string, entry *nodeEntry) bool {
		entry.mu.Lock()
		n := entry.node.Clone()
		entry.mu.Unlock()
		if n.Active {
			out = append(out, n)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SelectOptimal picks the best node for a client, or fails with
// NoCapacityAvailable when no candidate qualifies.
//
// Candidates are Healthy nodes under the selection occupancy and load
// thresholds; free-tier clients only see non-premium nodes. When a
// preferred region has at least one candidate the choice is restricted
// to that region. Scoring weighs load and ping 40% each and occupancy
// 20%; ties break by lowest occupancy, then lowest load, then node ID
// order. No randomness: the choice is deterministic for a given view.
func (d *NodeDirectory) SelectOptimal(tier domain.ClientTier, preferredRegion string) (*domain.ServerNode, error) {
	var candidates []*domain.ServerNode
	d.nodes.Range(func(_ string, entry *nodeEntry) bool {
		entry.mu.Lock()
		n := entry.node.Clone()
		entry.mu.Unlock()
		if !n.IsSelectionCandidate() {
			return true
		}
		if tier == domain.TierFree && n.IsPremium {
			return true
		}
		candidates = append(candidates, n)
		return true
	})
	if len(candidates) == 0 {
		return nil, domain.ErrNoCapacityAvailable
	}

	if preferredRegion != "" {
		regional := candidates[:0:0]
		for _, n := range candidates {
			if (&domain.NodeFilter{Region: preferredRegion}).Matches(n) {
				regional = append(regional, n)
			}
		}
		if len(regional) > 0 {
			candidates = regional
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		sa, sb := a.Score(), b.Score()
		if sa != sb {
			return sa > sb
		}
		if a.CurrentOccupancy != b.CurrentOccupancy {
			return a.CurrentOccupancy < b.CurrentOccupancy
		}
		if a.CurrentLoad != b.CurrentLoad {
			return a.CurrentLoad < b.CurrentLoad
		}
		return a.ID < b.ID
	})
	return candidates[0], nil
}

// Reserve atomically claims one session slot on a node. It fails with
// AtCapacity when the node is at the reservation threshold and refuses
// Offline or inactive nodes outright.
func (d *NodeDirectory) Reserve(nodeID string) error {
	entry, ok := d.nodes.Get(nodeID)
	if !ok {
		return domain.ErrNodeNotFound.WithDetails(nodeID)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	n := entry.node
	if !n.Active || n.HealthState == domain.HealthOffline {
		return domain.ErrNodeOffline.WithDetails(nodeID)
	}
	if !n.AcceptsReservations() {
		return domain.ErrAtCapacity.WithDetails(nodeID)
	}
	n.CurrentOccupancy++
	return nil
}

// Release returns one session slot, floored at zero so a double
// release cannot corrupt the counter.
func (d *NodeDirectory) Release(nodeID string) {
	entry, ok := d.nodes.Get(nodeID)
	if !ok {
		return
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.node.CurrentOccupancy > 0 {
		entry.node.CurrentOccupancy--
	}
}

// ResetOccupancy zeroes a node's occupancy. Used by the health sweep
// after force-terminating the sessions of an Offline node.
func (d *NodeDirectory) ResetOccupancy(nodeID string) {
	entry, ok := d.nodes.Get(nodeID)
	if !ok {
		return
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.node.CurrentOccupancy = 0
}

// ApplyObservedMetrics overwrites a node's observed load, ping and
// health, clamped to their valid ranges. The telemetry scheduler is
// the only caller outside of tests.
func (d *NodeDirectory) ApplyObservedMetrics(nodeID string, load, pingMS int, health domain.HealthState) error {
	entry, ok := d.nodes.Get(nodeID)
	if !ok {
		return domain.ErrNodeNotFound.WithDetails(nodeID)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.node.Observe(load, pingMS, health)
	return nil
}
