package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wirepool/wirepool-go/internal/core/domain"
	"github.com/wirepool/wirepool-go/internal/core/service"
	"github.com/wirepool/wirepool-go/internal/probe"
	"github.com/wirepool/wirepool-go/internal/telemetry/logger"
)

// Sweep defaults. Expensive health probing runs rarely, cheap
// occupancy-derived load recalculation runs often and the read-only
// overload scan most often, keeping admission decisions fresh without
// paying probe cost on every tick.
const (
	DefaultHealthInterval   = 5 * time.Minute
	DefaultLoadInterval     = time.Minute
	DefaultOverloadInterval = 30 * time.Second
	DefaultProbeTimeout     = 3 * time.Second

	// degradedPingMS is the RTT above which a reachable node is
	// classified Degraded rather than Healthy.
	degradedPingMS = 300
)

// SweepConfig configures the telemetry sweeps.
type SweepConfig struct {
	HealthInterval   time.Duration
	LoadInterval     time.Duration
	OverloadInterval time.Duration
	ProbeTimeout     time.Duration
}

func (c SweepConfig) withDefaults() SweepConfig {
	if c.HealthInterval <= 0 {
		c.HealthInterval = DefaultHealthInterval
	}
	if c.LoadInterval <= 0 {
		c.LoadInterval = DefaultLoadInterval
	}
	if c.OverloadInterval <= 0 {
		c.OverloadInterval = DefaultOverloadInterval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	return c
}

// Sweeps holds the periodic recalculation tasks over the node pool.
// It is the only writer of observed metrics into the directory outside
// of reserve/release.
type Sweeps struct {
	cfg       SweepConfig
	directory *service.NodeDirectory
	orch      *service.SessionOrchestrator
	hp        probe.HealthProbe
	events    service.EventPublisher
	log       logger.Logger

	// lastPing holds the newest probe RTT per node. jitter holds the
	// delta between the two most recent probes; the load sweep folds
	// it into the utilization figure.
	mu       sync.Mutex
	lastPing map[string]int
	jitter   map[string]int
}

// NewSweeps wires the sweep tasks.
func NewSweeps(
	cfg SweepConfig,
	directory *service.NodeDirectory,
	orch *service.SessionOrchestrator,
	hp probe.HealthProbe,
	events service.EventPublisher,
	log logger.Logger,
) *Sweeps {
	if events == nil {
		events = service.NopEventPublisher{}
	}
	return &Sweeps{
		cfg:       cfg.withDefaults(),
		directory: directory,
		orch:      orch,
		hp:        hp,
		events:    events,
		log:       log.With("component", "sweeps"),
		lastPing:  make(map[string]int),
		jitter:    make(map[string]int),
	}
}

// Tasks returns the sweep task set for the scheduler.
func (s *Sweeps) Tasks() []Task {
	return []Task{
		{Name: "health-sweep", Interval: s.cfg.HealthInterval, Run: s.HealthSweep},
		{Name: "load-sweep", Interval: s.cfg.LoadInterval, Run: s.LoadSweep},
		{Name: "overload-sweep", Interval: s.cfg.OverloadInterval, Run: s.OverloadSweep},
	}
}

// HealthSweep probes every active node. Nodes are probed concurrently,
// each under its own timeout, so one hung probe cannot delay the rest.
// A failed or timed-out probe marks the node Offline at full load,
// force-terminates its sessions and resets its occupancy.
func (s *Sweeps) HealthSweep(ctx context.Context) error {
	nodes := s.directory.Snapshot()

	var wg sync.WaitGroup
	for _, node := range nodes {
		wg.Add(1)
		go func(node *domain.ServerNode) {
			defer wg.Done()
			s.probeNode(ctx, node)
		}(node)
	}
	wg.Wait()
	return nil
}

func (s *Sweeps) probeNode(ctx context.Context, node *domain.ServerNode) {
	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	result, err := s.hp.Probe(probeCtx, node)
	if err != nil || !result.Reachable {
		s.markOffline(node, err)
		return
	}

	health := domain.HealthHealthy
	if result.PingMS > degradedPingMS {
		health = domain.HealthDegraded
	}
	if aerr := s.directory.ApplyObservedMetrics(node.ID, node.CurrentLoad, result.PingMS, health); aerr != nil {
		s.log.Warn("apply health observation", "node_id", node.ID, "error", aerr)
	}

	s.mu.Lock()
	if prev, ok := s.lastPing[node.ID]; ok {
		d := result.PingMS - prev
		if d < 0 {
			d = -d
		}
		s.jitter[node.ID] = d
	}
	s.lastPing[node.ID] = result.PingMS
	s.mu.Unlock()
}

func (s *Sweeps) markOffline(node *domain.ServerNode, cause error) {
	detail := "health probe failed"
	if cause != nil {
		detail = fmt.Sprintf("health probe failed: %v", cause)
	}
	s.log.Warn("node offline", "node_id", node.ID, "detail", detail)

	if err := s.directory.ApplyObservedMetrics(node.ID, 100, node.PingMS, domain.HealthOffline); err != nil {
		s.log.Warn("apply offline observation", "node_id", node.ID, "error", err)
		return
	}
	reason := fmt.Sprintf("node %s offline: %s", node.ID, detail)
	terminated := s.orch.ForceTerminate(node.ID, reason)
	s.directory.ResetOccupancy(node.ID)
	if terminated > 0 {
		s.log.Warn("force-terminated sessions", "node_id", node.ID, "count", terminated)
	}
}

// LoadSweep recomputes each node's load from occupancy plus the ping
// jitter between the two most recent health probes. Offline nodes are
// left alone; the health sweep owns them.
func (s *Sweeps) LoadSweep(_ context.Context) error {
	for _, node := range s.directory.Snapshot() {
		if node.HealthState == domain.HealthOffline {
			continue
		}

		load := int(100 * node.OccupancyFraction())

		s.mu.Lock()
		jitter, ok := s.jitter[node.ID]
		s.mu.Unlock()
		if ok {
			// A jittery link counts against the node. Scaled down so
			// occupancy stays the dominant term.
			load += jitter / 10
		}

		if err := s.directory.ApplyObservedMetrics(node.ID, load, node.PingMS, node.HealthState); err != nil {
			s.log.Warn("apply load observation", "node_id", node.ID, "error", err)
		}
	}
	return nil
}

// OverloadSweep raises an OverloadDetected event for every node over
// the load or occupancy thresholds. Read-only: no state mutation.
func (s *Sweeps) OverloadSweep(_ context.Context) error {
	for _, node := range s.directory.Snapshot() {
		if !node.IsOverloaded() {
			continue
		}
		s.events.Broadcast(domain.NewEvent(domain.EventOverloadDetected, map[string]any{
			"node_id":   node.ID,
			"load":      node.CurrentLoad,
			"occupancy": node.CurrentOccupancy,
			"capacity":  node.MaxCapacity,
		}))
	}
	return nil
}
