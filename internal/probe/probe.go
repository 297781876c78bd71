// Package probe measures node reachability and latency.
//
// The telemetry scheduler treats all health figures as externally
// supplied observations; this package is the default supplier. A real
// deployment can substitute any other HealthProbe implementation
// without touching orchestration logic.
package probe

import (
	"context"
	"net"
	"time"

	"github.com/wirepool/wirepool-go/internal/core/domain"
)

// Result is one health observation for a node.
type Result struct {
	// Reachable reports whether the node answered.
	Reachable bool

	// PingMS is the measured round-trip time in milliseconds.
	// Meaningless when Reachable is false.
	PingMS int
}

// HealthProbe supplies health observations for nodes.
type HealthProbe interface {
	Probe(ctx context.Context, node *domain.ServerNode) (Result, error)
}

// DefaultTimeout bounds a single TCP probe.
const DefaultTimeout = 3 * time.Second

// TCPProbe measures reachability and RTT with a TCP dial against the
// node's address.
type TCPProbe struct {
	// Timeout bounds one dial. Zero means DefaultTimeout.
	Timeout time.Duration

	// Dialer overrides the dialer, used by tests.
	Dialer *net.Dialer
}

// Probe implements HealthProbe.
func (p *TCPProbe) Probe(ctx context.Context, node *domain.ServerNode) (Result, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dialer := p.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", node.Address)
	if err != nil {
		return Result{Reachable: false}, err
	}
	rtt := time.Since(start)
	_ = conn.Close()

	return Result{
		Reachable: true,
		PingMS:    int(rtt.Milliseconds()),
	}, nil
}

// StaticProbe returns fixed observations; useful for tests and for
// pools without probe connectivity.
type StaticProbe struct {
	Result Result
	Err    error
}

// Probe implements HealthProbe.
func (p *StaticProbe) Probe(context.Context, *domain.ServerNode) (Result, error) {
	return p.Result, p.Err
}
