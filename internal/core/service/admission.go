package service

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/wirepool/wirepool-go/pkg/cmap"
)

// Limit class names. Each class is evaluated independently; any one
// rejecting a request short-circuits before the orchestrator runs.
const (
	LimitConnect = "connect" // connect attempts per client
	LimitGeneric = "generic" // any call per network origin
	LimitAccount = "account" // any call per client account
)

// LimitSpec describes one counting-window limit.
type LimitSpec struct {
	// Window is the counting window duration.
	Window time.Duration

	// MaxCount is the number of calls admitted per window.
	MaxCount int
}

// DefaultLimits returns the default limit specs per operation class.
func DefaultLimits() map[string]LimitSpec {
	return map[string]LimitSpec{
		LimitConnect: {Window: time.Minute, MaxCount: 10},
		LimitGeneric: {Window: time.Minute, MaxCount: 120},
		LimitAccount: {Window: time.Minute, MaxCount: 60},
	}
}

// AdmissionGate is a counting-window limiter guarding entry into the
// orchestrator. Each (class, key) pair gets its own token bucket sized
// to the class's window and count.
type AdmissionGate struct {
	specs    map[string]LimitSpec
	limiters *cmap.Map[*rate.Limiter]
}

// NewAdmissionGate creates a gate with the given limit specs.
// Nil or empty specs fall back to DefaultLimits.
func NewAdmissionGate(specs map[string]LimitSpec) *AdmissionGate {
	if len(specs) == 0 {
		specs = DefaultLimits()
	}
	return &AdmissionGate{
		specs:    specs,
		limiters: cmap.New[*rate.Limiter](),
	}
}

// Allow reports whether one more call in the given class is admitted
// for the key. Unknown classes admit everything.
func (g *AdmissionGate) Allow(class, key string) bool {
	spec, ok := g.specs[class]
	if !ok || spec.MaxCount <= 0 || spec.Window <= 0 {
		return true
	}
	return g.limiter(class, key, spec).Allow()
}

// limiter returns the bucket for a (class, key) pair, creating it on
// first use. The bucket refills at MaxCount per Window with a burst of
// MaxCount, approximating the counting window.
func (g *AdmissionGate) limiter(class, key string, spec LimitSpec) *rate.Limiter {
	id := class + "|" + key
	return g.limiters.Update(id, func(l *rate.Limiter, exists bool) *rate.Limiter {
		if exists {
			return l
		}
		perSecond := float64(spec.MaxCount) / spec.Window.Seconds()
		return rate.NewLimiter(rate.Limit(perSecond), spec.MaxCount)
	})
}

// Prune drops buckets that have refilled to full burst. Such a bucket
// behaves exactly like a fresh one, so evicting it cannot change an
// admission decision; it only keeps the table bounded by the set of
// recently active keys. A request racing the prune is re-counted
// against a fresh bucket, worth at most one extra admit per window.
// Returns the number of buckets dropped.
func (g *AdmissionGate) Prune() int {
	var idle []string
	g.limiters.Range(func(id string, l *rate.Limiter) bool {
		if l.Tokens() >= float64(l.Burst()) {
			idle = append(idle, id)
		}
		return true
	})
	for _, id := range idle {
		g.limiters.Delete(id)
	}
	return len(idle)
}

// Reset drops all per-key buckets.
func (g *AdmissionGate) Reset() {
	g.limiters.Clear()
}
