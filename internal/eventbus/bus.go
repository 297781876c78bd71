package eventbus

import (
	"sync"
	"time"

	"github.com/wirepool/wirepool-go/internal/core/domain"
	"github.com/wirepool/wirepool-go/pkg/cmap"
)

// Defaults.
const (
	// DefaultBuffer is the per-subscriber channel capacity.
	DefaultBuffer = 16

	// DefaultHeartbeatInterval is how often heartbeats are pushed.
	DefaultHeartbeatInterval = 15 * time.Second
)

// Config configures the event bus.
type Config struct {
	// Buffer is the per-subscriber channel capacity.
	Buffer int

	// HeartbeatInterval is the liveness push interval.
	// Zero disables heartbeats.
	HeartbeatInterval time.Duration

	// OnDrop is invoked once per event dropped on a present but full
	// or closing subscriber channel. Optional; must not block.
	OnDrop func()
}

// Bus fans session and telemetry events out to per-client subscribers.
// One concurrent subscription per client: a new Subscribe replaces and
// closes the previous channel.
type Bus struct {
	buffer     int
	hbInterval time.Duration
	onDrop     func()

	subs *cmap.Map[*subscriber]

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// subscriber guards one client's channel. The mutex orders sends
// against close so a drop-send can never hit a closed channel.
type subscriber struct {
	mu     sync.Mutex
	ch     chan domain.Event
	closed bool
}

func (s *subscriber) send(e domain.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- e:
		return true
	default:
		// Subscriber is slow: drop, never queue.
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// New creates an event bus and starts its heartbeat loop.
func New(cfg Config) *Bus {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	b := &Bus{
		buffer:     cfg.Buffer,
		hbInterval: cfg.HeartbeatInterval,
		onDrop:     cfg.OnDrop,
		subs:       cmap.New[*subscriber](),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go b.heartbeatLoop()
	return b
}

// Subscribe returns the event channel for a client. Any previous
// subscription of the same client is closed and replaced.
func (b *Bus) Subscribe(clientID string) <-chan domain.Event {
	sub := &subscriber{ch: make(chan domain.Event, b.buffer)}
	if prev, ok := b.subs.Swap(clientID, sub); ok {
		prev.close()
	}
	return sub.ch
}

// Unsubscribe closes and removes a client's subscription.
func (b *Bus) Unsubscribe(clientID string) {
	if sub, ok := b.subs.Pop(clientID); ok {
		sub.close()
	}
}

// Publish delivers an event to one client. Non-blocking: the event is
// dropped when the subscriber is absent or its channel is full.
// Returns whether the event was delivered.
func (b *Bus) Publish(clientID string, e domain.Event) bool {
	sub, ok := b.subs.Get(clientID)
	if !ok {
		return false
	}
	if !sub.send(e) {
		b.dropped()
		return false
	}
	return true
}

// Broadcast fans an event out to all live subscribers with the same
// drop policy as Publish. Returns the number of deliveries.
func (b *Bus) Broadcast(e domain.Event) int {
	delivered := 0
	b.subs.Range(func(_ string, sub *subscriber) bool {
		if sub.send(e) {
			delivered++
		} else {
			b.dropped()
		}
		return true
	})
	return delivered
}

func (b *Bus) dropped() {
	if b.onDrop != nil {
		b.onDrop()
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	return b.subs.Count()
}

// Close stops the heartbeat loop and closes every subscription.
func (b *Bus) Close() {
	b.stopOnce.Do(func() {
		close(b.stop)
		<-b.done
		b.subs.Range(func(_ string, sub *subscriber) bool {
			sub.close()
			return true
		})
		b.subs.Clear()
	})
}

func (b *Bus) heartbeatLoop() {
	defer close(b.done)
	if b.hbInterval <= 0 {
		<-b.stop
		return
	}
	ticker := time.NewTicker(b.hbInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.Broadcast(domain.NewEvent(domain.EventHeartbeat, nil))
		case <-b.stop:
			return
		}
	}
}
