package eventbus

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/wirepool/wirepool-go/internal/core/domain"
)

func testBus(t *testing.T, cfg Config) *Bus {
	t.Helper()
	b := New(cfg)
	t.Cleanup(b.Close)
	return b
}

func TestBus_PublishDeliver(t *testing.T) {
	b := testBus(t, Config{})

	ch := b.Subscribe("client-1")
	if !b.Publish("client-1", domain.NewEvent(domain.EventSessionStarted, nil)) {
		t.Fatal("Publish to a live subscriber should deliver")
	}

	select {
	case e := <-ch:
		if e.Type != domain.EventSessionStarted {
			t.Errorf("Type = %q", e.Type)
		}
		if e.Timestamp == 0 {
			t.Error("event should be timestamped")
		}
	case <-time.After(time.Second):
		t.Fatal("event not received")
	}
}

func TestBus_PublishWithoutSubscriber(t *testing.T) {
	b := testBus(t, Config{})
	if b.Publish("nobody", domain.NewEvent(domain.EventSessionStarted, nil)) {
		t.Error("Publish without a subscriber should report a drop")
	}
}

func TestBus_SlowSubscriberDrops(t *testing.T) {
	b := testBus(t, Config{Buffer: 2})
	b.Subscribe("client-1")

	e := domain.NewEvent(domain.EventMetricsUpdated, nil)
	if !b.Publish("client-1", e) || !b.Publish("client-1", e) {
		t.Fatal("buffered publishes should deliver")
	}
	// Buffer full, nobody draining: the next publish drops.
	if b.Publish("client-1", e) {
		t.Error("publish to a full channel should drop, not block")
	}
}

func TestBus_OnDropHook(t *testing.T) {
	var drops atomic.Int64
	b := testBus(t, Config{Buffer: 1, OnDrop: func() { drops.Add(1) }})
	b.Subscribe("client-1")

	e := domain.NewEvent(domain.EventMetricsUpdated, nil)

	// An absent subscriber is not a drop; the hook counts only losses
	// on a live subscription.
	b.Publish("nobody", e)
	if got := drops.Load(); got != 0 {
		t.Errorf("drops = %d after publish to absent subscriber, want 0", got)
	}

	if !b.Publish("client-1", e) {
		t.Fatal("buffered publish should deliver")
	}
	b.Publish("client-1", e)
	b.Publish("client-1", e)
	if got := drops.Load(); got != 2 {
		t.Errorf("drops = %d, want 2 full-channel drops", got)
	}

	// Broadcast misses count too.
	b.Broadcast(e)
	if got := drops.Load(); got != 3 {
		t.Errorf("drops = %d after broadcast to full channel, want 3", got)
	}
}

func TestBus_SubscribeReplaces(t *testing.T) {
	b := testBus(t, Config{})

	old := b.Subscribe("client-1")
	replacement := b.Subscribe("client-1")

	// The old channel is closed so its consumer can exit.
	select {
	case _, open := <-old:
		if open {
			t.Error("old channel should be closed, not carrying events")
		}
	case <-time.After(time.Second):
		t.Fatal("old channel not closed")
	}

	if !b.Publish("client-1", domain.NewEvent(domain.EventSessionEnded, nil)) {
		t.Fatal("Publish should hit the replacement")
	}
	select {
	case e := <-replacement:
		if e.Type != domain.EventSessionEnded {
			t.Errorf("Type = %q", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("replacement channel did not receive")
	}

	if b.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount = %d, want 1", b.SubscriberCount())
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := testBus(t, Config{})
	ch := b.Subscribe("client-1")
	b.Unsubscribe("client-1")

	if _, open := <-ch; open {
		t.Error("channel should be closed after Unsubscribe")
	}
	if b.Publish("client-1", domain.NewEvent(domain.EventSessionStarted, nil)) {
		t.Error("Publish after Unsubscribe should drop")
	}
	b.Unsubscribe("client-1") // repeat is a no-op
}

func TestBus_Broadcast(t *testing.T) {
	b := testBus(t, Config{})
	ch1 := b.Subscribe("client-1")
	ch2 := b.Subscribe("client-2")

	n := b.Broadcast(domain.NewEvent(domain.EventOverloadDetected, map[string]any{"node_id": "node-1"}))
	if n != 2 {
		t.Errorf("Broadcast = %d deliveries, want 2", n)
	}
	for _, ch := range []<-chan domain.Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.Payload["node_id"] != "node-1" {
				t.Errorf("payload = %v", e.Payload)
			}
		case <-time.After(time.Second):
			t.Fatal("broadcast not received")
		}
	}
}

func TestBus_Heartbeat(t *testing.T) {
	b := testBus(t, Config{HeartbeatInterval: 20 * time.Millisecond})
	ch := b.Subscribe("client-1")

	select {
	case e := <-ch:
		if e.Type != domain.EventHeartbeat {
			t.Errorf("Type = %q, want heartbeat", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no heartbeat within a second")
	}
}

func TestBus_Close(t *testing.T) {
	b := New(Config{HeartbeatInterval: 10 * time.Millisecond})
	ch := b.Subscribe("client-1")

	b.Close()
	b.Close() // idempotent

	// All channels drained and closed.
	for {
		if _, open := <-ch; !open {
			break
		}
	}
	if b.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d, want 0", b.SubscriberCount())
	}
	if b.Publish("client-1", domain.NewEvent(domain.EventSessionStarted, nil)) {
		t.Error("Publish after Close should drop")
	}
}
