package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("doc.", 10)
	defer unsub()

	if n := b.Publish(NewEvent("doc.created", "users/u1")); n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}

	select {
	case evt := <-ch:
		if evt.Kind != "doc.created" {
			t.Errorf("got kind %q, want doc.created", evt.Kind)
		}
		if evt.Payload != "users/u1" {
			t.Errorf("payload = %v, want users/u1", evt.Payload)
		}
		if evt.Timestamp.IsZero() {
			t.Error("timestamp not set")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("doc.", 10)
	defer unsub()

	b.Publish(Event{Kind: "delivery.outcome"})
	b.Publish(Event{Kind: "doc.updated"})

	select {
	case evt := <-ch:
		if evt.Kind != "doc.updated" {
			t.Errorf("got kind %q, want doc.updated", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the delivery event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("doc.", 10)
	unsub()
	// Second call must be harmless.
	unsub()

	if n := b.Publish(Event{Kind: "doc.created"}); n != 0 {
		t.Errorf("delivered = %d after unsubscribe, want 0", n)
	}

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	b.Publish(Event{Kind: "test.one"})
	// Buffer is full, so this one is dropped instead of blocking.
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
	if got := b.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}
