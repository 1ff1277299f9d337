package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	bus := New()
	ch := bus.Subscribe(4)
	defer bus.Unsubscribe(ch)

	bus.Publish(Event{
		Source: SourceAgent,
		Kind:   KindRequestStart,
		Data:   map[string]any{"request_id": "r1"},
	})

	select {
	case e := <-ch:
		if e.Source != SourceAgent || e.Kind != KindRequestStart {
			t.Errorf("got event %+v", e)
		}
		if e.Timestamp.IsZero() {
			t.Error("Publish should stamp a missing timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublish_NilBus(t *testing.T) {
	var bus *Bus
	// Must not panic.
	bus.Publish(Event{Source: SourceSlack, Kind: KindReplySent})
	if bus.SubscriberCount() != 0 {
		t.Error("nil bus should report zero subscribers")
	}
}

func TestPublish_FullSubscriberDropsEvent(t *testing.T) {
	bus := New()
	ch := bus.Subscribe(1)
	defer bus.Unsubscribe(ch)

	// Fill the buffer; the second publish must not block.
	bus.Publish(Event{Kind: "a"})
	done := make(chan struct{})
	go func() {
		bus.Publish(Event{Kind: "b"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := New()
	ch := bus.Subscribe(1)
	bus.Unsubscribe(ch)

	if bus.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d, want 0", bus.SubscriberCount())
	}

	// Channel should be closed.
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}

	// Double unsubscribe is a no-op.
	bus.Unsubscribe(ch)
}
