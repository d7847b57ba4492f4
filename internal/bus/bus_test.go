package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("pairing.", 10)
	defer unsub()

	b.Emit(PairingStateChanged, "s1")

	select {
	case evt := <-ch:
		if evt.Kind != PairingStateChanged {
			t.Errorf("got kind %q, want %q", evt.Kind, PairingStateChanged)
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
	ch, unsub := b.Subscribe("messages.", 10)
	defer unsub()

	b.Emit(SelectionChanged, nil)
	b.Emit(MessagesUpdated, nil)

	select {
	case evt := <-ch:
		if evt.Kind != MessagesUpdated {
			t.Errorf("got kind %q, want %q", evt.Kind, MessagesUpdated)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmptyNamespaceReceivesAll(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 10)
	defer unsub()

	b.Emit(ChannelConnected, nil)
	b.Emit(ConversationsUpdated, nil)

	for _, want := range []string{ChannelConnected, ConversationsUpdated} {
		select {
		case evt := <-ch:
			if evt.Kind != want {
				t.Errorf("got kind %q, want %q", evt.Kind, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", want)
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("pairing.", 10)
	unsub()
	unsub()

	b.Emit(PairingCode, nil)

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
	if n := b.Subscribers(); n != 0 {
		t.Errorf("subscribers = %d, want 0", n)
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("messages.", 1)
	defer unsub()

	b.Emit(MessagesUpdated, 1)
	b.Emit(MessagesUpdated, 2)

	evt := <-ch
	if evt.Payload != 1 {
		t.Errorf("got payload %v, want 1", evt.Payload)
	}
}

func TestNilBusPublish(t *testing.T) {
	var b *Bus
	b.Emit(ChannelConnected, nil)
}

func TestFullSubscriberDropsAndCounts(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 1)
	defer unsub()

	b.Emit(MessagesUpdated, 1)
	b.Emit(MessagesUpdated, 2)
	b.Emit(MessagesUpdated, 3)

	if got := b.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
	if evt := <-ch; evt.Payload != 1 {
		t.Errorf("first payload = %v, want 1", evt.Payload)
	}

	var nilBus *Bus
	nilBus.Emit(MessagesUpdated, nil)
	if nilBus.Dropped() != 0 {
		t.Error("nil bus should report zero drops")
	}
}
