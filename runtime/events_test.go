package runtime

import (
	"sync"
	"testing"
	"time"
)

func TestHub_BasicSubscribePublish(t *testing.T) {
	hub := NewHub()

	events, cancel := hub.Subscribe(EventFilter{})
	defer cancel()

	hub.Publish(RoleEvent{Kind: EventRoleChanged, Term: 1, From: "SECONDARY", To: "PRIMARY"})

	select {
	case ev := <-events:
		if ev.From != "SECONDARY" || ev.To != "PRIMARY" {
			t.Errorf("expected SECONDARY->PRIMARY, got %s->%s", ev.From, ev.To)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

func TestHub_FilterSpecificKind(t *testing.T) {
	hub := NewHub()

	events, cancel := hub.Subscribe(EventFilter{Kinds: []EventKind{EventTermAdvanced}})
	defer cancel()

	hub.Publish(RoleEvent{Kind: EventRoleChanged})
	hub.Publish(RoleEvent{Kind: EventTermAdvanced, Term: 5})

	select {
	case ev := <-events:
		if ev.Kind != EventTermAdvanced || ev.Term != 5 {
			t.Errorf("expected EventTermAdvanced term=5, got %+v", ev)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	select {
	case ev := <-events:
		t.Errorf("should not receive a second event, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
		// expected
	}
}

func TestHub_CancelUnsubscribes(t *testing.T) {
	hub := NewHub()

	events, cancel := hub.Subscribe(EventFilter{})

	hub.Publish(RoleEvent{Kind: EventRoleChanged})
	select {
	case <-events:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Error("channel should be closed after cancel")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for channel close")
	}

	// Subsequent publishes must not panic.
	hub.Publish(RoleEvent{Kind: EventRoleChanged})
}

func TestHub_DoubleCancel(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe(EventFilter{})
	cancel()
	cancel()
}

func TestHub_BufferOverflowNonBlocking(t *testing.T) {
	hub := NewHub()

	events, cancel := hub.Subscribe(EventFilter{})
	defer cancel()

	for i := 0; i < defaultEventBufferSize+4; i++ {
		hub.Publish(RoleEvent{Kind: EventRoleChanged, Term: int64(i)})
	}

	received := 0
	timeout := time.After(100 * time.Millisecond)
	for {
		select {
		case <-events:
			received++
		case <-timeout:
			if received < defaultEventBufferSize {
				t.Errorf("expected at least %d events, got %d", defaultEventBufferSize, received)
			}
			return
		}
	}
}

func TestHub_ConcurrentPublishSubscribe(t *testing.T) {
	hub := NewHub()
	const numGoroutines = 10
	const numEvents = 100

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events, cancel := hub.Subscribe(EventFilter{})
			defer cancel()

			received := 0
			timeout := time.After(2 * time.Second)
			for received < numEvents {
				select {
				case <-events:
					received++
				case <-timeout:
					return
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < numEvents; i++ {
			hub.Publish(RoleEvent{Kind: EventRoleChanged, Term: int64(i)})
		}
	}()

	wg.Wait()
}
