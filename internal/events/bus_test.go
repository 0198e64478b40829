package events

import (
	"errors"
	"testing"
	"time"
)

func TestBusDeliversToTypeSubscribers(t *testing.T) {
	bus := NewBus()
	got := make(chan Event, 1)

	bus.Subscribe(EventSignalGenerated, func(e Event) { got <- e })
	bus.PublishSignal("abc", "EURUSD", "bullish", 0.9, 0.7, 1.1, 1.09, 1.13)

	select {
	case e := <-got:
		if e.Type != EventSignalGenerated {
			t.Errorf("type = %s", e.Type)
		}
		if e.Data["instrument"] != "EURUSD" {
			t.Errorf("instrument = %v", e.Data["instrument"])
		}
		if e.Timestamp.IsZero() {
			t.Error("timestamp must be stamped on publish")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the event")
	}
}

func TestBusAllSubscriberSeesEveryType(t *testing.T) {
	bus := NewBus()
	got := make(chan EventType, 2)

	bus.SubscribeAll(func(e Event) { got <- e.Type })
	bus.PublishError("scanner", errors.New("feed down"))
	bus.Publish(Event{Type: EventScanCompleted})

	seen := map[EventType]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ty := <-got:
			seen[ty] = true
		case <-time.After(time.Second):
			t.Fatal("missing event delivery")
		}
	}
	if !seen[EventError] || !seen[EventScanCompleted] {
		t.Errorf("seen = %v", seen)
	}
}

func TestBusIgnoresUnsubscribedTypes(t *testing.T) {
	bus := NewBus()
	got := make(chan Event, 1)

	bus.Subscribe(EventBacktestCompleted, func(e Event) { got <- e })
	bus.Publish(Event{Type: EventScanStarted})

	select {
	case e := <-got:
		t.Fatalf("unexpected delivery: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}
