// Package events provides the in-process pub/sub bus that decouples the
// scanner and backtester from their consumers (API broadcast, persistence,
// notifications).
package events

import (
	"sync"
	"time"
)

// EventType identifies the kinds of events flowing through the system.
type EventType string

const (
	EventSignalGenerated   EventType = "SIGNAL_GENERATED"
	EventScanStarted       EventType = "SCAN_STARTED"
	EventScanCompleted     EventType = "SCAN_COMPLETED"
	EventBarAppended       EventType = "BAR_APPENDED"
	EventSessionChanged    EventType = "SESSION_CHANGED"
	EventBacktestCompleted EventType = "BACKTEST_COMPLETED"
	EventError             EventType = "ERROR"
)

// Event is one system event. Data carries a shallow JSON-friendly payload;
// consumers that need the full typed value subscribe where it is published.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber handles events. Subscribers run on their own goroutine per
// delivery and must not assume ordering across event types.
type Subscriber func(Event)

// Bus manages publishing and subscriptions.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for one event type.
func (b *Bus) Subscribe(t EventType, s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[t] = append(b.subscribers[t], s)
}

// SubscribeAll registers a subscriber for every event.
func (b *Bus) SubscribeAll(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allSubs = append(b.allSubs, s)
}

// Publish delivers the event to all matching subscribers without blocking
// the publisher.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, s := range b.subscribers[event.Type] {
		go s(event)
	}
	for _, s := range b.allSubs {
		go s(event)
	}
}

// PublishSignal publishes a generated signal's headline fields.
func (b *Bus) PublishSignal(id, instrument, direction string, confidence, quality, entry, stop, target float64) {
	b.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"id":         id,
			"instrument": instrument,
			"direction":  direction,
			"confidence": confidence,
			"quality":    quality,
			"entry":      entry,
			"stop":       stop,
			"target":     target,
		},
	})
}

// PublishError publishes a component error.
func (b *Bus) PublishError(component string, err error) {
	b.Publish(Event{
		Type: EventError,
		Data: map[string]interface{}{
			"component": component,
			"error":     err.Error(),
		},
	})
}
