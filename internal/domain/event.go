package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventPinApplied      EventType = "pin.applied"
	EventPinReverted     EventType = "pin.reverted"
	EventPinScheduled    EventType = "pin.scheduled"
	EventPinResumed      EventType = "pin.resumed"
	EventBlinkStarted    EventType = "pin.blink.started"
	EventBlinkStopped    EventType = "pin.blink.stopped"
	EventOperationDrop   EventType = "operation.dropped"
	EventStoreFailure    EventType = "store.failure"
	EventRoutineFired    EventType = "routine.fired"
	EventRoutineRejected EventType = "routine.rejected"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	GPIO      int             `json:"gpio"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// PinEventPayload is the payload of every pin.* and operation.* event.
type PinEventPayload struct {
	Mode        string `json:"mode,omitempty"`
	Source      string `json:"source,omitempty"` // "http", "batch", "timer", "resume", "routine"
	OperationID string `json:"operation_id,omitempty"`
	DelayMs     int64  `json:"delay_ms,omitempty"`
	DurationMs  int64  `json:"duration_ms,omitempty"`
	IntervalMs  int64  `json:"interval_ms,omitempty"`
	Error       string `json:"error,omitempty"`
}

// NewPinEvent builds an Event with a marshalled PinEventPayload.
func NewPinEvent(typ EventType, at time.Time, gpio int, p PinEventPayload) Event {
	raw, _ := json.Marshal(p)
	return Event{Type: typ, Timestamp: at, GPIO: gpio, Payload: raw}
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}
