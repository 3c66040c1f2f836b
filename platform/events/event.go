// Package events is the in-process bus that carries search failures from
// the search service to the notification streams. Publishers never wait on
// subscribers; a slow or failing stream cannot hold up a search.
package events

import (
	"context"
	"time"
)

// Event is anything published on the bus. EventName is the subscription key.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent stamps an event with the time it was raised.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps an event with the current UTC time.
func NewBaseEvent() BaseEvent {
	return NewBaseEventAt(time.Now())
}

// NewBaseEventAt stamps an event with at, normalised to UTC so streamed
// payloads compare equal across hosts.
func NewBaseEventAt(at time.Time) BaseEvent {
	return BaseEvent{Timestamp: at.UTC()}
}

// Handler receives the events it subscribed to.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Publisher is the side of the bus a failure notifier needs.
type Publisher interface {
	// Publish hands event to every subscriber without waiting for them.
	Publish(ctx context.Context, event Event)
	// PublishSync runs every subscriber and joins their errors.
	PublishSync(ctx context.Context, event Event) error
}

// Subscriber is the side of the bus a stream hub needs.
type Subscriber interface {
	Subscribe(eventName string, handler Handler)
}

// Bus is both sides.
type Bus interface {
	Publisher
	Subscriber
}

var _ Bus = (*InMemoryBus)(nil)
