package events

import (
	"context"
	"sync"
	"time"
)

// Event types appended to the lifecycle stream.
const (
	TicketCreated       = "ticket.created"
	TicketStatusChanged = "ticket.status_changed"
	TicketClosed        = "ticket.closed"
	OrderCreated        = "order.created"
	OrderStatusChanged  = "order.status_changed"
)

// Event is one ticket or order lifecycle change.
type Event struct {
	// StreamID is assigned by the stream and only set on consumed events.
	StreamID   string    `json:"stream_id,omitempty"`
	Type       string    `json:"type"`
	EntityID   int64     `json:"entity_id"`
	Reference  string    `json:"reference,omitempty"`
	ActorID    int64     `json:"actor_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
	Attempts   int       `json:"attempts,omitempty"`
}

// Publisher records lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
