// Package events carries domain events from the booking core to outside
// collaborators (notifications, audit). Publishing never blocks the caller and
// a failed delivery never affects the state change that produced the event.
package events

import (
	"context"
	"time"
)

type Type string

const (
	BookingCreated   Type = "booking.created"
	BookingConfirmed Type = "booking.confirmed"
	BookingCancelled Type = "booking.cancelled"
	PaymentInitiated Type = "payment.initiated"
	PaymentCompleted Type = "payment.completed"
	TicketResized    Type = "ticket.resized"
)

type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// Publisher is the outbound port used by the services.
type Publisher interface {
	Publish(eventType Type, payload any)
}

// Sink delivers one event to one collaborator.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event Event) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Publish(Type, any) {}
