package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Active bookings hold inventory.
func (s BookingStatus) Active() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

type Booking struct {
	Base
	Reference   string          `db:"reference"`
	TicketID    uuid.UUID       `db:"ticket_id"`
	EventID     uuid.UUID       `db:"event_id"`
	UserID      uuid.UUID       `db:"user_id"`
	Quantity    int             `db:"quantity"`
	TotalAmount decimal.Decimal `db:"total_amount"`
	Status      BookingStatus   `db:"status"`
}

// NewBooking builds a PENDING booking against a reserved ticket snapshot.
// The total is frozen at quantity x price.
func NewBooking(reference string, userID uuid.UUID, ticket *Ticket, quantity int, now time.Time) (*Booking, error) {
	if reference == "" {
		return nil, fmt.Errorf("booking reference is required")
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("booking quantity %d must be positive", quantity)
	}
	if ticket == nil {
		return nil, fmt.Errorf("booking ticket is required")
	}
	return &Booking{
		Base:        newBase(now),
		Reference:   reference,
		TicketID:    ticket.ID,
		EventID:     ticket.EventID,
		UserID:      userID,
		Quantity:    quantity,
		TotalAmount: ticket.AmountFor(quantity),
		Status:      BookingStatusPending,
	}, nil
}
