package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Ticket struct {
	Base
	EventID           uuid.UUID       `db:"event_id"`
	Type              string          `db:"type"`
	Price             decimal.Decimal `db:"price"`
	TotalQuantity     int             `db:"total_quantity"`
	AvailableQuantity int             `db:"available_quantity"`
	Revision          int64           `db:"revision"`
}

func NewTicket(eventID uuid.UUID, ticketType string, price decimal.Decimal, total int, now time.Time) (*Ticket, error) {
	if ticketType == "" {
		return nil, fmt.Errorf("ticket type is required")
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("ticket price %s is negative", price)
	}
	if total < 0 {
		return nil, fmt.Errorf("ticket total quantity %d is negative", total)
	}
	return &Ticket{
		Base:              newBase(now),
		EventID:           eventID,
		Type:              ticketType,
		Price:             price,
		TotalQuantity:     total,
		AvailableQuantity: total,
	}, nil
}

// Committed is the quantity held by PENDING or CONFIRMED bookings.
func (t *Ticket) Committed() int {
	return t.TotalQuantity - t.AvailableQuantity
}

// CheckInvariant verifies 0 <= available <= total.
func (t *Ticket) CheckInvariant() error {
	if t.AvailableQuantity < 0 {
		return fmt.Errorf("ticket %s available quantity %d is negative", t.ID, t.AvailableQuantity)
	}
	if t.AvailableQuantity > t.TotalQuantity {
		return fmt.Errorf("ticket %s available quantity %d exceeds total %d", t.ID, t.AvailableQuantity, t.TotalQuantity)
	}
	return nil
}

// AmountFor is the frozen booking total for quantity units at the current price.
func (t *Ticket) AmountFor(quantity int) decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(int64(quantity)))
}
