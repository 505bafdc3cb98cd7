package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	PaymentMethodStripe      PaymentMethod = "STRIPE"
	PaymentMethodPaypal      PaymentMethod = "PAYPAL"
	PaymentMethodFlutterwave PaymentMethod = "FLUTTERWAVE"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodStripe, PaymentMethodPaypal, PaymentMethodFlutterwave:
		return true
	}
	return false
}

type PaymentTransaction struct {
	Base
	Reference       string          `db:"reference"`
	BookingID       uuid.UUID       `db:"booking_id"`
	Amount          decimal.Decimal `db:"amount"`
	Status          PaymentStatus   `db:"status"`
	Method          PaymentMethod   `db:"method"`
	GatewayResponse *string         `db:"gateway_response"`
}

// NewPaymentTransaction creates a PENDING transaction whose amount is the booking total.
func NewPaymentTransaction(reference string, booking *Booking, method PaymentMethod, now time.Time) (*PaymentTransaction, error) {
	if reference == "" {
		return nil, fmt.Errorf("transaction reference is required")
	}
	if booking == nil {
		return nil, fmt.Errorf("transaction booking is required")
	}
	if !method.Valid() {
		return nil, fmt.Errorf("payment method %q is not supported", method)
	}
	return &PaymentTransaction{
		Base:      newBase(now),
		Reference: reference,
		BookingID: booking.ID,
		Amount:    booking.TotalAmount,
		Status:    PaymentStatusPending,
		Method:    method,
	}, nil
}
