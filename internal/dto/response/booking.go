package response

import (
	"time"

	"event-booking/internal/data/entity"
)

type BookingResponse struct {
	ID          string               `json:"id"`
	Reference   string               `json:"reference"`
	TicketID    string               `json:"ticket_id"`
	EventID     string               `json:"event_id"`
	UserID      string               `json:"user_id"`
	Quantity    int                  `json:"quantity"`
	TotalAmount string               `json:"total_amount"`
	Status      entity.BookingStatus `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

type PaymentResponse struct {
	ID              string               `json:"id"`
	Reference       string               `json:"reference"`
	BookingID       string               `json:"booking_id"`
	Amount          string               `json:"amount"`
	Status          entity.PaymentStatus `json:"status"`
	Method          entity.PaymentMethod `json:"method"`
	GatewayResponse *string              `json:"gateway_response,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// PaymentCompletionResponse carries both sides of the completed unit.
type PaymentCompletionResponse struct {
	Transaction PaymentResponse `json:"transaction"`
	Booking     BookingResponse `json:"booking"`
}

// Helper converters
func BookingToResponse(b *entity.Booking) BookingResponse {
	return BookingResponse{
		ID:          b.ID.String(),
		Reference:   b.Reference,
		TicketID:    b.TicketID.String(),
		EventID:     b.EventID.String(),
		UserID:      b.UserID.String(),
		Quantity:    b.Quantity,
		TotalAmount: b.TotalAmount.StringFixed(2),
		Status:      b.Status,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func BookingsToResponse(bookings []*entity.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, BookingToResponse(b))
	}
	return out
}

func PaymentToResponse(trx *entity.PaymentTransaction) PaymentResponse {
	return PaymentResponse{
		ID:              trx.ID.String(),
		Reference:       trx.Reference,
		BookingID:       trx.BookingID.String(),
		Amount:          trx.Amount.StringFixed(2),
		Status:          trx.Status,
		Method:          trx.Method,
		GatewayResponse: trx.GatewayResponse,
		CreatedAt:       trx.CreatedAt,
	}
}
