package request

type CreateBookingRequest struct {
	TicketID string `json:"ticket_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

type InitiatePaymentRequest struct {
	BookingReference string `json:"booking_reference" validate:"required"`
	Method           string `json:"method" validate:"required,oneof=STRIPE PAYPAL FLUTTERWAVE"`
}
