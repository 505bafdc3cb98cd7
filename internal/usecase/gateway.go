package usecase

import (
	"context"

	"event-booking/internal/data/entity"
)

const gatewaySuccessMessage = "Payment processed successfully"

// PaymentGateway charges a transaction and returns the gateway's response text.
type PaymentGateway interface {
	Charge(ctx context.Context, trx *entity.PaymentTransaction) (string, error)
}

type stubGateway struct{}

// NewStubGateway approves every charge.
func NewStubGateway() PaymentGateway {
	return stubGateway{}
}

func (stubGateway) Charge(context.Context, *entity.PaymentTransaction) (string, error) {
	return gatewaySuccessMessage, nil
}
