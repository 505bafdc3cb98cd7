package wire

import (
	"event-booking/internal/adaptor"
	"event-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wirePayment(r chi.Router, paymentHandler *adaptor.PaymentHandler, log *zap.Logger) {
	r.Route("/api/payments", func(r chi.Router) {
		r.Use(middleware.Identity(log))

		r.Post("/", paymentHandler.InitiatePayment)
		r.Get("/{reference}", paymentHandler.GetPaymentStatus)
		r.Post("/{reference}/complete", paymentHandler.CompletePayment)
	})
}
