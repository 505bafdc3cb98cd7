package wire

import (
	"event-booking/internal/adaptor"
	"event-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireTicket(r chi.Router, ticketHandler *adaptor.TicketHandler, log *zap.Logger) {
	// availability snapshot is public
	r.Get("/api/tickets/{id}", ticketHandler.GetTicket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity(log))
		r.Put("/api/organizer/tickets/{id}/quantity", ticketHandler.ResizeTicket)
	})
}
