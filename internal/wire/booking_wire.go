package wire

import (
	"event-booking/internal/adaptor"
	"event-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(r chi.Router, bookingHandler *adaptor.BookingHandler, log *zap.Logger) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity(log))

		r.Route("/api/bookings", func(r chi.Router) {
			r.Post("/", bookingHandler.CreateBooking)
			r.Get("/", bookingHandler.GetUserBookings)
			r.Get("/{reference}", bookingHandler.GetBooking)
			r.Post("/{reference}/confirm", bookingHandler.ConfirmBooking)
			r.Post("/{reference}/cancel", bookingHandler.CancelBooking)
		})

		// bookings on events the caller organizes
		r.Get("/api/organizer/bookings", bookingHandler.GetOrganizerBookings)
	})
}
