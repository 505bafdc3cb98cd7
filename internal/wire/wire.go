package wire

import (
	"context"
	"net/http"
	"time"

	"event-booking/internal/adaptor"
	"event-booking/internal/usecase"
	"event-booking/pkg/middleware"
	"event-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports whether a backing store is reachable.
type HealthCheck func(ctx context.Context) error

// App holds the HTTP surface
type App struct {
	Router *chi.Mux
}

// Wiring builds handlers over the services and mounts every route.
func Wiring(service *usecase.Service, config *utils.Config, health HealthCheck, logger *zap.Logger) *App {
	handler := adaptor.NewHandler(service, logger)

	return &App{
		Router: setupRouter(handler, config, health, logger),
	}
}

func setupRouter(handler *adaptor.Handler, config *utils.Config, health HealthCheck, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))

	wireBooking(r, handler.Booking, logger)
	wirePayment(r, handler.Payment, logger)
	wireTicket(r, handler.Ticket, logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := health(ctx); err != nil {
				logger.Warn("Health check failed", zap.Error(err))
				utils.ResponseServiceUnavailable(w, "Storage unavailable", 5)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if config.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}
