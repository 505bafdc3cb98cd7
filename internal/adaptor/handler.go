package adaptor

import (
	"errors"
	"net/http"

	"event-booking/internal/usecase"
	"event-booking/pkg/apperror"
	"event-booking/pkg/utils"

	"go.uber.org/zap"
)

// retryAfterSeconds is the hint sent with 503 responses for transient failures.
const retryAfterSeconds = 1

type Handler struct {
	Booking *BookingHandler
	Payment *PaymentHandler
	Ticket  *TicketHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Booking: NewBookingHandler(service.Booking, log),
		Payment: NewPaymentHandler(service.Payment, log),
		Ticket:  NewTicketHandler(service.Inventory, log),
	}
}

// handleServiceError maps a service error onto a response by its kind.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	kind := apperror.KindOf(err)
	fields := []zap.Field{zap.Error(err), zap.String("operation", operation), zap.String("kind", kind.String())}

	switch kind {
	case apperror.KindNotFound:
		log.Warn(operation+" failed - not found", fields...)
		utils.ResponseNotFound(w, err.Error())

	case apperror.KindValidation:
		log.Warn(operation+" validation failed", fields...)
		utils.ResponseBadRequest(w, "Validation failed", validationErrors(err))

	case apperror.KindForbidden:
		log.Warn(operation+" failed - forbidden", fields...)
		utils.ResponseForbidden(w, err.Error())

	case apperror.KindInsufficientInventory,
		apperror.KindInvalidState,
		apperror.KindConflict,
		apperror.KindUnpublished,
		apperror.KindEventStarted:
		log.Warn(operation+" rejected", fields...)
		utils.ResponseConflict(w, kind.String(), err.Error())

	case apperror.KindTransient:
		log.Warn(operation+" temporarily unavailable", fields...)
		utils.ResponseServiceUnavailable(w, "Service temporarily unavailable, retry later", retryAfterSeconds)

	default:
		log.Error("Failed to "+operation, fields...)
		utils.ResponseInternalError(w, "Internal server error")
	}
}

func validationErrors(err error) map[string]string {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		return nil
	}
	if len(appErr.Fields) > 0 {
		return appErr.Fields
	}
	return map[string]string{appErr.Field: appErr.Reason}
}
