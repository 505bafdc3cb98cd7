package adaptor

import (
	"encoding/json"
	"net/http"

	"event-booking/internal/dto/request"
	"event-booking/internal/usecase"
	"event-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type TicketHandler struct {
	service usecase.InventoryService
	log     *zap.Logger
}

func NewTicketHandler(service usecase.InventoryService, log *zap.Logger) *TicketHandler {
	return &TicketHandler{
		service: service,
		log:     log.With(zap.String("handler", "ticket")),
	}
}

// GetTicket handles GET /api/tickets/{id}
func (h *TicketHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, err := utils.ParseUUID("id", chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get ticket")
		return
	}

	ticket, err := h.service.GetTicket(r.Context(), ticketID)
	if err != nil {
		handleServiceError(w, h.log, err, "get ticket")
		return
	}

	utils.ResponseSuccess(w, "success", ticket)
}

// ResizeTicket handles PUT /api/organizer/tickets/{id}/quantity
func (h *TicketHandler) ResizeTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	ticketID, err := utils.ParseUUID("id", chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "resize ticket")
		return
	}

	var req request.ResizeTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	ticket, err := h.service.Resize(r.Context(), userID, ticketID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "resize ticket")
		return
	}

	utils.ResponseSuccess(w, "success", ticket)
}
