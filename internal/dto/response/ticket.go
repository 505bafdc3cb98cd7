package response

import "event-booking/internal/data/entity"

type TicketResponse struct {
	ID                string `json:"id"`
	EventID           string `json:"event_id"`
	Type              string `json:"type"`
	Price             string `json:"price"`
	TotalQuantity     int    `json:"total_quantity"`
	AvailableQuantity int    `json:"available_quantity"`
	Revision          int64  `json:"revision"`
}

func TicketToResponse(t *entity.Ticket) TicketResponse {
	return TicketResponse{
		ID:                t.ID.String(),
		EventID:           t.EventID.String(),
		Type:              t.Type,
		Price:             t.Price.StringFixed(2),
		TotalQuantity:     t.TotalQuantity,
		AvailableQuantity: t.AvailableQuantity,
		Revision:          t.Revision,
	}
}
