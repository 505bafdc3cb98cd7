package request

// ResizeTicketRequest changes a ticket's total quantity. ExpectedRevision,
// when set, must match the ticket's current revision.
type ResizeTicketRequest struct {
	TotalQuantity    *int   `json:"total_quantity" validate:"required,gte=0"`
	ExpectedRevision *int64 `json:"expected_revision,omitempty" validate:"omitempty,gte=0"`
}
