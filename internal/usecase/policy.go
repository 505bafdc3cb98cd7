package usecase

import (
	"github.com/google/uuid"
)

type Action string

const (
	ActionBookingRead     Action = "booking:read"
	ActionBookingConfirm  Action = "booking:confirm"
	ActionBookingCancel   Action = "booking:cancel"
	ActionPaymentInitiate Action = "payment:initiate"
	ActionPaymentComplete Action = "payment:complete"
	ActionPaymentRead     Action = "payment:read"
	ActionTicketResize    Action = "ticket:resize"
)

// Resource is what an action is attempted on, reduced to the parties that
// hold capabilities over it.
type Resource struct {
	Kind        string
	ID          string
	OwnerID     uuid.UUID
	OrganizerID uuid.UUID
}

type Authorizer interface {
	Authorize(userID uuid.UUID, action Action, resource Resource) bool
}

type capability uint8

const (
	capOwner capability = 1 << iota
	capOrganizer
)

type policy struct {
	rules map[Action]capability
}

// NewAuthorizer returns the default policy: owners write their bookings and
// payments, organizers read bookings of their events and resize their tickets.
func NewAuthorizer() Authorizer {
	return &policy{
		rules: map[Action]capability{
			ActionBookingRead:     capOwner | capOrganizer,
			ActionBookingConfirm:  capOwner,
			ActionBookingCancel:   capOwner,
			ActionPaymentInitiate: capOwner,
			ActionPaymentComplete: capOwner,
			ActionPaymentRead:     capOwner | capOrganizer,
			ActionTicketResize:    capOrganizer,
		},
	}
}

func (p *policy) Authorize(userID uuid.UUID, action Action, resource Resource) bool {
	if userID == uuid.Nil {
		return false
	}
	allowed, ok := p.rules[action]
	if !ok {
		return false
	}

	var held capability
	if resource.OwnerID != uuid.Nil && resource.OwnerID == userID {
		held |= capOwner
	}
	if resource.OrganizerID != uuid.Nil && resource.OrganizerID == userID {
		held |= capOrganizer
	}
	return held&allowed != 0
}
