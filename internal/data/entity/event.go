package entity

import (
	"time"

	"github.com/google/uuid"
)

// Event is the slice of event metadata the booking core depends on.
type Event struct {
	Base
	Title       string    `db:"title"`
	OrganizerID uuid.UUID `db:"organizer_id"`
	Published   bool      `db:"published"`
	StartDate   time.Time `db:"start_date"`
}

// HasStarted reports whether the event start is at or before now.
func (e *Event) HasStarted(now time.Time) bool {
	return !e.StartDate.After(now)
}
