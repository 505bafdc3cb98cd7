package memory

import (
	"context"
	"fmt"

	"event-booking/internal/data/entity"

	"github.com/google/uuid"
)

type eventRepository struct {
	s *store
}

func (r *eventRepository) Create(_ context.Context, event *entity.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.events[event.ID]; ok {
		return fmt.Errorf("create event %s: already exists", event.ID)
	}
	r.s.events[event.ID] = *event
	return nil
}

func (r *eventRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	event, ok := r.s.events[id]
	if !ok {
		return nil, nil
	}
	return &event, nil
}
