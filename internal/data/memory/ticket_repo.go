package memory

import (
	"context"
	"fmt"

	"event-booking/internal/data/entity"
	"event-booking/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ticketRepository struct {
	s   *store
	log *zap.Logger
}

func (r *ticketRepository) Create(_ context.Context, ticket *entity.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tickets[ticket.ID]; ok {
		return fmt.Errorf("create ticket %s: already exists", ticket.ID)
	}
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r *ticketRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Ticket, error) {
	ticket, ok := r.s.ticket(unitFrom(ctx), id)
	if !ok {
		return nil, nil
	}
	return &ticket, nil
}

// FindForUpdate locks the ticket row until the unit of work ends. A unit
// waiting here sees the other unit's outcome, never its staged quantities.
func (r *ticketRepository) FindForUpdate(ctx context.Context, id uuid.UUID) (*entity.Ticket, error) {
	u, err := requireUnit(ctx, fmt.Sprintf("lock ticket %s", id))
	if err != nil {
		return nil, err
	}
	if err := u.lock(ctx, ticketRow(id)); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *entity.Ticket, expectedRevision int64) error {
	return r.s.write(ctx, func(u *unit) error {
		if err := u.lock(ctx, ticketRow(ticket.ID)); err != nil {
			return err
		}

		current, ok := r.s.ticket(u, ticket.ID)
		if !ok {
			return apperror.NotFound("ticket", ticket.ID.String())
		}
		if current.Revision != expectedRevision {
			r.log.Warn("Ticket revision mismatch",
				zap.String("ticket_id", ticket.ID.String()),
				zap.Int64("expected", expectedRevision),
				zap.Int64("actual", current.Revision),
			)
			return apperror.Conflict(fmt.Sprintf("ticket %s was modified concurrently (expected revision %d)", ticket.ID, expectedRevision))
		}
		if err := ticket.CheckInvariant(); err != nil {
			return apperror.Fatal(err.Error())
		}

		u.stageTicket(*ticket)
		return nil
	})
}
