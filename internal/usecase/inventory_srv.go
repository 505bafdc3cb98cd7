package usecase

import (
	"context"
	"fmt"
	"time"

	"event-booking/internal/data/entity"
	"event-booking/internal/data/repository"
	"event-booking/internal/dto/request"
	"event-booking/internal/dto/response"
	"event-booking/pkg/apperror"
	"event-booking/pkg/clock"
	"event-booking/pkg/events"
	"event-booking/pkg/lock"
	"event-booking/pkg/metrics"
	"event-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InventoryService owns ticket quantities. Every mutation runs under
// exclusive access to exactly one ticket id.
type InventoryService interface {
	Reserve(ctx context.Context, ticketID uuid.UUID, quantity int) (*entity.Ticket, error)
	Release(ctx context.Context, ticketID uuid.UUID, quantity int) (*entity.Ticket, error)
	Resize(ctx context.Context, userID, ticketID uuid.UUID, req *request.ResizeTicketRequest) (*response.TicketResponse, error)
	GetTicket(ctx context.Context, ticketID uuid.UUID) (*response.TicketResponse, error)
}

type inventoryService struct {
	repo   *repository.Repository
	locker lock.Locker
	auth   Authorizer
	events events.Publisher
	clock  clock.Clock
	log    *zap.Logger
}

func NewInventoryService(repo *repository.Repository, locker lock.Locker, auth Authorizer, publisher events.Publisher, clk clock.Clock, log *zap.Logger) InventoryService {
	return &inventoryService{
		repo:   repo,
		locker: locker,
		auth:   auth,
		events: publisher,
		clock:  clk,
		log:    log.With(zap.String("service", "inventory")),
	}
}

func (s *inventoryService) Reserve(ctx context.Context, ticketID uuid.UUID, quantity int) (*entity.Ticket, error) {
	if quantity <= 0 {
		return nil, apperror.Validation("quantity", "must be a positive integer")
	}

	ticket, err := s.mutate(ctx, "reserve", ticketID, func(t *entity.Ticket) error {
		if t.AvailableQuantity < quantity {
			return apperror.InsufficientInventory(t.ID.String(), quantity, t.AvailableQuantity)
		}
		t.AvailableQuantity -= quantity
		return nil
	})
	if err != nil {
		logFailure(s.log, "Reserve failed", err, zap.String("ticket_id", ticketID.String()), zap.Int("quantity", quantity))
		return nil, err
	}

	s.log.Debug("Tickets reserved",
		zap.String("ticket_id", ticketID.String()),
		zap.Int("quantity", quantity),
		zap.Int("available", ticket.AvailableQuantity),
	)
	return ticket, nil
}

func (s *inventoryService) Release(ctx context.Context, ticketID uuid.UUID, quantity int) (*entity.Ticket, error) {
	if quantity <= 0 {
		return nil, apperror.Validation("quantity", "must be a positive integer")
	}

	ticket, err := s.mutate(ctx, "release", ticketID, func(t *entity.Ticket) error {
		if t.AvailableQuantity+quantity > t.TotalQuantity {
			return apperror.Fatal(fmt.Sprintf(
				"release of %d on ticket %s would raise available %d above total %d",
				quantity, t.ID, t.AvailableQuantity, t.TotalQuantity,
			))
		}
		t.AvailableQuantity += quantity
		return nil
	})
	if err != nil {
		logFailure(s.log, "Release failed", err, zap.String("ticket_id", ticketID.String()), zap.Int("quantity", quantity))
		return nil, err
	}

	s.log.Debug("Tickets released",
		zap.String("ticket_id", ticketID.String()),
		zap.Int("quantity", quantity),
		zap.Int("available", ticket.AvailableQuantity),
	)
	return ticket, nil
}

func (s *inventoryService) Resize(ctx context.Context, userID, ticketID uuid.UUID, req *request.ResizeTicketRequest) (*response.TicketResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Resize validation failed", zap.Any("errors", errs))
		return nil, apperror.ValidationFields(errs)
	}
	newTotal := *req.TotalQuantity

	current, err := s.repo.Ticket.FindByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperror.NotFound("ticket", ticketID.String())
	}
	event, err := s.repo.Event.FindByID(ctx, current.EventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, apperror.NotFound("event", current.EventID.String())
	}

	resource := Resource{Kind: "ticket", ID: ticketID.String(), OrganizerID: event.OrganizerID}
	if !s.auth.Authorize(userID, ActionTicketResize, resource) {
		s.log.Warn("Resize forbidden", zap.String("user_id", userID.String()), zap.String("ticket_id", ticketID.String()))
		return nil, apperror.Forbidden(userID.String(), "ticket", ticketID.String())
	}

	var previousTotal int
	ticket, err := s.mutate(ctx, "resize", ticketID, func(t *entity.Ticket) error {
		if req.ExpectedRevision != nil && *req.ExpectedRevision != t.Revision {
			return apperror.Conflict(fmt.Sprintf("ticket %s is at revision %d, expected %d", t.ID, t.Revision, *req.ExpectedRevision))
		}
		available := t.AvailableQuantity + (newTotal - t.TotalQuantity)
		if available < 0 {
			return apperror.Validation("total_quantity", fmt.Sprintf("cannot be below the %d tickets already committed", t.Committed()))
		}
		previousTotal = t.TotalQuantity
		t.TotalQuantity = newTotal
		t.AvailableQuantity = available
		return nil
	})
	if err != nil {
		logFailure(s.log, "Resize failed", err, zap.String("ticket_id", ticketID.String()), zap.Int("total_quantity", newTotal))
		return nil, err
	}

	s.log.Info("Ticket resized",
		zap.String("ticket_id", ticketID.String()),
		zap.String("user_id", userID.String()),
		zap.Int("previous_total", previousTotal),
		zap.Int("total", ticket.TotalQuantity),
		zap.Int64("revision", ticket.Revision),
	)

	resp := response.TicketToResponse(ticket)
	s.events.Publish(events.TicketResized, resp)
	return &resp, nil
}

func (s *inventoryService) GetTicket(ctx context.Context, ticketID uuid.UUID) (*response.TicketResponse, error) {
	ticket, err := s.repo.Ticket.FindByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, apperror.NotFound("ticket", ticketID.String())
	}
	resp := response.TicketToResponse(ticket)
	return &resp, nil
}

// mutate runs read-check-write on one ticket and bumps the revision. The
// in-process lock covers the read-check-write; the row lock taken by
// FindForUpdate lasts until the enclosing unit of work commits or rolls back,
// so nobody reserves against a quantity that may still be taken back.
func (s *inventoryService) mutate(ctx context.Context, op string, ticketID uuid.UUID, apply func(*entity.Ticket) error) (*entity.Ticket, error) {
	start := time.Now()
	var result *entity.Ticket

	err := s.locker.WithExclusive(ctx, ticketID.String(), func(ctx context.Context) error {
		return s.repo.Tx.WithTx(ctx, func(ctx context.Context) error {
			ticket, err := s.repo.Ticket.FindForUpdate(ctx, ticketID)
			metrics.TrackLockWait(op, time.Since(start))
			if err != nil {
				return err
			}
			if ticket == nil {
				return apperror.NotFound("ticket", ticketID.String())
			}

			expected := ticket.Revision
			if err := apply(ticket); err != nil {
				return err
			}
			ticket.Revision++
			ticket.UpdatedAt = s.clock.Now()
			if err := ticket.CheckInvariant(); err != nil {
				return apperror.Fatal(err.Error())
			}
			if err := s.repo.Ticket.Update(ctx, ticket, expected); err != nil {
				return err
			}
			result = ticket
			return nil
		})
	})

	metrics.TrackInventory(op, metrics.Outcome(err))
	return result, err
}
