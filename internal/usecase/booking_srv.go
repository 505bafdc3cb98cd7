package usecase

import (
	"context"

	"event-booking/internal/data/entity"
	"event-booking/internal/data/repository"
	"event-booking/internal/dto/request"
	"event-booking/internal/dto/response"
	"event-booking/pkg/apperror"
	"event-booking/pkg/clock"
	"event-booking/pkg/events"
	"event-booking/pkg/metrics"
	"event-booking/pkg/reference"
	"event-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingService interface {
	CreateBooking(ctx context.Context, userID uuid.UUID, req *request.CreateBookingRequest) (*response.BookingResponse, error)
	ConfirmBooking(ctx context.Context, userID uuid.UUID, bookingRef string) (*response.BookingResponse, error)
	CancelBooking(ctx context.Context, userID uuid.UUID, bookingRef string) (*response.BookingResponse, error)
	GetBooking(ctx context.Context, userID uuid.UUID, bookingRef string) (*response.BookingResponse, error)
	ListUserBookings(ctx context.Context, userID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)
	ListOrganizerBookings(ctx context.Context, organizerID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)
}

type bookingService struct {
	repo      *repository.Repository
	inventory InventoryService
	refs      *reference.Generator
	auth      Authorizer
	events    events.Publisher
	clock     clock.Clock
	log       *zap.Logger
}

func newBookingService(repo *repository.Repository, inventory InventoryService, refs *reference.Generator, auth Authorizer, publisher events.Publisher, clk clock.Clock, log *zap.Logger) *bookingService {
	return &bookingService{
		repo:      repo,
		inventory: inventory,
		refs:      refs,
		auth:      auth,
		events:    publisher,
		clock:     clk,
		log:       log.With(zap.String("service", "booking")),
	}
}

func NewBookingService(repo *repository.Repository, inventory InventoryService, refs *reference.Generator, auth Authorizer, publisher events.Publisher, clk clock.Clock, log *zap.Logger) BookingService {
	return newBookingService(repo, inventory, refs, auth, publisher, clk, log)
}

func (s *bookingService) CreateBooking(ctx context.Context, userID uuid.UUID, req *request.CreateBookingRequest) (*response.BookingResponse, error) {
	booking, err := s.create(ctx, userID, req)
	metrics.TrackBooking("create", metrics.Outcome(err))
	if err != nil {
		logFailure(s.log, "Create booking failed", err, zap.String("user_id", userID.String()), zap.String("ticket_id", req.TicketID))
		return nil, err
	}

	s.log.Info("Booking created",
		zap.String("reference", booking.Reference),
		zap.String("user_id", userID.String()),
		zap.String("ticket_id", booking.TicketID.String()),
		zap.Int("quantity", booking.Quantity),
		zap.String("total_amount", booking.TotalAmount.StringFixed(2)),
	)

	resp := response.BookingToResponse(booking)
	s.events.Publish(events.BookingCreated, resp)
	return &resp, nil
}

func (s *bookingService) create(ctx context.Context, userID uuid.UUID, req *request.CreateBookingRequest) (*entity.Booking, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.ValidationFields(errs)
	}
	ticketID, err := uuid.Parse(req.TicketID)
	if err != nil {
		return nil, apperror.Validation("ticket_id", "Must be a valid UUID")
	}

	ticket, err := s.repo.Ticket.FindByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, apperror.NotFound("ticket", ticketID.String())
	}
	event, err := s.repo.Event.FindByID(ctx, ticket.EventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, apperror.NotFound("event", ticket.EventID.String())
	}
	if !event.Published {
		return nil, apperror.Unpublished(event.ID.String())
	}
	if event.HasStarted(s.clock.Now()) {
		return nil, apperror.EventStarted(event.ID.String())
	}

	var booking *entity.Booking
	err = s.repo.Tx.WithTx(ctx, func(ctx context.Context) error {
		reserved, err := s.inventory.Reserve(ctx, ticketID, req.Quantity)
		if err != nil {
			return err
		}

		return withUniqueReference(s.log, "booking", s.refs.Booking, func(ref string) (bool, error) {
			candidate, err := entity.NewBooking(ref, userID, reserved, req.Quantity, s.clock.Now())
			if err != nil {
				return false, apperror.Validation("quantity", err.Error())
			}
			created, err := s.repo.Booking.Create(ctx, candidate)
			if created {
				booking = candidate
			}
			return created, err
		})
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *bookingService) ConfirmBooking(ctx context.Context, userID uuid.UUID, bookingRef string) (*response.BookingResponse, error) {
	booking, err := s.authorized(ctx, userID, bookingRef, ActionBookingConfirm)
	if err == nil {
		booking, err = s.confirm(ctx, booking)
	}
	metrics.TrackBooking("confirm", metrics.Outcome(err))
	if err != nil {
		logFailure(s.log, "Confirm booking failed", err, zap.String("user_id", userID.String()), zap.String("reference", bookingRef))
		return nil, err
	}

	s.log.Info("Booking confirmed", zap.String("reference", bookingRef), zap.String("user_id", userID.String()))

	resp := response.BookingToResponse(booking)
	s.events.Publish(events.BookingConfirmed, resp)
	return &resp, nil
}

// confirm moves a PENDING booking to CONFIRMED. It joins the caller's unit
// of work when there is one.
func (s *bookingService) confirm(ctx context.Context, booking *entity.Booking) (*entity.Booking, error) {
	return s.transition(ctx, booking, entity.BookingStatusPending, entity.BookingStatusConfirmed, "confirm")
}

func (s *bookingService) CancelBooking(ctx context.Context, userID uuid.UUID, bookingRef string) (*response.BookingResponse, error) {
	booking, err := s.authorized(ctx, userID, bookingRef, ActionBookingCancel)
	if err == nil {
		booking, err = s.cancel(ctx, booking)
	}
	metrics.TrackBooking("cancel", metrics.Outcome(err))
	if err != nil {
		logFailure(s.log, "Cancel booking failed", err, zap.String("user_id", userID.String()), zap.String("reference", bookingRef))
		return nil, err
	}

	s.log.Info("Booking cancelled",
		zap.String("reference", bookingRef),
		zap.String("user_id", userID.String()),
		zap.Int("released", booking.Quantity),
	)

	resp := response.BookingToResponse(booking)
	s.events.Publish(events.BookingCancelled, resp)
	return &resp, nil
}

func (s *bookingService) cancel(ctx context.Context, booking *entity.Booking) (*entity.Booking, error) {
	if !booking.Status.Active() {
		return nil, apperror.InvalidState("booking", booking.Reference, string(booking.Status), "cancel")
	}

	event, err := s.repo.Event.FindByID(ctx, booking.EventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, apperror.NotFound("event", booking.EventID.String())
	}
	if event.HasStarted(s.clock.Now()) {
		return nil, apperror.EventStarted(event.ID.String())
	}

	var cancelled *entity.Booking
	err = s.repo.Tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		cancelled, err = s.transition(ctx, booking, booking.Status, entity.BookingStatusCancelled, "cancel")
		if err != nil {
			return err
		}
		_, err = s.inventory.Release(ctx, booking.TicketID, booking.Quantity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// transition is the compare-and-set on booking status. The loser of a race
// sees the winner's status in its InvalidState error.
func (s *bookingService) transition(ctx context.Context, booking *entity.Booking, from, to entity.BookingStatus, action string) (*entity.Booking, error) {
	if booking.Status != from {
		return nil, apperror.InvalidState("booking", booking.Reference, string(booking.Status), action)
	}

	now := s.clock.Now()
	ok, err := s.repo.Booking.UpdateStatus(ctx, booking.ID, from, to, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		current := string(from)
		if latest, err := s.repo.Booking.FindByID(ctx, booking.ID); err == nil && latest != nil {
			current = string(latest.Status)
		}
		return nil, apperror.InvalidState("booking", booking.Reference, current, action)
	}

	updated := *booking
	updated.Status = to
	updated.UpdatedAt = now
	return &updated, nil
}

func (s *bookingService) GetBooking(ctx context.Context, userID uuid.UUID, bookingRef string) (*response.BookingResponse, error) {
	booking, err := s.authorized(ctx, userID, bookingRef, ActionBookingRead)
	if err != nil {
		logFailure(s.log, "Get booking failed", err, zap.String("user_id", userID.String()), zap.String("reference", bookingRef))
		return nil, err
	}

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) ListUserBookings(ctx context.Context, userID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	limit, offset := req.Limit(), req.Offset()

	bookings, err := s.repo.Booking.FindByUserID(ctx, userID, limit, offset)
	if err != nil {
		s.log.Error("Failed to get user bookings", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, err
	}
	total, err := s.repo.Booking.CountByUserID(ctx, userID)
	if err != nil {
		s.log.Error("Failed to count user bookings", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, err
	}

	return response.NewPaginatedResponse(response.BookingsToResponse(bookings), req.CurrentPage(), limit, total), nil
}

// ListOrganizerBookings lists bookings on events the caller organizes, so
// every row is readable by the caller by construction.
func (s *bookingService) ListOrganizerBookings(ctx context.Context, organizerID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	limit, offset := req.Limit(), req.Offset()

	bookings, err := s.repo.Booking.FindByOrganizerID(ctx, organizerID, limit, offset)
	if err != nil {
		s.log.Error("Failed to get organizer bookings", zap.Error(err), zap.String("organizer_id", organizerID.String()))
		return nil, err
	}
	total, err := s.repo.Booking.CountByOrganizerID(ctx, organizerID)
	if err != nil {
		s.log.Error("Failed to count organizer bookings", zap.Error(err), zap.String("organizer_id", organizerID.String()))
		return nil, err
	}

	return response.NewPaginatedResponse(response.BookingsToResponse(bookings), req.CurrentPage(), limit, total), nil
}

// authorized loads a booking by reference and checks action against its
// owner and its event's organizer.
func (s *bookingService) authorized(ctx context.Context, userID uuid.UUID, bookingRef string, action Action) (*entity.Booking, error) {
	booking, err := s.repo.Booking.FindByReference(ctx, bookingRef)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, apperror.NotFound("booking", bookingRef)
	}

	resource, err := s.resource(ctx, booking)
	if err != nil {
		return nil, err
	}
	if !s.auth.Authorize(userID, action, resource) {
		return nil, apperror.Forbidden(userID.String(), "booking", bookingRef)
	}
	return booking, nil
}

func (s *bookingService) resource(ctx context.Context, booking *entity.Booking) (Resource, error) {
	event, err := s.repo.Event.FindByID(ctx, booking.EventID)
	if err != nil {
		return Resource{}, err
	}
	res := Resource{Kind: "booking", ID: booking.Reference, OwnerID: booking.UserID}
	if event != nil {
		res.OrganizerID = event.OrganizerID
	}
	return res, nil
}
