package usecase

import (
	"context"
	"fmt"

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

type PaymentService interface {
	InitiatePayment(ctx context.Context, userID uuid.UUID, req *request.InitiatePaymentRequest) (*response.PaymentResponse, error)
	CompletePayment(ctx context.Context, userID uuid.UUID, trxRef string) (*response.PaymentCompletionResponse, error)
	PaymentStatus(ctx context.Context, userID uuid.UUID, trxRef string) (*response.PaymentResponse, error)
}

type paymentService struct {
	repo     *repository.Repository
	bookings *bookingService
	refs     *reference.Generator
	auth     Authorizer
	gateway  PaymentGateway
	events   events.Publisher
	clock    clock.Clock
	log      *zap.Logger
}

// newPaymentService needs the concrete booking service to confirm inside its own unit of work.
func newPaymentService(repo *repository.Repository, bookings *bookingService, refs *reference.Generator, auth Authorizer, gateway PaymentGateway, publisher events.Publisher, clk clock.Clock, log *zap.Logger) PaymentService {
	return &paymentService{
		repo:     repo,
		bookings: bookings,
		refs:     refs,
		auth:     auth,
		gateway:  gateway,
		events:   publisher,
		clock:    clk,
		log:      log.With(zap.String("service", "payment")),
	}
}

func (s *paymentService) InitiatePayment(ctx context.Context, userID uuid.UUID, req *request.InitiatePaymentRequest) (*response.PaymentResponse, error) {
	trx, err := s.initiate(ctx, userID, req)
	metrics.TrackPayment("initiate", metrics.Outcome(err))
	if err != nil {
		logFailure(s.log, "Initiate payment failed", err, zap.String("user_id", userID.String()), zap.String("booking_reference", req.BookingReference))
		return nil, err
	}

	s.log.Info("Payment initiated",
		zap.String("reference", trx.Reference),
		zap.String("booking_reference", req.BookingReference),
		zap.String("method", string(trx.Method)),
		zap.String("amount", trx.Amount.StringFixed(2)),
	)

	resp := response.PaymentToResponse(trx)
	s.events.Publish(events.PaymentInitiated, resp)
	return &resp, nil
}

func (s *paymentService) initiate(ctx context.Context, userID uuid.UUID, req *request.InitiatePaymentRequest) (*entity.PaymentTransaction, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.ValidationFields(errs)
	}

	booking, err := s.bookings.authorized(ctx, userID, req.BookingReference, ActionPaymentInitiate)
	if err != nil {
		return nil, err
	}
	if booking.Status != entity.BookingStatusPending {
		return nil, apperror.InvalidState("booking", booking.Reference, string(booking.Status), "initiate payment")
	}

	existing, err := s.repo.Payment.FindByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.Conflict(fmt.Sprintf("booking %s already has payment transaction %s", booking.Reference, existing.Reference))
	}

	var trx *entity.PaymentTransaction
	err = withUniqueReference(s.log, "transaction", s.refs.Transaction, func(ref string) (bool, error) {
		candidate, err := entity.NewPaymentTransaction(ref, booking, entity.PaymentMethod(req.Method), s.clock.Now())
		if err != nil {
			return false, apperror.Validation("method", err.Error())
		}
		created, err := s.repo.Payment.Create(ctx, candidate)
		if created {
			trx = candidate
		}
		return created, err
	})
	if err != nil {
		return nil, err
	}
	return trx, nil
}

func (s *paymentService) CompletePayment(ctx context.Context, userID uuid.UUID, trxRef string) (*response.PaymentCompletionResponse, error) {
	trx, booking, err := s.complete(ctx, userID, trxRef)
	metrics.TrackPayment("complete", metrics.Outcome(err))
	if err != nil {
		logFailure(s.log, "Complete payment failed", err, zap.String("user_id", userID.String()), zap.String("reference", trxRef))
		return nil, err
	}

	s.log.Info("Payment completed",
		zap.String("reference", trx.Reference),
		zap.String("booking_reference", booking.Reference),
		zap.String("amount", trx.Amount.StringFixed(2)),
	)

	resp := &response.PaymentCompletionResponse{
		Transaction: response.PaymentToResponse(trx),
		Booking:     response.BookingToResponse(booking),
	}
	metrics.TrackBooking("confirm", metrics.Outcome(nil))
	s.events.Publish(events.PaymentCompleted, resp)
	s.events.Publish(events.BookingConfirmed, resp.Booking)
	return resp, nil
}

// complete marks the transaction COMPLETED and confirms its booking as one
// unit: if the booking can no longer be confirmed the transaction stays PENDING.
func (s *paymentService) complete(ctx context.Context, userID uuid.UUID, trxRef string) (*entity.PaymentTransaction, *entity.Booking, error) {
	trx, booking, err := s.authorized(ctx, userID, trxRef, ActionPaymentComplete)
	if err != nil {
		return nil, nil, err
	}
	if trx.Status != entity.PaymentStatusPending {
		return nil, nil, apperror.InvalidState("payment_transaction", trx.Reference, string(trx.Status), "complete")
	}
	if booking.Status != entity.BookingStatusPending {
		return nil, nil, apperror.InvalidState("booking", booking.Reference, string(booking.Status), "confirm")
	}

	gatewayResponse, err := s.gateway.Charge(ctx, trx)
	if err != nil {
		return nil, nil, s.fail(ctx, trx, err)
	}

	var confirmed *entity.Booking
	err = s.repo.Tx.WithTx(ctx, func(ctx context.Context) error {
		ok, err := s.repo.Payment.UpdateStatus(ctx, trx.ID, entity.PaymentStatusPending, entity.PaymentStatusCompleted, &gatewayResponse, s.clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			return apperror.InvalidState("payment_transaction", trx.Reference, s.currentStatus(ctx, trx), "complete")
		}

		confirmed, err = s.bookings.confirm(ctx, booking)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	completed := *trx
	completed.Status = entity.PaymentStatusCompleted
	completed.GatewayResponse = &gatewayResponse
	return &completed, confirmed, nil
}

// fail records a declined charge. The booking is left untouched.
func (s *paymentService) fail(ctx context.Context, trx *entity.PaymentTransaction, cause error) error {
	reason := cause.Error()
	ok, err := s.repo.Payment.UpdateStatus(ctx, trx.ID, entity.PaymentStatusPending, entity.PaymentStatusFailed, &reason, s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return apperror.InvalidState("payment_transaction", trx.Reference, s.currentStatus(ctx, trx), "complete")
	}
	metrics.TrackPayment("fail", metrics.Outcome(nil))
	return apperror.Conflict(fmt.Sprintf("payment %s declined: %s", trx.Reference, reason))
}

func (s *paymentService) PaymentStatus(ctx context.Context, userID uuid.UUID, trxRef string) (*response.PaymentResponse, error) {
	trx, _, err := s.authorized(ctx, userID, trxRef, ActionPaymentRead)
	if err != nil {
		logFailure(s.log, "Get payment status failed", err, zap.String("user_id", userID.String()), zap.String("reference", trxRef))
		return nil, err
	}

	resp := response.PaymentToResponse(trx)
	return &resp, nil
}

// authorized loads a transaction with its booking and checks action against
// the booking owner and the event organizer.
func (s *paymentService) authorized(ctx context.Context, userID uuid.UUID, trxRef string, action Action) (*entity.PaymentTransaction, *entity.Booking, error) {
	trx, err := s.repo.Payment.FindByReference(ctx, trxRef)
	if err != nil {
		return nil, nil, err
	}
	if trx == nil {
		return nil, nil, apperror.NotFound("payment_transaction", trxRef)
	}

	booking, err := s.repo.Booking.FindByID(ctx, trx.BookingID)
	if err != nil {
		return nil, nil, err
	}
	if booking == nil {
		return nil, nil, apperror.Fatal(fmt.Sprintf("payment transaction %s points at missing booking %s", trxRef, trx.BookingID))
	}

	resource, err := s.bookings.resource(ctx, booking)
	if err != nil {
		return nil, nil, err
	}
	resource.Kind, resource.ID = "payment_transaction", trxRef
	if !s.auth.Authorize(userID, action, resource) {
		return nil, nil, apperror.Forbidden(userID.String(), "payment_transaction", trxRef)
	}
	return trx, booking, nil
}

func (s *paymentService) currentStatus(ctx context.Context, trx *entity.PaymentTransaction) string {
	if latest, err := s.repo.Payment.FindByReference(ctx, trx.Reference); err == nil && latest != nil {
		return string(latest.Status)
	}
	return string(trx.Status)
}
