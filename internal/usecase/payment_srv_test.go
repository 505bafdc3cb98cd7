package usecase

import (
	"context"
	"errors"
	"testing"

	"event-booking/internal/data/entity"
	"event-booking/internal/dto/request"
	"event-booking/internal/dto/response"
	"event-booking/pkg/apperror"
	"event-booking/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatewayFunc adapts a function to PaymentGateway.
type gatewayFunc func(ctx context.Context, trx *entity.PaymentTransaction) (string, error)

func (g gatewayFunc) Charge(ctx context.Context, trx *entity.PaymentTransaction) (string, error) {
	return g(ctx, trx)
}

func bookFor(t *testing.T, f *fixture, owner uuid.UUID, qty int) *response.BookingResponse {
	t.Helper()
	created, err := f.svc.Booking.CreateBooking(context.Background(), owner, createReq(f.ticket.ID, qty))
	require.NoError(t, err)
	return created
}

func initiate(ref string, method entity.PaymentMethod) *request.InitiatePaymentRequest {
	return &request.InitiatePaymentRequest{BookingReference: ref, Method: string(method)}
}

func TestPayment_InitiateAndComplete(t *testing.T) {
	f := newFixture(t, 100, "20.00")
	ctx := context.Background()
	owner := uuid.New()
	booking := bookFor(t, f, owner, 3)

	trx, err := f.svc.Payment.InitiatePayment(ctx, owner, initiate(booking.Reference, entity.PaymentMethodStripe))
	require.NoError(t, err)
	assert.Regexp(t, `^TRX-250601-[A-Z0-9]{8}$`, trx.Reference)
	assert.Equal(t, entity.PaymentStatusPending, trx.Status)
	assert.Equal(t, "60.00", trx.Amount, "amount is frozen from the booking")
	assert.Equal(t, booking.ID, trx.BookingID)
	assert.Nil(t, trx.GatewayResponse)

	done, err := f.svc.Payment.CompletePayment(ctx, owner, trx.Reference)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusCompleted, done.Transaction.Status)
	require.NotNil(t, done.Transaction.GatewayResponse)
	assert.Equal(t, "Payment processed successfully", *done.Transaction.GatewayResponse)
	assert.Equal(t, entity.BookingStatusConfirmed, done.Booking.Status)

	got, err := f.svc.Booking.GetBooking(ctx, owner, booking.Reference)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusConfirmed, got.Status)

	status, err := f.svc.Payment.PaymentStatus(ctx, owner, trx.Reference)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusCompleted, status.Status)

	assert.Equal(t, []events.Type{
		events.BookingCreated,
		events.PaymentInitiated,
		events.PaymentCompleted,
		events.BookingConfirmed,
	}, f.published.types())
	assert.Equal(t, 97, f.currentTicket(t).AvailableQuantity)
	f.requireInventoryInvariant(t)
}

func TestPayment_InitiateRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("one transaction per booking", func(t *testing.T) {
		f := newFixture(t, 10, "20.00")
		owner := uuid.New()
		booking := bookFor(t, f, owner, 1)

		_, err := f.svc.Payment.InitiatePayment(ctx, owner, initiate(booking.Reference, entity.PaymentMethodStripe))
		require.NoError(t, err)
		_, err = f.svc.Payment.InitiatePayment(ctx, owner, initiate(booking.Reference, entity.PaymentMethodPaypal))
		assert.True(t, apperror.IsKind(err, apperror.KindConflict))
	})

	t.Run("only the owner may pay", func(t *testing.T) {
		f := newFixture(t, 10, "20.00")
		booking := bookFor(t, f, uuid.New(), 1)

		_, err := f.svc.Payment.InitiatePayment(ctx, uuid.New(), initiate(booking.Reference, entity.PaymentMethodStripe))
		assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
	})

	t.Run("booking must be pending", func(t *testing.T) {
		f := newFixture(t, 10, "20.00")
		owner := uuid.New()
		booking := bookFor(t, f, owner, 1)
		_, err := f.svc.Booking.ConfirmBooking(ctx, owner, booking.Reference)
		require.NoError(t, err)

		_, err = f.svc.Payment.InitiatePayment(ctx, owner, initiate(booking.Reference, entity.PaymentMethodStripe))
		assert.True(t, apperror.IsKind(err, apperror.KindInvalidState))
	})

	t.Run("unsupported method", func(t *testing.T) {
		f := newFixture(t, 10, "20.00")
		owner := uuid.New()
		booking := bookFor(t, f, owner, 1)

		_, err := f.svc.Payment.InitiatePayment(ctx, owner, &request.InitiatePaymentRequest{BookingReference: booking.Reference, Method: "CASH"})
		var appErr *apperror.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperror.KindValidation, appErr.Kind)
		assert.Equal(t, "method", appErr.Field)
	})

	t.Run("unknown booking", func(t *testing.T) {
		f := newFixture(t, 10, "20.00")
		_, err := f.svc.Payment.InitiatePayment(ctx, uuid.New(), initiate("ANB-250601-NONE", entity.PaymentMethodStripe))
		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	})
}

func TestPayment_CompleteTwice(t *testing.T) {
	f := newFixture(t, 10, "20.00")
	ctx := context.Background()
	owner := uuid.New()
	booking := bookFor(t, f, owner, 2)
	trx, err := f.svc.Payment.InitiatePayment(ctx, owner, initiate(booking.Reference, entity.PaymentMethodFlutterwave))
	require.NoError(t, err)

	_, err = f.svc.Payment.CompletePayment(ctx, owner, trx.Reference)
	require.NoError(t, err)

	_, err = f.svc.Payment.CompletePayment(ctx, owner, trx.Reference)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.KindInvalidState, appErr.Kind)
	assert.Equal(t, "COMPLETED", appErr.From)
}

func TestPayment_BookingCancelledDuringCharge(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()

	var f *fixture
	var bookingRef string
	f = newFixture(t, 10, "20.00", withGateway(gatewayFunc(func(context.Context, *entity.PaymentTransaction) (string, error) {
		_, err := f.svc.Booking.CancelBooking(context.Background(), owner, bookingRef)
		require.NoError(t, err)
		return "Payment processed successfully", nil
	})))
	bookingRef = bookFor(t, f, owner, 4).Reference

	trx, err := f.svc.Payment.InitiatePayment(ctx, owner, initiate(bookingRef, entity.PaymentMethodStripe))
	require.NoError(t, err)

	_, err = f.svc.Payment.CompletePayment(ctx, owner, trx.Reference)
	assert.True(t, apperror.IsKind(err, apperror.KindInvalidState))

	status, err := f.svc.Payment.PaymentStatus(ctx, owner, trx.Reference)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusPending, status.Status, "transaction must not complete without its booking")
	assert.Nil(t, status.GatewayResponse)

	booking, err := f.svc.Booking.GetBooking(ctx, owner, bookingRef)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCancelled, booking.Status)
	assert.Equal(t, 10, f.currentTicket(t).AvailableQuantity)
	f.requireInventoryInvariant(t)
}

func TestPayment_GatewayDeclines(t *testing.T) {
	f := newFixture(t, 10, "20.00", withGateway(gatewayFunc(func(context.Context, *entity.PaymentTransaction) (string, error) {
		return "", errors.New("card declined")
	})))
	ctx := context.Background()
	owner := uuid.New()
	booking := bookFor(t, f, owner, 1)
	trx, err := f.svc.Payment.InitiatePayment(ctx, owner, initiate(booking.Reference, entity.PaymentMethodPaypal))
	require.NoError(t, err)

	_, err = f.svc.Payment.CompletePayment(ctx, owner, trx.Reference)
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))

	status, err := f.svc.Payment.PaymentStatus(ctx, owner, trx.Reference)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusFailed, status.Status)
	require.NotNil(t, status.GatewayResponse)
	assert.Equal(t, "card declined", *status.GatewayResponse)

	got, err := f.svc.Booking.GetBooking(ctx, owner, booking.Reference)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusPending, got.Status, "a declined charge leaves the booking pending")
}

func TestPayment_StatusAccess(t *testing.T) {
	f := newFixture(t, 10, "20.00")
	ctx := context.Background()
	owner := uuid.New()
	booking := bookFor(t, f, owner, 1)
	trx, err := f.svc.Payment.InitiatePayment(ctx, owner, initiate(booking.Reference, entity.PaymentMethodStripe))
	require.NoError(t, err)

	_, err = f.svc.Payment.PaymentStatus(ctx, f.organizer, trx.Reference)
	assert.NoError(t, err)

	_, err = f.svc.Payment.PaymentStatus(ctx, uuid.New(), trx.Reference)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	_, err = f.svc.Payment.CompletePayment(ctx, f.organizer, trx.Reference)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden), "organizers read payments but do not complete them")

	_, err = f.svc.Payment.PaymentStatus(ctx, owner, "TRX-250601-MISSING0")
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}
