package memory

import (
	"context"
	"fmt"
	"time"

	"event-booking/internal/data/entity"
	"event-booking/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type paymentRepository struct {
	s   *store
	log *zap.Logger
}

func (r *paymentRepository) Create(ctx context.Context, trx *entity.PaymentTransaction) (bool, error) {
	created := false
	err := r.s.write(ctx, func(u *unit) error {
		// booking first, then reference: every caller takes them in this order
		if err := u.lock(ctx, paymentBookingKey(trx.BookingID)); err != nil {
			return err
		}
		if err := u.lock(ctx, paymentRefKey(trx.Reference)); err != nil {
			return err
		}

		if _, taken := r.s.paymentID(u, trx.Reference, uuid.Nil); taken {
			return nil
		}
		if _, exists := r.s.paymentID(u, "", trx.BookingID); exists {
			r.log.Warn("Payment transaction already exists for booking", zap.String("booking_id", trx.BookingID.String()))
			return apperror.Conflict(fmt.Sprintf("booking %s already has a payment transaction", trx.BookingID))
		}
		if err := u.lock(ctx, paymentRow(trx.ID)); err != nil {
			return err
		}

		u.stagePayment(*trx)
		created = true
		return nil
	})
	return created, err
}

func (r *paymentRepository) FindByReference(ctx context.Context, reference string) (*entity.PaymentTransaction, error) {
	return r.find(ctx, reference, uuid.Nil)
}

func (r *paymentRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.PaymentTransaction, error) {
	return r.find(ctx, "", bookingID)
}

func (r *paymentRepository) find(ctx context.Context, reference string, bookingID uuid.UUID) (*entity.PaymentTransaction, error) {
	u := unitFrom(ctx)
	id, ok := r.s.paymentID(u, reference, bookingID)
	if !ok {
		return nil, nil
	}
	trx, ok := r.s.payment(u, id)
	if !ok {
		return nil, nil
	}
	return &trx, nil
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.PaymentStatus, gatewayResponse *string, at time.Time) (bool, error) {
	updated := false
	err := r.s.write(ctx, func(u *unit) error {
		if err := u.lock(ctx, paymentRow(id)); err != nil {
			return err
		}

		trx, ok := r.s.payment(u, id)
		if !ok || trx.Status != from {
			return nil
		}
		trx.Status = to
		trx.UpdatedAt = at
		if gatewayResponse != nil {
			resp := *gatewayResponse
			trx.GatewayResponse = &resp
		}
		u.stagePayment(trx)
		updated = true
		return nil
	})
	return updated, err
}
