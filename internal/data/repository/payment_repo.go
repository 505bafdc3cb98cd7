package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"event-booking/internal/data/entity"
	"event-booking/pkg/apperror"
	"event-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	paymentColumns = `id, reference, booking_id, amount, status, method, gateway_response, created_at, updated_at`

	paymentBookingConstraint = "payment_transactions_booking_key"
)

type paymentRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewPaymentRepository(db database.PgxIface, log *zap.Logger) PaymentRepository {
	return &paymentRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment")),
	}
}

func (r *paymentRepository) Create(ctx context.Context, trx *entity.PaymentTransaction) (bool, error) {
	query := `
		INSERT INTO payment_transactions (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT ON CONSTRAINT payment_transactions_reference_key DO NOTHING
	`

	tag, err := conn(ctx, r.db).Exec(ctx, query,
		trx.ID,
		trx.Reference,
		trx.BookingID,
		trx.Amount,
		trx.Status,
		trx.Method,
		trx.GatewayResponse,
		trx.CreatedAt,
		trx.UpdatedAt,
	)
	if isUniqueViolation(err, paymentBookingConstraint) {
		r.log.Warn("Payment transaction already exists for booking", zap.String("booking_id", trx.BookingID.String()))
		return false, apperror.Conflict(fmt.Sprintf("booking %s already has a payment transaction", trx.BookingID))
	}
	if err != nil {
		r.log.Error("Failed to create payment transaction",
			zap.Error(err),
			zap.String("reference", trx.Reference),
			zap.String("booking_id", trx.BookingID.String()),
		)
		return false, classify(fmt.Errorf("create payment transaction %s: %w", trx.Reference, err))
	}

	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepository) FindByReference(ctx context.Context, reference string) (*entity.PaymentTransaction, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_transactions WHERE reference = $1`

	trx, err := scanPayment(conn(ctx, r.db).QueryRow(ctx, query, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment transaction", zap.Error(err), zap.String("reference", reference))
		return nil, fmt.Errorf("find payment transaction %s: %w", reference, err)
	}
	return trx, nil
}

func (r *paymentRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.PaymentTransaction, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_transactions WHERE booking_id = $1`

	trx, err := scanPayment(conn(ctx, r.db).QueryRow(ctx, query, bookingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment transaction by booking", zap.Error(err), zap.String("booking_id", bookingID.String()))
		return nil, fmt.Errorf("find payment transaction by booking %s: %w", bookingID, err)
	}
	return trx, nil
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.PaymentStatus, gatewayResponse *string, at time.Time) (bool, error) {
	query := `
		UPDATE payment_transactions
		SET status = $3, gateway_response = COALESCE($4, gateway_response), updated_at = $5
		WHERE id = $1 AND status = $2
	`

	tag, err := conn(ctx, r.db).Exec(ctx, query, id, from, to, gatewayResponse, at)
	if err != nil {
		r.log.Error("Failed to update payment status",
			zap.Error(err),
			zap.String("transaction_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return false, classify(fmt.Errorf("update payment status %s: %w", id, err))
	}

	return tag.RowsAffected() == 1, nil
}

func scanPayment(row pgx.Row) (*entity.PaymentTransaction, error) {
	var trx entity.PaymentTransaction
	err := row.Scan(
		&trx.ID,
		&trx.Reference,
		&trx.BookingID,
		&trx.Amount,
		&trx.Status,
		&trx.Method,
		&trx.GatewayResponse,
		&trx.CreatedAt,
		&trx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &trx, nil
}
