package repository

import (
	"context"
	"time"

	"event-booking/internal/data/entity"
	"event-booking/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TxManager runs fn as one atomic unit. Nested calls join the outer unit.
// Writes are invisible to other units until commit and a rollback discards
// all of them.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type EventRepository interface {
	Create(ctx context.Context, event *entity.Event) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Event, error)
}

type TicketRepository interface {
	Create(ctx context.Context, ticket *entity.Ticket) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Ticket, error)
	// FindForUpdate holds the ticket exclusively until the surrounding
	// transaction ends. It must be called inside WithTx.
	FindForUpdate(ctx context.Context, id uuid.UUID) (*entity.Ticket, error)
	// Update writes quantities and revision when the stored revision still
	// equals expectedRevision.
	Update(ctx context.Context, ticket *entity.Ticket, expectedRevision int64) error
}

type BookingRepository interface {
	// Create returns false when the reference is already taken.
	Create(ctx context.Context, booking *entity.Booking) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByReference(ctx context.Context, reference string) (*entity.Booking, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error)
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
	FindByOrganizerID(ctx context.Context, organizerID uuid.UUID, limit, offset int) ([]*entity.Booking, error)
	CountByOrganizerID(ctx context.Context, organizerID uuid.UUID) (int64, error)
	// SumActiveQuantity totals PENDING and CONFIRMED bookings on a ticket.
	SumActiveQuantity(ctx context.Context, ticketID uuid.UUID) (int, error)
	// UpdateStatus moves the booking from one status to another and reports
	// false when the stored status no longer equals from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.BookingStatus, at time.Time) (bool, error)
}

type PaymentRepository interface {
	// Create returns false when the reference is already taken and a
	// Conflict error when the booking already has a transaction.
	Create(ctx context.Context, trx *entity.PaymentTransaction) (bool, error)
	FindByReference(ctx context.Context, reference string) (*entity.PaymentTransaction, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.PaymentTransaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.PaymentStatus, gatewayResponse *string, at time.Time) (bool, error)
}

type Repository struct {
	Tx      TxManager
	Event   EventRepository
	Ticket  TicketRepository
	Booking BookingRepository
	Payment PaymentRepository
}

// NewRepository builds the PostgreSQL repositories. lockTimeout bounds the
// wait for a ticket row lock.
func NewRepository(db database.PgxIface, lockTimeout time.Duration, log *zap.Logger) *Repository {
	return &Repository{
		Tx:      NewTxManager(db, log),
		Event:   NewEventRepository(db, log),
		Ticket:  NewTicketRepository(db, lockTimeout, log),
		Booking: NewBookingRepository(db, log),
		Payment: NewPaymentRepository(db, log),
	}
}
