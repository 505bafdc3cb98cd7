package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"event-booking/internal/data/entity"
	"event-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const bookingColumns = `b.id, b.reference, b.ticket_id, b.event_id, b.user_id, b.quantity, b.total_amount, b.status, b.created_at, b.updated_at`

type bookingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBookingRepository(db database.PgxIface, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) (bool, error) {
	query := `
		INSERT INTO bookings (id, reference, ticket_id, event_id, user_id, quantity, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (reference) DO NOTHING
	`

	tag, err := conn(ctx, r.db).Exec(ctx, query,
		booking.ID,
		booking.Reference,
		booking.TicketID,
		booking.EventID,
		booking.UserID,
		booking.Quantity,
		booking.TotalAmount,
		booking.Status,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("reference", booking.Reference),
			zap.String("user_id", booking.UserID.String()),
		)
		return false, classify(fmt.Errorf("create booking %s: %w", booking.Reference, err))
	}

	return tag.RowsAffected() == 1, nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1`

	booking, err := scanBooking(conn(ctx, r.db).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID", zap.Error(err), zap.String("booking_id", id.String()))
		return nil, fmt.Errorf("find booking by ID %s: %w", id, err)
	}

	return booking, nil
}

func (r *bookingRepository) FindByReference(ctx context.Context, reference string) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.reference = $1`

	booking, err := scanBooking(conn(ctx, r.db).QueryRow(ctx, query, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by reference", zap.Error(err), zap.String("reference", reference))
		return nil, fmt.Errorf("find booking by reference %s: %w", reference, err)
	}

	return booking, nil
}

func (r *bookingRepository) FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC, b.id
		LIMIT $2 OFFSET $3
	`

	bookings, err := r.list(ctx, query, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings by user", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("find bookings by user %s: %w", userID, err)
	}
	return bookings, nil
}

func (r *bookingRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := conn(ctx, r.db).QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count bookings by user", zap.Error(err), zap.String("user_id", userID.String()))
		return 0, fmt.Errorf("count bookings by user %s: %w", userID, err)
	}
	return count, nil
}

func (r *bookingRepository) FindByOrganizerID(ctx context.Context, organizerID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		JOIN events e ON e.id = b.event_id
		WHERE e.organizer_id = $1
		ORDER BY b.created_at DESC, b.id
		LIMIT $2 OFFSET $3
	`

	bookings, err := r.list(ctx, query, organizerID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings by organizer", zap.Error(err), zap.String("organizer_id", organizerID.String()))
		return nil, fmt.Errorf("find bookings by organizer %s: %w", organizerID, err)
	}
	return bookings, nil
}

func (r *bookingRepository) CountByOrganizerID(ctx context.Context, organizerID uuid.UUID) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings b
		JOIN events e ON e.id = b.event_id
		WHERE e.organizer_id = $1
	`

	var count int64
	if err := conn(ctx, r.db).QueryRow(ctx, query, organizerID).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings by organizer", zap.Error(err), zap.String("organizer_id", organizerID.String()))
		return 0, fmt.Errorf("count bookings by organizer %s: %w", organizerID, err)
	}
	return count, nil
}

func (r *bookingRepository) SumActiveQuantity(ctx context.Context, ticketID uuid.UUID) (int, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM bookings
		WHERE ticket_id = $1 AND status IN ('PENDING', 'CONFIRMED')
	`

	var sum int
	if err := conn(ctx, r.db).QueryRow(ctx, query, ticketID).Scan(&sum); err != nil {
		r.log.Error("Failed to sum active bookings", zap.Error(err), zap.String("ticket_id", ticketID.String()))
		return 0, fmt.Errorf("sum active bookings for ticket %s: %w", ticketID, err)
	}
	return sum, nil
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.BookingStatus, at time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`

	tag, err := conn(ctx, r.db).Exec(ctx, query, id, from, to, at)
	if err != nil {
		r.log.Error("Failed to update booking status",
			zap.Error(err),
			zap.String("booking_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return false, classify(fmt.Errorf("update booking status %s: %w", id, err))
	}

	return tag.RowsAffected() == 1, nil
}

func (r *bookingRepository) list(ctx context.Context, query string, ownerID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var booking entity.Booking
	err := row.Scan(
		&booking.ID,
		&booking.Reference,
		&booking.TicketID,
		&booking.EventID,
		&booking.UserID,
		&booking.Quantity,
		&booking.TotalAmount,
		&booking.Status,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}
