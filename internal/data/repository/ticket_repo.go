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

const ticketColumns = `id, event_id, type, price, total_quantity, available_quantity, revision, created_at, updated_at`

type ticketRepository struct {
	db          database.PgxIface
	lockTimeout time.Duration
	log         *zap.Logger
}

func NewTicketRepository(db database.PgxIface, lockTimeout time.Duration, log *zap.Logger) TicketRepository {
	return &ticketRepository{
		db:          db,
		lockTimeout: lockTimeout,
		log:         log.With(zap.String("repository", "ticket")),
	}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *entity.Ticket) error {
	query := `
		INSERT INTO tickets (` + ticketColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := conn(ctx, r.db).Exec(ctx, query,
		ticket.ID,
		ticket.EventID,
		ticket.Type,
		ticket.Price,
		ticket.TotalQuantity,
		ticket.AvailableQuantity,
		ticket.Revision,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create ticket", zap.Error(err), zap.String("ticket_id", ticket.ID.String()))
		return fmt.Errorf("create ticket %s: %w", ticket.ID, err)
	}

	return nil
}

func (r *ticketRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	return r.findOne(ctx, conn(ctx, r.db), query, id)
}

func (r *ticketRepository) FindForUpdate(ctx context.Context, id uuid.UUID) (*entity.Ticket, error) {
	tx := txFromContext(ctx)
	if tx == nil {
		return nil, fmt.Errorf("lock ticket %s: no transaction in context", id)
	}

	if err := database.SetLockTimeout(ctx, tx, r.lockTimeout); err != nil {
		return nil, classify(err)
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1 FOR UPDATE`
	return r.findOne(ctx, tx, query, id)
}

func (r *ticketRepository) findOne(ctx context.Context, q querier, query string, id uuid.UUID) (*entity.Ticket, error) {
	var ticket entity.Ticket
	err := q.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.EventID,
		&ticket.Type,
		&ticket.Price,
		&ticket.TotalQuantity,
		&ticket.AvailableQuantity,
		&ticket.Revision,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		err = classify(err)
		if apperror.IsKind(err, apperror.KindTransient) {
			r.log.Warn("Ticket lock wait timed out", zap.String("ticket_id", id.String()))
			return nil, err
		}
		r.log.Error("Failed to find ticket", zap.Error(err), zap.String("ticket_id", id.String()))
		return nil, fmt.Errorf("find ticket %s: %w", id, err)
	}

	return &ticket, nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *entity.Ticket, expectedRevision int64) error {
	query := `
		UPDATE tickets
		SET total_quantity = $2, available_quantity = $3, revision = $4, updated_at = $5
		WHERE id = $1 AND revision = $6
	`

	tag, err := conn(ctx, r.db).Exec(ctx, query,
		ticket.ID,
		ticket.TotalQuantity,
		ticket.AvailableQuantity,
		ticket.Revision,
		ticket.UpdatedAt,
		expectedRevision,
	)
	if err != nil {
		r.log.Error("Failed to update ticket", zap.Error(err), zap.String("ticket_id", ticket.ID.String()))
		return classify(fmt.Errorf("update ticket %s: %w", ticket.ID, err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.Conflict(fmt.Sprintf("ticket %s was modified concurrently (expected revision %d)", ticket.ID, expectedRevision))
	}

	return nil
}
