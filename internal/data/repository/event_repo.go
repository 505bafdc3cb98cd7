package repository

import (
	"context"
	"errors"
	"fmt"

	"event-booking/internal/data/entity"
	"event-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type eventRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewEventRepository(db database.PgxIface, log *zap.Logger) EventRepository {
	return &eventRepository{
		db:  db,
		log: log.With(zap.String("repository", "event")),
	}
}

func (r *eventRepository) Create(ctx context.Context, event *entity.Event) error {
	query := `
		INSERT INTO events (id, title, organizer_id, published, start_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := conn(ctx, r.db).Exec(ctx, query,
		event.ID,
		event.Title,
		event.OrganizerID,
		event.Published,
		event.StartDate,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create event", zap.Error(err), zap.String("event_id", event.ID.String()))
		return fmt.Errorf("create event %s: %w", event.ID, err)
	}

	return nil
}

func (r *eventRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Event, error) {
	query := `
		SELECT id, title, organizer_id, published, start_date, created_at, updated_at
		FROM events
		WHERE id = $1
	`

	var event entity.Event
	err := conn(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&event.ID,
		&event.Title,
		&event.OrganizerID,
		&event.Published,
		&event.StartDate,
		&event.CreatedAt,
		&event.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find event by ID", zap.Error(err), zap.String("event_id", id.String()))
		return nil, fmt.Errorf("find event by ID %s: %w", id, err)
	}

	return &event, nil
}
