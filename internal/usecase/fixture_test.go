package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"event-booking/internal/data/entity"
	"event-booking/internal/data/memory"
	"event-booking/internal/data/repository"
	"event-booking/pkg/clock"
	"event-booking/pkg/events"
	"event-booking/pkg/lock"
	"event-booking/pkg/reference"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Type
}

func (p *recordingPublisher) Publish(eventType events.Type, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Type(nil), p.events...)
}

type fixture struct {
	svc       *Service
	repo      *repository.Repository
	clock     *clock.Manual
	published *recordingPublisher
	locker    *lock.Keyed
	event     *entity.Event
	ticket    *entity.Ticket
	organizer uuid.UUID
}

type fixtureOption func(*repository.Repository, *Deps)

func withGateway(g PaymentGateway) fixtureOption {
	return func(_ *repository.Repository, d *Deps) { d.Gateway = g }
}

func withReferences(g *reference.Generator) fixtureOption {
	return func(_ *repository.Repository, d *Deps) { d.References = g }
}

func withRepo(fn func(*repository.Repository)) fixtureOption {
	return func(r *repository.Repository, _ *Deps) { fn(r) }
}

func newFixture(t *testing.T, total int, price string, opts ...fixtureOption) *fixture {
	t.Helper()

	f := &fixture{
		repo:      memory.NewRepository(zap.NewNop()),
		clock:     clock.NewManual(testNow),
		published: &recordingPublisher{},
		locker:    lock.NewKeyed(200 * time.Millisecond),
		organizer: uuid.New(),
	}
	f.event, f.ticket = f.seedTicket(t, total, price)

	deps := Deps{
		Locker:    f.locker,
		Publisher: f.published,
		Clock:     f.clock,
	}
	for _, opt := range opts {
		opt(f.repo, &deps)
	}
	f.svc = NewService(f.repo, deps, zap.NewNop())
	return f
}

func (f *fixture) seedTicket(t *testing.T, total int, price string) (*entity.Event, *entity.Ticket) {
	t.Helper()
	ctx := context.Background()

	event := &entity.Event{
		Base:        entity.Base{ID: uuid.New(), CreatedAt: testNow, UpdatedAt: testNow},
		Title:       "Harbour Lights Festival",
		OrganizerID: f.organizer,
		Published:   true,
		StartDate:   testNow.Add(72 * time.Hour),
	}
	require.NoError(t, f.repo.Event.Create(ctx, event))

	ticket, err := entity.NewTicket(event.ID, "GA", decimal.RequireFromString(price), total, testNow)
	require.NoError(t, err)
	require.NoError(t, f.repo.Ticket.Create(ctx, ticket))
	return event, ticket
}

func (f *fixture) currentTicket(t *testing.T) *entity.Ticket {
	t.Helper()
	ticket, err := f.repo.Ticket.FindByID(context.Background(), f.ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, ticket)
	return ticket
}

// requireInventoryInvariant checks 0 <= available <= total and that the
// committed quantity equals the active bookings on the ticket.
func (f *fixture) requireInventoryInvariant(t *testing.T) {
	t.Helper()
	ticket := f.currentTicket(t)
	require.NoError(t, ticket.CheckInvariant())

	active, err := f.repo.Booking.SumActiveQuantity(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Equal(t, active, ticket.Committed(), "committed quantity must match active bookings")
}

// constReader yields the same byte forever, so every reference collides.
type constReader byte

func (c constReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(c)
	}
	return len(p), nil
}
