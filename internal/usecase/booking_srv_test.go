package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"event-booking/internal/data/entity"
	"event-booking/internal/data/repository"
	"event-booking/internal/dto/request"
	"event-booking/pkg/apperror"
	"event-booking/pkg/clock"
	"event-booking/pkg/events"
	"event-booking/pkg/reference"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createReq(ticketID uuid.UUID, qty int) *request.CreateBookingRequest {
	return &request.CreateBookingRequest{TicketID: ticketID.String(), Quantity: qty}
}

func TestCreateBooking_ReservesAndFreezesTotal(t *testing.T) {
	f := newFixture(t, 100, "20.00")
	user := uuid.New()

	resp, err := f.svc.Booking.CreateBooking(context.Background(), user, createReq(f.ticket.ID, 3))
	require.NoError(t, err)

	assert.Equal(t, entity.BookingStatusPending, resp.Status)
	assert.Equal(t, "60.00", resp.TotalAmount)
	assert.Equal(t, 3, resp.Quantity)
	assert.Equal(t, f.event.ID.String(), resp.EventID)
	assert.Regexp(t, `^ANB-250601-[A-Z0-9]{8}$`, resp.Reference)
	assert.Equal(t, 97, f.currentTicket(t).AvailableQuantity)
	assert.Equal(t, []events.Type{events.BookingCreated}, f.published.types())
	f.requireInventoryInvariant(t)
}

func TestCreateBooking_InsufficientInventory(t *testing.T) {
	f := newFixture(t, 2, "20.00")

	_, err := f.svc.Booking.CreateBooking(context.Background(), uuid.New(), createReq(f.ticket.ID, 5))
	assert.True(t, apperror.IsKind(err, apperror.KindInsufficientInventory))
	assert.Equal(t, 2, f.currentTicket(t).AvailableQuantity)
	assert.Empty(t, f.published.types())
	f.requireInventoryInvariant(t)
}

func TestCreateBooking_Preconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("event already started", func(t *testing.T) {
		f := newFixture(t, 10, "20.00")
		f.clock.Set(f.event.StartDate.Add(time.Minute))

		_, err := f.svc.Booking.CreateBooking(ctx, uuid.New(), createReq(f.ticket.ID, 1))
		assert.True(t, apperror.IsKind(err, apperror.KindEventStarted))
		assert.Equal(t, 10, f.currentTicket(t).AvailableQuantity)
	})

	t.Run("event starting right now counts as started", func(t *testing.T) {
		f := newFixture(t, 10, "20.00")
		f.clock.Set(f.event.StartDate)

		_, err := f.svc.Booking.CreateBooking(ctx, uuid.New(), createReq(f.ticket.ID, 1))
		assert.True(t, apperror.IsKind(err, apperror.KindEventStarted))
	})

	t.Run("event not published", func(t *testing.T) {
		f := newFixture(t, 10, "20.00")
		draft := &entity.Event{
			Base:        entity.Base{ID: uuid.New(), CreatedAt: testNow, UpdatedAt: testNow},
			Title:       "Draft Night",
			OrganizerID: f.organizer,
			StartDate:   testNow.Add(24 * time.Hour),
		}
		require.NoError(t, f.repo.Event.Create(ctx, draft))
		ticket, err := entity.NewTicket(draft.ID, "VIP", decimal.RequireFromString("50.00"), 10, testNow)
		require.NoError(t, err)
		require.NoError(t, f.repo.Ticket.Create(ctx, ticket))

		_, err = f.svc.Booking.CreateBooking(ctx, uuid.New(), createReq(ticket.ID, 1))
		assert.True(t, apperror.IsKind(err, apperror.KindUnpublished))
	})

	t.Run("unknown ticket", func(t *testing.T) {
		f := newFixture(t, 10, "20.00")
		_, err := f.svc.Booking.CreateBooking(ctx, uuid.New(), createReq(uuid.New(), 1))
		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	})

	t.Run("invalid request", func(t *testing.T) {
		f := newFixture(t, 10, "20.00")
		_, err := f.svc.Booking.CreateBooking(ctx, uuid.New(), &request.CreateBookingRequest{TicketID: "nope", Quantity: 0})

		var appErr *apperror.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperror.KindValidation, appErr.Kind)
		assert.Contains(t, appErr.Fields, "quantity")
		assert.Contains(t, appErr.Fields, "ticket_id")
	})
}

func TestCreateBooking_NoOversellUnderContention(t *testing.T) {
	f := newFixture(t, 5, "10.00")
	ctx := context.Background()

	const callers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
		other     []error
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Booking.CreateBooking(ctx, uuid.New(), createReq(f.ticket.ID, 1))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperror.IsKind(err, apperror.KindInsufficientInventory):
				rejected++
			default:
				other = append(other, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 15, rejected)
	assert.Equal(t, 0, f.currentTicket(t).AvailableQuantity)
	f.requireInventoryInvariant(t)
}

type failingBookings struct {
	repository.BookingRepository
}

func (failingBookings) Create(context.Context, *entity.Booking) (bool, error) {
	return false, errors.New("disk full")
}

func TestCreateBooking_InsertFailureReleasesInventory(t *testing.T) {
	f := newFixture(t, 10, "20.00", withRepo(func(r *repository.Repository) {
		r.Booking = failingBookings{BookingRepository: r.Booking}
	}))

	_, err := f.svc.Booking.CreateBooking(context.Background(), uuid.New(), createReq(f.ticket.ID, 4))
	require.Error(t, err)

	ticket := f.currentTicket(t)
	assert.Equal(t, 10, ticket.AvailableQuantity, "rollback must restore inventory")
	assert.Empty(t, f.published.types())
}

type stalledBookings struct {
	repository.BookingRepository
	entered chan struct{}
	release chan struct{}
}

func (b stalledBookings) Create(context.Context, *entity.Booking) (bool, error) {
	close(b.entered)
	<-b.release
	return false, errors.New("disk full")
}

func TestCreateBooking_ConcurrentReserveWaitsForUndecidedBooking(t *testing.T) {
	stalled := stalledBookings{entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, 1, "20.00", withRepo(func(r *repository.Repository) {
		stalled.BookingRepository = r.Booking
		r.Booking = stalled
	}))
	ctx := context.Background()

	created := make(chan error, 1)
	go func() {
		_, err := f.svc.Booking.CreateBooking(ctx, uuid.New(), createReq(f.ticket.ID, 1))
		created <- err
	}()
	<-stalled.entered

	assert.Equal(t, 1, f.currentTicket(t).AvailableQuantity, "an uncommitted reservation is not visible")

	type outcome struct {
		ticket *entity.Ticket
		err    error
	}
	reserved := make(chan outcome, 1)
	go func() {
		ticket, err := f.svc.Inventory.Reserve(ctx, f.ticket.ID, 1)
		reserved <- outcome{ticket, err}
	}()

	select {
	case got := <-reserved:
		t.Fatalf("reserve returned before the booking insert was decided: %v", got.err)
	case <-time.After(50 * time.Millisecond):
	}

	close(stalled.release)
	require.Error(t, <-created)

	select {
	case got := <-reserved:
		require.NoError(t, got.err, "stock from a rolled back booking must be reservable")
		assert.Equal(t, 0, got.ticket.AvailableQuantity)
	case <-time.After(time.Second):
		t.Fatal("reserve never completed")
	}
	assert.Equal(t, 0, f.currentTicket(t).AvailableQuantity)
}

func TestCreateBooking_ReferenceCollisionsExhausted(t *testing.T) {
	refs := reference.NewGenerator(clock.NewManual(testNow), reference.WithRandom(constReader(0)))
	f := newFixture(t, 10, "20.00", withReferences(refs))
	ctx := context.Background()

	first, err := f.svc.Booking.CreateBooking(ctx, uuid.New(), createReq(f.ticket.ID, 1))
	require.NoError(t, err)
	assert.Equal(t, "ANB-250601-AAAAAAAA", first.Reference)

	_, err = f.svc.Booking.CreateBooking(ctx, uuid.New(), createReq(f.ticket.ID, 2))
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))
	assert.Equal(t, 9, f.currentTicket(t).AvailableQuantity)
	f.requireInventoryInvariant(t)
}

func TestConfirmBooking(t *testing.T) {
	f := newFixture(t, 10, "20.00")
	ctx := context.Background()
	owner := uuid.New()

	created, err := f.svc.Booking.CreateBooking(ctx, owner, createReq(f.ticket.ID, 2))
	require.NoError(t, err)

	t.Run("only the owner may confirm", func(t *testing.T) {
		_, err := f.svc.Booking.ConfirmBooking(ctx, f.organizer, created.Reference)
		assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
	})

	t.Run("confirm then confirm again", func(t *testing.T) {
		confirmed, err := f.svc.Booking.ConfirmBooking(ctx, owner, created.Reference)
		require.NoError(t, err)
		assert.Equal(t, entity.BookingStatusConfirmed, confirmed.Status)

		_, err = f.svc.Booking.ConfirmBooking(ctx, owner, created.Reference)
		var appErr *apperror.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperror.KindInvalidState, appErr.Kind)
		assert.Equal(t, "CONFIRMED", appErr.From)
	})

	t.Run("unknown reference", func(t *testing.T) {
		_, err := f.svc.Booking.ConfirmBooking(ctx, owner, "ANB-000000-ZZZZ")
		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	})

	assert.Equal(t, 8, f.currentTicket(t).AvailableQuantity, "confirm does not touch inventory")
	f.requireInventoryInvariant(t)
}

type stalledTickets struct {
	repository.TicketRepository
	armed   *atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (r stalledTickets) Update(ctx context.Context, ticket *entity.Ticket, expectedRevision int64) error {
	if r.armed.CompareAndSwap(true, false) {
		close(r.entered)
		<-r.release
	}
	return r.TicketRepository.Update(ctx, ticket, expectedRevision)
}

func TestCancelBooking_StatusAndReleaseBecomeVisibleTogether(t *testing.T) {
	stalled := stalledTickets{armed: &atomic.Bool{}, entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, 10, "20.00", withRepo(func(r *repository.Repository) {
		stalled.TicketRepository = r.Ticket
		r.Ticket = stalled
	}))
	ctx := context.Background()
	owner := uuid.New()

	created, err := f.svc.Booking.CreateBooking(ctx, owner, createReq(f.ticket.ID, 2))
	require.NoError(t, err)

	stalled.armed.Store(true)
	cancelled := make(chan error, 1)
	go func() {
		_, err := f.svc.Booking.CancelBooking(ctx, owner, created.Reference)
		cancelled <- err
	}()
	<-stalled.entered

	booking, err := f.repo.Booking.FindByReference(ctx, created.Reference)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusPending, booking.Status)
	assert.Equal(t, 8, f.currentTicket(t).AvailableQuantity)
	f.requireInventoryInvariant(t)

	close(stalled.release)
	require.NoError(t, <-cancelled)

	booking, err = f.repo.Booking.FindByReference(ctx, created.Reference)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCancelled, booking.Status)
	assert.Equal(t, 10, f.currentTicket(t).AvailableQuantity)
	f.requireInventoryInvariant(t)
}

func TestCancelBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("cancel restores inventory, second cancel is rejected", func(t *testing.T) {
		f := newFixture(t, 100, "20.00")
		owner := uuid.New()
		created, err := f.svc.Booking.CreateBooking(ctx, owner, createReq(f.ticket.ID, 3))
		require.NoError(t, err)
		require.Equal(t, 97, f.currentTicket(t).AvailableQuantity)

		cancelled, err := f.svc.Booking.CancelBooking(ctx, owner, created.Reference)
		require.NoError(t, err)
		assert.Equal(t, entity.BookingStatusCancelled, cancelled.Status)
		assert.Equal(t, 100, f.currentTicket(t).AvailableQuantity)

		_, err = f.svc.Booking.CancelBooking(ctx, owner, created.Reference)
		assert.True(t, apperror.IsKind(err, apperror.KindInvalidState))
		assert.Equal(t, 100, f.currentTicket(t).AvailableQuantity)

		_, err = f.svc.Booking.ConfirmBooking(ctx, owner, created.Reference)
		assert.True(t, apperror.IsKind(err, apperror.KindInvalidState), "no transition leaves CANCELLED")

		assert.Equal(t, []events.Type{events.BookingCreated, events.BookingCancelled}, f.published.types())
		f.requireInventoryInvariant(t)
	})

	t.Run("confirmed bookings can be cancelled", func(t *testing.T) {
		f := newFixture(t, 10, "20.00")
		owner := uuid.New()
		created, err := f.svc.Booking.CreateBooking(ctx, owner, createReq(f.ticket.ID, 2))
		require.NoError(t, err)
		_, err = f.svc.Booking.ConfirmBooking(ctx, owner, created.Reference)
		require.NoError(t, err)

		_, err = f.svc.Booking.CancelBooking(ctx, owner, created.Reference)
		require.NoError(t, err)
		assert.Equal(t, 10, f.currentTicket(t).AvailableQuantity)
	})

	t.Run("event already started", func(t *testing.T) {
		f := newFixture(t, 10, "20.00")
		owner := uuid.New()
		created, err := f.svc.Booking.CreateBooking(ctx, owner, createReq(f.ticket.ID, 2))
		require.NoError(t, err)

		f.clock.Set(f.event.StartDate.Add(time.Hour))
		_, err = f.svc.Booking.CancelBooking(ctx, owner, created.Reference)
		assert.True(t, apperror.IsKind(err, apperror.KindEventStarted))
		assert.Equal(t, 8, f.currentTicket(t).AvailableQuantity)
	})

	t.Run("only the owner may cancel", func(t *testing.T) {
		f := newFixture(t, 10, "20.00")
		created, err := f.svc.Booking.CreateBooking(ctx, uuid.New(), createReq(f.ticket.ID, 2))
		require.NoError(t, err)

		_, err = f.svc.Booking.CancelBooking(ctx, f.organizer, created.Reference)
		assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
	})
}

func TestConcurrentTransitions_OnlyOneWins(t *testing.T) {
	ctx := context.Background()

	run := func(t *testing.T, action func(f *fixture, owner uuid.UUID, ref string) error) (*fixture, int, int) {
		f := newFixture(t, 10, "20.00")
		owner := uuid.New()
		created, err := f.svc.Booking.CreateBooking(ctx, owner, createReq(f.ticket.ID, 3))
		require.NoError(t, err)

		const racers = 8
		var (
			wg           sync.WaitGroup
			mu           sync.Mutex
			wins, losses int
		)
		start := make(chan struct{})
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				err := action(f, owner, created.Reference)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					wins++
				} else if apperror.IsKind(err, apperror.KindInvalidState) {
					losses++
				}
			}()
		}
		close(start)
		wg.Wait()
		return f, wins, losses
	}

	t.Run("cancel", func(t *testing.T) {
		f, wins, losses := run(t, func(f *fixture, owner uuid.UUID, ref string) error {
			_, err := f.svc.Booking.CancelBooking(ctx, owner, ref)
			return err
		})
		assert.Equal(t, 1, wins)
		assert.Equal(t, 7, losses)
		assert.Equal(t, 10, f.currentTicket(t).AvailableQuantity, "inventory is released exactly once")
		f.requireInventoryInvariant(t)
	})

	t.Run("confirm", func(t *testing.T) {
		_, wins, losses := run(t, func(f *fixture, owner uuid.UUID, ref string) error {
			_, err := f.svc.Booking.ConfirmBooking(ctx, owner, ref)
			return err
		})
		assert.Equal(t, 1, wins)
		assert.Equal(t, 7, losses)
	})
}

func TestBookingReads(t *testing.T) {
	f := newFixture(t, 50, "20.00")
	ctx := context.Background()
	owner, stranger := uuid.New(), uuid.New()

	var refs []string
	for i := 0; i < 3; i++ {
		f.clock.Advance(time.Minute)
		created, err := f.svc.Booking.CreateBooking(ctx, owner, createReq(f.ticket.ID, 1))
		require.NoError(t, err)
		refs = append(refs, created.Reference)
	}
	_, err := f.svc.Booking.CreateBooking(ctx, stranger, createReq(f.ticket.ID, 1))
	require.NoError(t, err)

	t.Run("owner and organizer may read, others may not", func(t *testing.T) {
		got, err := f.svc.Booking.GetBooking(ctx, owner, refs[0])
		require.NoError(t, err)
		assert.Equal(t, refs[0], got.Reference)

		_, err = f.svc.Booking.GetBooking(ctx, f.organizer, refs[0])
		require.NoError(t, err)

		_, err = f.svc.Booking.GetBooking(ctx, stranger, refs[0])
		assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

		_, err = f.svc.Booking.GetBooking(ctx, owner, "ANB-000000-NONE")
		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	})

	t.Run("user listing is paginated newest first", func(t *testing.T) {
		page, err := f.svc.Booking.ListUserBookings(ctx, owner, &request.PaginatedRequest{Page: 1, PerPage: 2})
		require.NoError(t, err)
		require.Len(t, page.Data, 2)
		assert.Equal(t, refs[2], page.Data[0].Reference)
		assert.Equal(t, int64(3), page.Pagination.Total)
		assert.Equal(t, 2, page.Pagination.TotalPages)

		page, err = f.svc.Booking.ListUserBookings(ctx, owner, &request.PaginatedRequest{Page: 2, PerPage: 2})
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		assert.Equal(t, refs[0], page.Data[0].Reference)
	})

	t.Run("organizer listing covers every booking on their events", func(t *testing.T) {
		page, err := f.svc.Booking.ListOrganizerBookings(ctx, f.organizer, &request.PaginatedRequest{Page: 1, PerPage: 10})
		require.NoError(t, err)
		assert.Len(t, page.Data, 4)

		page, err = f.svc.Booking.ListOrganizerBookings(ctx, stranger, &request.PaginatedRequest{Page: 1, PerPage: 10})
		require.NoError(t, err)
		assert.Empty(t, page.Data)
	})
}
