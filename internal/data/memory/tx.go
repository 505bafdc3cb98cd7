package memory

import (
	"context"
	"fmt"
	"sync"

	"event-booking/internal/data/entity"
	"event-booking/internal/data/repository"
	"event-booking/pkg/lock"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type unitKey struct{}

// unit is one unit of work: the rows it staged and the row locks it holds.
type unit struct {
	rows *lock.Keyed

	mu       sync.Mutex
	held     map[string]func()
	tickets  map[uuid.UUID]entity.Ticket
	bookings map[uuid.UUID]entity.Booking
	payments map[uuid.UUID]entity.PaymentTransaction
}

func (s *store) begin() *unit {
	return &unit{
		rows:     s.rows,
		held:     make(map[string]func()),
		tickets:  make(map[uuid.UUID]entity.Ticket),
		bookings: make(map[uuid.UUID]entity.Booking),
		payments: make(map[uuid.UUID]entity.PaymentTransaction),
	}
}

func unitFrom(ctx context.Context) *unit {
	u, _ := ctx.Value(unitKey{}).(*unit)
	return u
}

// lock takes the row lock for key unless u already holds it.
func (u *unit) lock(ctx context.Context, key string) error {
	u.mu.Lock()
	_, held := u.held[key]
	u.mu.Unlock()
	if held {
		return nil
	}

	release, err := u.rows.Acquire(ctx, key)
	if err != nil {
		return err
	}
	u.mu.Lock()
	u.held[key] = release
	u.mu.Unlock()
	return nil
}

// releaseLocked frees every row lock. u.mu must be held.
func (u *unit) releaseLocked() {
	for key, release := range u.held {
		release()
		delete(u.held, key)
	}
	u.tickets, u.bookings, u.payments = nil, nil, nil
}

func (u *unit) stageTicket(t entity.Ticket) {
	u.mu.Lock()
	u.tickets[t.ID] = t
	u.mu.Unlock()
}

func (u *unit) stageBooking(b entity.Booking) {
	u.mu.Lock()
	u.bookings[b.ID] = b
	u.mu.Unlock()
}

func (u *unit) stagePayment(p entity.PaymentTransaction) {
	u.mu.Lock()
	u.payments[p.ID] = p
	u.mu.Unlock()
}

func (u *unit) ticket(id uuid.UUID) (entity.Ticket, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	t, ok := u.tickets[id]
	return t, ok
}

func (u *unit) booking(id uuid.UUID) (entity.Booking, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	b, ok := u.bookings[id]
	return b, ok
}

func (u *unit) bookingIDByRef(reference string) (uuid.UUID, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for id, b := range u.bookings {
		if b.Reference == reference {
			return id, true
		}
	}
	return uuid.Nil, false
}

func (u *unit) payment(id uuid.UUID) (entity.PaymentTransaction, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	p, ok := u.payments[id]
	return p, ok
}

// paymentID matches on reference, or on bookingID when reference is empty.
func (u *unit) paymentID(reference string, bookingID uuid.UUID) (uuid.UUID, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for id, p := range u.payments {
		if (reference != "" && p.Reference == reference) || (reference == "" && p.BookingID == bookingID) {
			return id, true
		}
	}
	return uuid.Nil, false
}

// write runs fn in the unit carried by ctx. Without one, fn gets its own
// unit that commits when fn succeeds.
func (s *store) write(ctx context.Context, fn func(u *unit) error) error {
	if u := unitFrom(ctx); u != nil {
		return fn(u)
	}
	u := s.begin()
	if err := fn(u); err != nil {
		s.rollback(u)
		return err
	}
	s.commit(u)
	return nil
}

func ticketRow(id uuid.UUID) string  { return "ticket:" + id.String() }
func bookingRow(id uuid.UUID) string { return "booking:" + id.String() }
func paymentRow(id uuid.UUID) string { return "payment:" + id.String() }

func bookingRefKey(ref string) string { return "booking-ref:" + ref }
func paymentRefKey(ref string) string { return "payment-ref:" + ref }

func paymentBookingKey(id uuid.UUID) string { return "payment-booking:" + id.String() }

type txManager struct {
	s   *store
	log *zap.Logger
}

func newTxManager(s *store, log *zap.Logger) repository.TxManager {
	return &txManager{s: s, log: log.With(zap.String("repository", "memory-tx"))}
}

func (m *txManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if unitFrom(ctx) != nil {
		return fn(ctx)
	}

	u := m.s.begin()
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("Unit of work panicked, rolling back", zap.Any("panic", r))
			m.s.rollback(u)
			panic(r)
		}
	}()

	if err = fn(context.WithValue(ctx, unitKey{}, u)); err != nil {
		m.log.Debug("Rolling back unit of work", zap.Error(err))
		m.s.rollback(u)
		return err
	}
	m.s.commit(u)
	return nil
}

func requireUnit(ctx context.Context, what string) (*unit, error) {
	u := unitFrom(ctx)
	if u == nil {
		return nil, fmt.Errorf("%s: no transaction in context", what)
	}
	return u, nil
}
