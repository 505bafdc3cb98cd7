// Package memory keeps events, tickets, bookings and payment transactions in
// process memory behind the repository interfaces.
//
// Writes made inside a unit of work are staged and become visible to other
// goroutines only when the unit commits. Rows a unit writes or selects for
// update stay locked until it ends, so a concurrent writer waits for the
// outcome instead of reading a value that may still be rolled back.
package memory

import (
	"sync"
	"time"

	"event-booking/internal/data/entity"
	"event-booking/internal/data/repository"
	"event-booking/pkg/lock"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type store struct {
	mu sync.RWMutex

	events   map[uuid.UUID]entity.Event
	tickets  map[uuid.UUID]entity.Ticket
	bookings map[uuid.UUID]entity.Booking
	payments map[uuid.UUID]entity.PaymentTransaction

	bookingByRef     map[string]uuid.UUID
	paymentByRef     map[string]uuid.UUID
	paymentByBooking map[uuid.UUID]uuid.UUID

	rows *lock.Keyed
}

type Option func(*options)

type options struct {
	lockTimeout time.Duration
}

// WithLockTimeout bounds how long a unit waits for a row another unit holds.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

func newStore(lockTimeout time.Duration) *store {
	return &store{
		events:           make(map[uuid.UUID]entity.Event),
		tickets:          make(map[uuid.UUID]entity.Ticket),
		bookings:         make(map[uuid.UUID]entity.Booking),
		payments:         make(map[uuid.UUID]entity.PaymentTransaction),
		bookingByRef:     make(map[string]uuid.UUID),
		paymentByRef:     make(map[string]uuid.UUID),
		paymentByBooking: make(map[uuid.UUID]uuid.UUID),
		rows:             lock.NewKeyed(lockTimeout),
	}
}

// NewRepository returns repositories sharing one in-process store.
func NewRepository(log *zap.Logger, opts ...Option) *repository.Repository {
	o := options{lockTimeout: lock.DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	s := newStore(o.lockTimeout)
	return &repository.Repository{
		Tx:      newTxManager(s, log),
		Event:   &eventRepository{s: s},
		Ticket:  &ticketRepository{s: s, log: log.With(zap.String("repository", "memory-ticket"))},
		Booking: &bookingRepository{s: s},
		Payment: &paymentRepository{s: s, log: log.With(zap.String("repository", "memory-payment"))},
	}
}

// commit publishes everything u staged in one step, then frees its rows.
func (s *store) commit(u *unit) {
	u.mu.Lock()
	defer u.mu.Unlock()

	s.mu.Lock()
	for id, t := range u.tickets {
		s.tickets[id] = t
	}
	for id, b := range u.bookings {
		s.bookings[id] = b
		s.bookingByRef[b.Reference] = id
	}
	for id, p := range u.payments {
		s.payments[id] = p
		s.paymentByRef[p.Reference] = id
		s.paymentByBooking[p.BookingID] = id
	}
	s.mu.Unlock()

	u.releaseLocked()
}

func (s *store) rollback(u *unit) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.releaseLocked()
}

func (s *store) ticket(u *unit, id uuid.UUID) (entity.Ticket, bool) {
	if u != nil {
		if t, ok := u.ticket(id); ok {
			return t, true
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	return t, ok
}

func (s *store) booking(u *unit, id uuid.UUID) (entity.Booking, bool) {
	if u != nil {
		if b, ok := u.booking(id); ok {
			return b, true
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	return b, ok
}

func (s *store) bookingIDByRef(u *unit, reference string) (uuid.UUID, bool) {
	if u != nil {
		if id, ok := u.bookingIDByRef(reference); ok {
			return id, true
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bookingByRef[reference]
	return id, ok
}

// visibleBookings is the committed set overlaid with what u staged.
func (s *store) visibleBookings(u *unit) []entity.Booking {
	s.mu.RLock()
	merged := make(map[uuid.UUID]entity.Booking, len(s.bookings))
	for id, b := range s.bookings {
		merged[id] = b
	}
	s.mu.RUnlock()

	if u != nil {
		u.mu.Lock()
		for id, b := range u.bookings {
			merged[id] = b
		}
		u.mu.Unlock()
	}

	out := make([]entity.Booking, 0, len(merged))
	for _, b := range merged {
		out = append(out, b)
	}
	return out
}

func (s *store) payment(u *unit, id uuid.UUID) (entity.PaymentTransaction, bool) {
	if u != nil {
		if p, ok := u.payment(id); ok {
			return p, true
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	return p, ok
}

func (s *store) paymentID(u *unit, reference string, bookingID uuid.UUID) (uuid.UUID, bool) {
	if u != nil {
		if id, ok := u.paymentID(reference, bookingID); ok {
			return id, true
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if reference != "" {
		id, ok := s.paymentByRef[reference]
		return id, ok
	}
	id, ok := s.paymentByBooking[bookingID]
	return id, ok
}
