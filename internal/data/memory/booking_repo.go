package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"event-booking/internal/data/entity"

	"github.com/google/uuid"
)

type bookingRepository struct {
	s *store
}

// Create waits on a unit that is inserting the same reference, then
// reports false if that unit committed it.
func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) (bool, error) {
	created := false
	err := r.s.write(ctx, func(u *unit) error {
		if err := u.lock(ctx, bookingRefKey(booking.Reference)); err != nil {
			return err
		}
		if _, taken := r.s.bookingIDByRef(u, booking.Reference); taken {
			return nil
		}
		if _, ok := r.s.booking(u, booking.ID); ok {
			return fmt.Errorf("create booking %s: id already exists", booking.Reference)
		}
		if err := u.lock(ctx, bookingRow(booking.ID)); err != nil {
			return err
		}

		u.stageBooking(*booking)
		created = true
		return nil
	})
	return created, err
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	booking, ok := r.s.booking(unitFrom(ctx), id)
	if !ok {
		return nil, nil
	}
	return &booking, nil
}

func (r *bookingRepository) FindByReference(ctx context.Context, reference string) (*entity.Booking, error) {
	u := unitFrom(ctx)
	id, ok := r.s.bookingIDByRef(u, reference)
	if !ok {
		return nil, nil
	}
	booking, ok := r.s.booking(u, id)
	if !ok {
		return nil, nil
	}
	return &booking, nil
}

func (r *bookingRepository) FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	return r.page(ctx, func(b *entity.Booking) bool { return b.UserID == userID }, limit, offset), nil
}

func (r *bookingRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	return r.count(ctx, func(b *entity.Booking) bool { return b.UserID == userID }), nil
}

func (r *bookingRepository) FindByOrganizerID(ctx context.Context, organizerID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	return r.page(ctx, r.organizedBy(organizerID), limit, offset), nil
}

func (r *bookingRepository) CountByOrganizerID(ctx context.Context, organizerID uuid.UUID) (int64, error) {
	return r.count(ctx, r.organizedBy(organizerID)), nil
}

func (r *bookingRepository) SumActiveQuantity(ctx context.Context, ticketID uuid.UUID) (int, error) {
	sum := 0
	for _, b := range r.s.visibleBookings(unitFrom(ctx)) {
		if b.TicketID == ticketID && b.Status.Active() {
			sum += b.Quantity
		}
	}
	return sum, nil
}

// UpdateStatus holds the booking row until the unit ends, so a racing
// transition re-reads the winner's status once it commits.
func (r *bookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.BookingStatus, at time.Time) (bool, error) {
	updated := false
	err := r.s.write(ctx, func(u *unit) error {
		if err := u.lock(ctx, bookingRow(id)); err != nil {
			return err
		}

		booking, ok := r.s.booking(u, id)
		if !ok || booking.Status != from {
			return nil
		}
		booking.Status = to
		booking.UpdatedAt = at
		u.stageBooking(booking)
		updated = true
		return nil
	})
	return updated, err
}

func (r *bookingRepository) organizedBy(organizerID uuid.UUID) func(*entity.Booking) bool {
	r.s.mu.RLock()
	events := make(map[uuid.UUID]struct{})
	for id, e := range r.s.events {
		if e.OrganizerID == organizerID {
			events[id] = struct{}{}
		}
	}
	r.s.mu.RUnlock()

	return func(b *entity.Booking) bool {
		_, ok := events[b.EventID]
		return ok
	}
}

func (r *bookingRepository) page(ctx context.Context, match func(*entity.Booking) bool, limit, offset int) []*entity.Booking {
	var out []*entity.Booking
	for _, b := range r.s.visibleBookings(unitFrom(ctx)) {
		b := b
		if match(&b) {
			out = append(out, &b)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	if offset >= len(out) {
		return nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

func (r *bookingRepository) count(ctx context.Context, match func(*entity.Booking) bool) int64 {
	var n int64
	for _, b := range r.s.visibleBookings(unitFrom(ctx)) {
		b := b
		if match(&b) {
			n++
		}
	}
	return n
}
