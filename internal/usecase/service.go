package usecase

import (
	"fmt"

	"event-booking/internal/data/repository"
	"event-booking/pkg/apperror"
	"event-booking/pkg/clock"
	"event-booking/pkg/events"
	"event-booking/pkg/lock"
	"event-booking/pkg/reference"

	"go.uber.org/zap"
)

// maxReferenceAttempts bounds regeneration after a reference collision.
const maxReferenceAttempts = 5

type Service struct {
	Inventory InventoryService
	Booking   BookingService
	Payment   PaymentService
}

// Deps are the collaborators shared by the services.
type Deps struct {
	Locker     lock.Locker
	References *reference.Generator
	Authorizer Authorizer
	Publisher  events.Publisher
	Gateway    PaymentGateway
	Clock      clock.Clock
}

func NewService(repo *repository.Repository, deps Deps, log *zap.Logger) *Service {
	if deps.Authorizer == nil {
		deps.Authorizer = NewAuthorizer()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	if deps.Gateway == nil {
		deps.Gateway = NewStubGateway()
	}
	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}
	if deps.References == nil {
		deps.References = reference.NewGenerator(deps.Clock)
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewKeyed(lock.DefaultTimeout)
	}

	inventory := NewInventoryService(repo, deps.Locker, deps.Authorizer, deps.Publisher, deps.Clock, log)
	bookings := newBookingService(repo, inventory, deps.References, deps.Authorizer, deps.Publisher, deps.Clock, log)

	return &Service{
		Inventory: inventory,
		Booking:   bookings,
		Payment:   newPaymentService(repo, bookings, deps.References, deps.Authorizer, deps.Gateway, deps.Publisher, deps.Clock, log),
	}
}

// withUniqueReference generates references until insert accepts one.
// insert reports false when the reference is already taken.
func withUniqueReference(log *zap.Logger, entity string, generate func() (string, error), insert func(ref string) (bool, error)) error {
	for attempt := 1; attempt <= maxReferenceAttempts; attempt++ {
		ref, err := generate()
		if err != nil {
			return fmt.Errorf("generate %s reference: %w", entity, err)
		}
		created, err := insert(ref)
		if err != nil {
			return err
		}
		if created {
			return nil
		}
		log.Warn("Reference collision, regenerating",
			zap.String("entity", entity),
			zap.String("reference", ref),
			zap.Int("attempt", attempt),
		)
	}
	return apperror.Conflict(fmt.Sprintf("could not allocate a unique %s reference", entity))
}

// logFailure logs business rejections at Warn and everything else at Error.
func logFailure(log *zap.Logger, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	switch apperror.KindOf(err) {
	case apperror.KindFatal:
		log.Error(msg, append(fields, zap.Stack("stack"))...)
	case apperror.KindUnknown:
		log.Error(msg, fields...)
	default:
		log.Warn(msg, fields...)
	}
}
