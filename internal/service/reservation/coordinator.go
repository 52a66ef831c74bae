package reservation

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Domenick1991/travelbook/internal/domain"
	"github.com/Domenick1991/travelbook/internal/kafka"
	"github.com/Domenick1991/travelbook/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Actor is the requesting principal. Non-admin actors may only touch
// bookings of their own user id.
type Actor struct {
	UserID int64
	Admin  bool
}

// System is the actor used by background sweeps.
var System = Actor{Admin: true}

type ReserveInput struct {
	Resource domain.ResourceRef `json:"resource"`
	UserID   int64              `json:"user_id"`
	Units    int                `json:"units"`
	Email    string             `json:"email"`
}

// Coordinator is the single owner of the ledger/booking atomic unit.
// Every capacity mutation in the system (create, confirm, cancel, delete,
// transfer, deadline expiry, cascade) funnels through it.
type Coordinator interface {
	Reserve(ctx context.Context, actor Actor, input ReserveInput) (*domain.Booking, error)
	Confirm(ctx context.Context, actor Actor, token string) (*domain.Booking, error)
	Complete(ctx context.Context, actor Actor, token string) (*domain.Booking, error)
	Release(ctx context.Context, actor Actor, token string) (*domain.Booking, error)
	Transfer(ctx context.Context, actor Actor, token string, newRef domain.ResourceRef) (*domain.Booking, error)
	DeleteBooking(ctx context.Context, actor Actor, token string) error
	Expire(ctx context.Context, token string) (bool, error)
	GetBooking(ctx context.Context, actor Actor, token string) (*domain.Booking, error)
}

type Cache interface {
	AcquireTransferLock(ctx context.Context, token string, ttl time.Duration) (bool, error)
	ReleaseTransferLock(ctx context.Context, token string) error
	InvalidateResources(ctx context.Context, kind domain.ResourceKind) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type Service struct {
	db                 repository.DBPool
	bookings           repository.BookingRepository
	resources          repository.ResourceRepository
	cache              Cache
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	txRetries          int
	txBackoff          time.Duration
	transferLockTTL    time.Duration
	now                func() time.Time
}

type Option func(*Service)

func WithNotificationsTopic(topic string) Option {
	return func(s *Service) { s.notificationsTopic = topic }
}

func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		s.txRetries = attempts
		s.txBackoff = backoff
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewCoordinator(
	db repository.DBPool,
	bookings repository.BookingRepository,
	resources repository.ResourceRepository,
	cache Cache,
	producer Producer,
	bookingTopic string,
	opts ...Option,
) *Service {
	s := &Service{
		db:              db,
		bookings:        bookings,
		resources:       resources,
		cache:           cache,
		producer:        producer,
		bookingTopic:    bookingTopic,
		txRetries:       3,
		txBackoff:       100 * time.Millisecond,
		transferLockTTL: 30 * time.Second,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) authorize(actor Actor, userID int64) error {
	if actor.Admin || actor.UserID == userID {
		return nil
	}
	return domain.ErrForbidden
}

func (s *Service) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return repository.InTxRetry(ctx, s.db, s.txRetries, s.txBackoff, fn)
}

// Reserve validates availability, decrements the ledger and creates the
// PENDING booking as one transaction. The guarded decrement serializes
// concurrent reservations on the resource row, so the call past
// exhaustion fails with the exact reason instead of overselling.
func (s *Service) Reserve(ctx context.Context, actor Actor, input ReserveInput) (*domain.Booking, error) {
	if !input.Resource.Kind.Valid() {
		return nil, domain.Conflictf("unknown resource kind %q", input.Resource.Kind)
	}
	if input.Units <= 0 {
		return nil, domain.Conflict("units must be positive")
	}
	if input.Email == "" {
		return nil, domain.Conflict("email is required")
	}
	if err := s.authorize(actor, input.UserID); err != nil {
		return nil, err
	}

	booking := &domain.Booking{
		Token:    uuid.NewString(),
		Resource: input.Resource,
		UserID:   input.UserID,
		Units:    input.Units,
		Email:    input.Email,
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		res, err := s.resources.GetForUpdate(ctx, tx, input.Resource)
		if err != nil {
			return err
		}
		if !domain.Bookable(res.Kind, res.Status) {
			return domain.Conflict(domain.NonBookableReason(res.Kind, res.Status))
		}
		if err := s.resources.ReserveCapacity(ctx, tx, input.Resource, input.Units); err != nil {
			return err
		}

		deadline, dueNow := domain.PaymentDeadline(s.now(), res.WindowStart)
		booking.TotalPriceCents = res.PriceCents * int64(input.Units)
		booking.PaymentDeadline = &deadline
		booking.PaymentDueNow = dueNow
		return s.bookings.Create(ctx, tx, booking)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, input.Resource.Kind)
	s.publish(ctx, "booking_created", booking)
	return booking, nil
}

// Confirm marks the payment completed and moves the booking to CONFIRMED.
func (s *Service) Confirm(ctx context.Context, actor Actor, token string) (*domain.Booking, error) {
	var booking *domain.Booking
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		b, err := s.bookings.GetByTokenForUpdate(ctx, tx, token)
		if err != nil {
			return err
		}
		if err := s.authorize(actor, b.UserID); err != nil {
			return err
		}
		if err := b.CanTransition(domain.BookingStatusConfirmed); err != nil {
			return err
		}
		applied, err := s.bookings.UpdateStatus(ctx, tx, b.ID, []domain.BookingStatus{domain.BookingStatusPending}, domain.BookingStatusConfirmed)
		if err != nil {
			return err
		}
		if !applied {
			return domain.Conflict("booking is no longer pending")
		}
		if err := s.bookings.SetPaymentStatus(ctx, tx, b.ID, domain.PaymentStatusCompleted, b.TotalPriceCents); err != nil {
			return err
		}
		b.Status = domain.BookingStatusConfirmed
		b.PaymentStatus = domain.PaymentStatusCompleted
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "booking_confirmed", booking)
	return booking, nil
}

// Complete closes out a confirmed booking after its window has passed and
// returns the held units to the ledger, keeping the ledger equal to
// capacity total minus active bookings.
func (s *Service) Complete(ctx context.Context, actor Actor, token string) (*domain.Booking, error) {
	var booking *domain.Booking
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		b, err := s.bookings.GetByTokenForUpdate(ctx, tx, token)
		if err != nil {
			return err
		}
		if err := s.authorize(actor, b.UserID); err != nil {
			return err
		}
		if err := b.CanTransition(domain.BookingStatusCompleted); err != nil {
			return err
		}
		applied, err := s.bookings.UpdateStatus(ctx, tx, b.ID, []domain.BookingStatus{domain.BookingStatusConfirmed}, domain.BookingStatusCompleted)
		if err != nil {
			return err
		}
		if !applied {
			return domain.Conflict("booking is no longer confirmed")
		}
		if err := s.resources.ReleaseCapacity(ctx, tx, b.Resource, b.Units); err != nil {
			return err
		}
		b.Status = domain.BookingStatusCompleted
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, booking.Resource.Kind)
	s.publish(ctx, "booking_completed", booking)
	return booking, nil
}

// Release cancels a booking and re-increments the ledger. It is
// idempotent: the increment is gated on the status still being active, so
// a second call observes the terminal state and changes nothing.
func (s *Service) Release(ctx context.Context, actor Actor, token string) (*domain.Booking, error) {
	var booking *domain.Booking
	var released bool
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		released = false
		b, err := s.bookings.GetByTokenForUpdate(ctx, tx, token)
		if err != nil {
			return err
		}
		if err := s.authorize(actor, b.UserID); err != nil {
			return err
		}
		if b.Terminal() {
			booking = b
			return nil
		}
		if err := b.CanTransition(domain.BookingStatusCancelled); err != nil {
			return err
		}
		applied, err := s.bookings.UpdateStatus(ctx, tx, b.ID, []domain.BookingStatus{domain.BookingStatusPending, domain.BookingStatusConfirmed}, domain.BookingStatusCancelled)
		if err != nil {
			return err
		}
		if !applied {
			booking = b
			return nil
		}
		if err := s.resources.ReleaseCapacity(ctx, tx, b.Resource, b.Units); err != nil {
			return err
		}
		b.Status = domain.BookingStatusCancelled
		booking = b
		released = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if released {
		s.invalidate(ctx, booking.Resource.Kind)
		s.publish(ctx, "booking_cancelled", booking)
	}
	return booking, nil
}

// Expire is the deadline sweep entry point: cancel a PENDING booking
// whose payment deadline elapsed. Returns false without error when
// another tick already processed the booking.
func (s *Service) Expire(ctx context.Context, token string) (bool, error) {
	var booking *domain.Booking
	var released bool
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		released = false
		b, err := s.bookings.GetByTokenForUpdate(ctx, tx, token)
		if err != nil {
			return err
		}
		if b.Status != domain.BookingStatusPending {
			return nil
		}
		if b.PaymentDeadline == nil || b.PaymentDeadline.After(s.now()) {
			return nil
		}
		applied, err := s.bookings.UpdateStatus(ctx, tx, b.ID, []domain.BookingStatus{domain.BookingStatusPending}, domain.BookingStatusCancelled)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		if err := s.resources.ReleaseCapacity(ctx, tx, b.Resource, b.Units); err != nil {
			return err
		}
		b.Status = domain.BookingStatusCancelled
		booking = b
		released = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if released {
		s.invalidate(ctx, booking.Resource.Kind)
		s.publish(ctx, "booking_expired", booking)
	}
	return released, nil
}

// Transfer re-points a booking at another resource: the new resource's
// units are reserved and the old ones released in a single transaction.
// When the new resource is exhausted the transaction rolls back and the
// old reservation is untouched. Resource rows are locked in a canonical
// (kind, id) order so two opposite transfers over the same pair cannot
// deadlock.
func (s *Service) Transfer(ctx context.Context, actor Actor, token string, newRef domain.ResourceRef) (*domain.Booking, error) {
	if !newRef.Kind.Valid() {
		return nil, domain.Conflictf("unknown resource kind %q", newRef.Kind)
	}

	if s.cache != nil {
		ok, err := s.cache.AcquireTransferLock(ctx, token, s.transferLockTTL)
		if err != nil {
			log.Printf("reservation: transfer lock for %s: %v", token, err)
		} else if !ok {
			return nil, domain.Conflict("another transfer of this booking is in progress")
		} else {
			defer func() { _ = s.cache.ReleaseTransferLock(ctx, token) }()
		}
	}

	var booking *domain.Booking
	var moved bool
	var oldKind domain.ResourceKind
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		moved = false
		b, err := s.bookings.GetByTokenForUpdate(ctx, tx, token)
		if err != nil {
			return err
		}
		if err := s.authorize(actor, b.UserID); err != nil {
			return err
		}
		if err := b.CanMutateResource(); err != nil {
			return err
		}
		if b.Resource == newRef {
			booking = b
			return nil
		}

		oldRef := b.Resource
		oldKind = oldRef.Kind
		var newRes *domain.Resource
		for _, ref := range lockOrder(oldRef, newRef) {
			res, err := s.resources.GetForUpdate(ctx, tx, ref)
			if err != nil {
				return err
			}
			if ref == newRef {
				newRes = res
			}
		}
		if !domain.Bookable(newRes.Kind, newRes.Status) {
			return domain.Conflict(domain.NonBookableReason(newRes.Kind, newRes.Status))
		}
		if err := s.resources.ReserveCapacity(ctx, tx, newRef, b.Units); err != nil {
			return err
		}
		if err := s.resources.ReleaseCapacity(ctx, tx, oldRef, b.Units); err != nil {
			return err
		}

		price := newRes.PriceCents * int64(b.Units)
		if err := s.bookings.UpdateResource(ctx, tx, b.ID, newRef, price); err != nil {
			return err
		}
		b.Resource = newRef
		b.TotalPriceCents = price
		booking = b
		moved = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if moved {
		s.invalidate(ctx, oldKind)
		s.invalidate(ctx, newRef.Kind)
		s.publish(ctx, "booking_transferred", booking)
	}
	return booking, nil
}

// DeleteBooking removes the row entirely, releasing held units first.
// Confirmed bookings with an upcoming window and paid bookings are
// rejected: those must go through cancellation or refund.
func (s *Service) DeleteBooking(ctx context.Context, actor Actor, token string) error {
	var kind domain.ResourceKind
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		b, err := s.bookings.GetByTokenForUpdate(ctx, tx, token)
		if err != nil {
			return err
		}
		if err := s.authorize(actor, b.UserID); err != nil {
			return err
		}
		res, err := s.resources.GetForUpdate(ctx, tx, b.Resource)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		windowStart := time.Time{}
		if res != nil {
			windowStart = res.WindowStart
		}
		if err := b.CanDelete(windowStart, s.now()); err != nil {
			return err
		}
		if b.Active() && res != nil {
			if err := s.resources.ReleaseCapacity(ctx, tx, b.Resource, b.Units); err != nil {
				return err
			}
		}
		kind = b.Resource.Kind
		return s.bookings.Delete(ctx, tx, b.ID)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, kind)
	return nil
}

func (s *Service) GetBooking(ctx context.Context, actor Actor, token string) (*domain.Booking, error) {
	b, err := s.bookings.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, b.UserID); err != nil {
		return nil, err
	}
	return b, nil
}

// lockOrder returns the two refs in canonical order for row locking.
func lockOrder(a, b domain.ResourceRef) [2]domain.ResourceRef {
	if a.Kind < b.Kind || (a.Kind == b.Kind && a.ID < b.ID) {
		return [2]domain.ResourceRef{a, b}
	}
	return [2]domain.ResourceRef{b, a}
}

func (s *Service) invalidate(ctx context.Context, kind domain.ResourceKind) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateResources(ctx, kind); err != nil {
		log.Printf("reservation: invalidate %s cache: %v", kind, err)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.producer == nil || s.bookingTopic == "" || booking == nil {
		return
	}
	event := kafka.BookingEvent{
		Type:            eventType,
		Token:           booking.Token,
		ResourceKind:    string(booking.Resource.Kind),
		ResourceID:      booking.Resource.ID,
		UserID:          booking.UserID,
		Units:           booking.Units,
		Email:           booking.Email,
		Status:          string(booking.Status),
		TotalPriceCents: booking.TotalPriceCents,
		PaymentDeadline: booking.PaymentDeadline,
	}
	if err := s.producer.Publish(ctx, s.bookingTopic, booking.Token, event); err != nil {
		log.Printf("reservation: publish %s for %s: %v", eventType, booking.Token, err)
		return
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, booking.Token, event); err != nil {
			log.Printf("reservation: publish notification for %s: %v", booking.Token, err)
		}
	}
}

var _ Coordinator = (*Service)(nil)
