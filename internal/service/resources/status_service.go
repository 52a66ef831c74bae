package resources

import (
	"context"
	"log"
	"time"

	"github.com/Domenick1991/travelbook/internal/domain"
	"github.com/Domenick1991/travelbook/internal/kafka"
	"github.com/Domenick1991/travelbook/internal/repository"
	"github.com/jackc/pgx/v5"
)

type StatusUseCase interface {
	Advance(ctx context.Context, ref domain.ResourceRef, target domain.ResourceStatus, revised *domain.Window) (*domain.Resource, error)
	AdvanceDue(ctx context.Context, ref domain.ResourceRef) (bool, error)
	DueCandidates(ctx context.Context, kind domain.ResourceKind) ([]domain.ResourceRef, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// StatusService owns resource status transitions, including the
// transactional cascade that cancels every active booking when a
// resource is cancelled.
type StatusService struct {
	db            repository.DBPool
	resources     repository.ResourceRepository
	bookings      repository.BookingRepository
	cache         Cache
	producer      Producer
	resourceTopic string
	txRetries     int
	txBackoff     time.Duration
	now           func() time.Time
}

type StatusOption func(*StatusService)

func WithStatusClock(now func() time.Time) StatusOption {
	return func(s *StatusService) { s.now = now }
}

func WithStatusRetry(attempts int, backoff time.Duration) StatusOption {
	return func(s *StatusService) {
		s.txRetries = attempts
		s.txBackoff = backoff
	}
}

func NewStatusService(
	db repository.DBPool,
	resources repository.ResourceRepository,
	bookings repository.BookingRepository,
	cache Cache,
	producer Producer,
	resourceTopic string,
	opts ...StatusOption,
) *StatusService {
	s := &StatusService{
		db:            db,
		resources:     resources,
		bookings:      bookings,
		cache:         cache,
		producer:      producer,
		resourceTopic: resourceTopic,
		txRetries:     3,
		txBackoff:     100 * time.Millisecond,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Advance applies an operator-requested status change. Cancelling a
// resource cancels all of its PENDING/CONFIRMED bookings and restores
// the ledger to full capacity in the same transaction; it is rejected
// while any active booking holds a completed payment.
func (s *StatusService) Advance(ctx context.Context, ref domain.ResourceRef, target domain.ResourceStatus, revised *domain.Window) (*domain.Resource, error) {
	var updated *domain.Resource
	var cascaded []domain.Booking
	err := repository.InTxRetry(ctx, s.db, s.txRetries, s.txBackoff, func(tx pgx.Tx) error {
		cascaded = nil
		res, err := s.resources.GetForUpdate(ctx, tx, ref)
		if err != nil {
			return err
		}
		window := domain.Window{Start: res.WindowStart, End: res.WindowEnd}
		if err := domain.ValidateTransition(res.Kind, res.Status, target, window, revised, s.now()); err != nil {
			return err
		}

		if target == domain.CancelStatus(ref.Kind) {
			paid, err := s.bookings.HasCompletedPayment(ctx, tx, ref)
			if err != nil {
				return err
			}
			if paid {
				return domain.Conflict("resource has paid bookings, refund required first")
			}
			active, err := s.bookings.ActiveByResource(ctx, tx, ref)
			if err != nil {
				return err
			}
			for _, b := range active {
				applied, err := s.bookings.UpdateStatus(ctx, tx, b.ID, []domain.BookingStatus{domain.BookingStatusPending, domain.BookingStatusConfirmed}, domain.BookingStatusCancelled)
				if err != nil {
					return err
				}
				if applied {
					b.Status = domain.BookingStatusCancelled
					cascaded = append(cascaded, b)
				}
			}
			if err := s.resources.ResetCapacity(ctx, tx, ref); err != nil {
				return err
			}
		}

		if err := s.resources.UpdateStatus(ctx, tx, ref, target, revised); err != nil {
			return err
		}
		res.Status = target
		if revised != nil {
			res.WindowStart = revised.Start
			res.WindowEnd = revised.End
		}
		if target == domain.CancelStatus(ref.Kind) {
			res.CapacityAvailable = res.CapacityTotal
		}
		updated = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.InvalidateResources(ctx, ref.Kind)
	}
	s.publishResource(ctx, "resource_status_changed", updated, len(cascaded))
	for i := range cascaded {
		s.publishCascade(ctx, &cascaded[i])
	}
	return updated, nil
}

// AdvanceDue applies the time-driven transition for one resource, if any
// is due. The row is re-read under lock so a sweep racing with an
// operator change never applies a stale decision.
func (s *StatusService) AdvanceDue(ctx context.Context, ref domain.ResourceRef) (bool, error) {
	var applied bool
	var from, to domain.ResourceStatus
	err := repository.InTxRetry(ctx, s.db, s.txRetries, s.txBackoff, func(tx pgx.Tx) error {
		applied = false
		res, err := s.resources.GetForUpdate(ctx, tx, ref)
		if err != nil {
			return err
		}
		window := domain.Window{Start: res.WindowStart, End: res.WindowEnd}
		target, due := domain.DueTransition(res.Kind, res.Status, window, s.now())
		if !due {
			return nil
		}
		if err := s.resources.UpdateStatus(ctx, tx, ref, target, nil); err != nil {
			return err
		}
		from, to = res.Status, target
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if applied {
		if s.cache != nil {
			_ = s.cache.InvalidateResources(ctx, ref.Kind)
		}
		log.Printf("status: %s advanced %s -> %s", ref, from, to)
	}
	return applied, nil
}

// DueCandidates lists resources whose stored timestamps make a
// time-driven transition due right now.
func (s *StatusService) DueCandidates(ctx context.Context, kind domain.ResourceKind) ([]domain.ResourceRef, error) {
	rows, err := s.resources.NonTerminal(ctx, kind)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var due []domain.ResourceRef
	for _, res := range rows {
		window := domain.Window{Start: res.WindowStart, End: res.WindowEnd}
		if _, ok := domain.DueTransition(res.Kind, res.Status, window, now); ok {
			due = append(due, res.Ref())
		}
	}
	return due, nil
}

func (s *StatusService) publishResource(ctx context.Context, eventType string, res *domain.Resource, cancelled int) {
	if s.producer == nil || s.resourceTopic == "" || res == nil {
		return
	}
	event := kafka.ResourceEvent{
		Type:              eventType,
		ResourceKind:      string(res.Kind),
		ResourceID:        res.ID,
		Status:            string(res.Status),
		CancelledBookings: cancelled,
	}
	if err := s.producer.Publish(ctx, s.resourceTopic, res.Ref().String(), event); err != nil {
		log.Printf("status: publish %s for %s: %v", eventType, res.Ref(), err)
	}
}

func (s *StatusService) publishCascade(ctx context.Context, b *domain.Booking) {
	if s.producer == nil || s.resourceTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:         "booking_cancelled",
		Token:        b.Token,
		ResourceKind: string(b.Resource.Kind),
		ResourceID:   b.Resource.ID,
		UserID:       b.UserID,
		Units:        b.Units,
		Email:        b.Email,
		Status:       string(b.Status),
	}
	if err := s.producer.Publish(ctx, s.resourceTopic, b.Token, event); err != nil {
		log.Printf("status: publish cascade cancel for %s: %v", b.Token, err)
	}
}

var _ StatusUseCase = (*StatusService)(nil)
