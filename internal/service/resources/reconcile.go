package resources

import (
	"context"
	"log"
	"time"

	"github.com/Domenick1991/travelbook/internal/domain"
	"github.com/Domenick1991/travelbook/internal/repository"
	"github.com/jackc/pgx/v5"
)

// Skip reasons reported by bulk deletion.
const (
	SkipPaidBookings      = "paid bookings"
	SkipConfirmedUpcoming = "confirmed upcoming bookings"
	SkipInProgress        = "in progress"
)

// Report partitions a bulk delete: which rows were removed and which
// were blocked, keyed by the blocking reason.
type Report struct {
	Deleted []int64            `json:"deleted"`
	Skipped map[string][]int64 `json:"skipped"`
}

type ReconcileUseCase interface {
	DeleteAll(ctx context.Context, kind domain.ResourceKind) (*Report, error)
}

// Reconciler implements the bulk delete-all operations. Each resource is
// classified with the same preconditions as a single-item delete; the
// safe partition is removed in one transaction and blocked rows are
// reported instead of failing the batch.
type Reconciler struct {
	db        repository.DBPool
	resources repository.ResourceRepository
	bookings  repository.BookingRepository
	cache     Cache
	now       func() time.Time
}

func NewReconciler(db repository.DBPool, resources repository.ResourceRepository, bookings repository.BookingRepository, cache Cache, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		db:        db,
		resources: resources,
		bookings:  bookings,
		cache:     cache,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type ReconcilerOption func(*Reconciler)

func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

func (r *Reconciler) DeleteAll(ctx context.Context, kind domain.ResourceKind) (*Report, error) {
	if !kind.Valid() {
		return nil, domain.ErrNotFound
	}

	report := &Report{Deleted: []int64{}, Skipped: map[string][]int64{}}
	err := repository.InTx(ctx, r.db, func(tx pgx.Tx) error {
		all, err := r.resources.List(ctx, kind)
		if err != nil {
			return err
		}
		now := r.now()
		for _, res := range all {
			ref := res.Ref()
			locked, err := r.resources.GetForUpdate(ctx, tx, ref)
			if err != nil {
				return err
			}
			reason, err := r.classify(ctx, tx, locked, now)
			if err != nil {
				return err
			}
			if reason != "" {
				report.Skipped[reason] = append(report.Skipped[reason], res.ID)
				continue
			}
			if _, err := r.bookings.DeleteByResource(ctx, tx, ref); err != nil {
				return err
			}
			if err := r.resources.Delete(ctx, tx, ref); err != nil {
				return err
			}
			report.Deleted = append(report.Deleted, res.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		_ = r.cache.InvalidateResources(ctx, kind)
	}
	log.Printf("reconcile: %s delete-all removed %d, skipped %d", kind, len(report.Deleted), skippedCount(report))
	return report, nil
}

// classify returns the blocking reason for a resource, or "" when it is
// safe to remove. The rules are the single-item delete preconditions.
func (r *Reconciler) classify(ctx context.Context, tx pgx.Tx, res *domain.Resource, now time.Time) (string, error) {
	if res.Status == domain.FlightDeparted || res.Status == domain.TourOngoing {
		return SkipInProgress, nil
	}
	paid, err := r.bookings.HasCompletedPayment(ctx, tx, res.Ref())
	if err != nil {
		return "", err
	}
	if paid {
		return SkipPaidBookings, nil
	}
	active, err := r.bookings.ActiveByResource(ctx, tx, res.Ref())
	if err != nil {
		return "", err
	}
	for _, b := range active {
		if b.Status == domain.BookingStatusConfirmed && res.WindowStart.After(now) {
			return SkipConfirmedUpcoming, nil
		}
	}
	return "", nil
}

func skippedCount(report *Report) int {
	n := 0
	for _, ids := range report.Skipped {
		n += len(ids)
	}
	return n
}

var _ ReconcileUseCase = (*Reconciler)(nil)
