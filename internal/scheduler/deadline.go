package scheduler

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Domenick1991/travelbook/internal/domain"
)

// Expirer is the coordinator entry point for deadline expiry; the call
// is idempotent, so overlapping sweeps cannot double-release a booking.
type Expirer interface {
	Expire(ctx context.Context, token string) (bool, error)
}

// ExpiredScanner finds PENDING bookings whose payment deadline elapsed.
type ExpiredScanner interface {
	ExpiredPending(ctx context.Context, deadline time.Time, limit int) ([]domain.Booking, error)
}

// DeadlineSweeper cancels PENDING bookings whose payment deadline has
// elapsed. Bookings are processed independently with bounded
// concurrency; one stuck booking is retried a few times, logged and left
// for the next cycle.
type DeadlineSweeper struct {
	bookings    ExpiredScanner
	coordinator Expirer
	batchSize   int
	workers     int
	retries     int
	backoff     time.Duration
	now         func() time.Time
}

func NewDeadlineSweeper(bookings ExpiredScanner, coordinator Expirer, batchSize, workers, retries int, backoff time.Duration) *DeadlineSweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	if workers <= 0 {
		workers = 4
	}
	return &DeadlineSweeper{
		bookings:    bookings,
		coordinator: coordinator,
		batchSize:   batchSize,
		workers:     workers,
		retries:     retries,
		backoff:     backoff,
		now:         time.Now,
	}
}

func (s *DeadlineSweeper) Name() string { return "deadline_expiry" }

func (s *DeadlineSweeper) Run(ctx context.Context) error {
	expired, err := s.bookings.ExpiredPending(ctx, s.now(), s.batchSize)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	var released, skipped, failed atomic.Int32
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for _, b := range expired {
		wg.Add(1)
		sem <- struct{}{}
		go func(token string) {
			defer wg.Done()
			defer func() { <-sem }()

			ok, err := s.expireWithRetry(ctx, token)
			switch {
			case err != nil:
				failed.Add(1)
				log.Printf("deadline: releasing booking %s failed, leaving for next cycle: %v", token, err)
			case ok:
				released.Add(1)
			default:
				skipped.Add(1)
			}
		}(b.Token)
	}
	wg.Wait()

	log.Printf("deadline: sweep done, released=%d skipped=%d failed=%d of %d", released.Load(), skipped.Load(), failed.Load(), len(expired))
	return nil
}

func (s *DeadlineSweeper) expireWithRetry(ctx context.Context, token string) (bool, error) {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(time.Duration(attempt) * s.backoff):
			}
		}
		ok, err := s.coordinator.Expire(ctx, token)
		if err == nil {
			return ok, nil
		}
		lastErr = err
	}
	return false, lastErr
}
