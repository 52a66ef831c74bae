package scheduler

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/Domenick1991/travelbook/internal/domain"
)

// Advancer applies the time-driven status transition for one resource.
type Advancer interface {
	AdvanceDue(ctx context.Context, ref domain.ResourceRef) (bool, error)
	DueCandidates(ctx context.Context, kind domain.ResourceKind) ([]domain.ResourceRef, error)
}

// StatusSweeper rolls resource statuses forward against the wall clock
// (departures, landings, tour starts and ends). Each resource is
// processed independently; a failure is logged and skipped.
type StatusSweeper struct {
	status  Advancer
	kinds   []domain.ResourceKind
	workers int
}

func NewStatusSweeper(status Advancer, kinds []domain.ResourceKind, workers int) *StatusSweeper {
	if len(kinds) == 0 {
		kinds = []domain.ResourceKind{domain.KindFlight, domain.KindTour}
	}
	if workers <= 0 {
		workers = 4
	}
	return &StatusSweeper{status: status, kinds: kinds, workers: workers}
}

func (s *StatusSweeper) Name() string { return "resource_status" }

func (s *StatusSweeper) Run(ctx context.Context) error {
	var advanced, failed atomic.Int32
	total := 0
	for _, kind := range s.kinds {
		due, err := s.status.DueCandidates(ctx, kind)
		if err != nil {
			log.Printf("status sweep: scanning %s: %v", kind, err)
			continue
		}
		total += len(due)

		sem := make(chan struct{}, s.workers)
		var wg sync.WaitGroup
		for _, ref := range due {
			wg.Add(1)
			sem <- struct{}{}
			go func(ref domain.ResourceRef) {
				defer wg.Done()
				defer func() { <-sem }()

				ok, err := s.status.AdvanceDue(ctx, ref)
				if err != nil {
					failed.Add(1)
					log.Printf("status sweep: advancing %s: %v", ref, err)
					return
				}
				if ok {
					advanced.Add(1)
				}
			}(ref)
		}
		wg.Wait()
	}

	if total > 0 {
		log.Printf("status sweep: done, advanced=%d failed=%d of %d", advanced.Load(), failed.Load(), total)
	}
	return nil
}
