package scheduler

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// Job is one periodic sweep. Run failures are logged and retried on the
// next tick; they never stop the runner.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Locker guards a tick across worker replicas. Optional.
type Locker interface {
	AcquireSweepLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseSweepLock(ctx context.Context, name string) error
}

// Runner drives a Job on a fixed cadence. A tick that is still running
// when the next one fires is skipped, so a slow sweep never stacks up
// behind itself.
type Runner struct {
	job      Job
	interval time.Duration
	locker   Locker
	inFlight atomic.Bool
}

func NewRunner(job Job, interval time.Duration, locker Locker) *Runner {
	return &Runner{job: job, interval: interval, locker: locker}
}

// Start blocks until the context is cancelled.
func (r *Runner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("scheduler: %s running every %s", r.job.Name(), r.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("scheduler: %s stopped", r.job.Name())
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if !r.inFlight.CompareAndSwap(false, true) {
		log.Printf("scheduler: %s previous tick still running, skipping", r.job.Name())
		return
	}
	defer r.inFlight.Store(false)

	if r.locker != nil {
		ok, err := r.locker.AcquireSweepLock(ctx, r.job.Name(), r.interval)
		if err != nil {
			log.Printf("scheduler: %s sweep lock: %v", r.job.Name(), err)
			return
		}
		if !ok {
			return
		}
		defer func() { _ = r.locker.ReleaseSweepLock(ctx, r.job.Name()) }()
	}

	if err := r.job.Run(ctx); err != nil {
		log.Printf("scheduler: %s run failed: %v", r.job.Name(), err)
	}
}
