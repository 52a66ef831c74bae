package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	block chan struct{}
	err   error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		<-j.block
	}
	return j.err
}

type fakeLocker struct {
	mu       sync.Mutex
	allow    bool
	acquired int
	released int
}

func (l *fakeLocker) AcquireSweepLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquired++
	return l.allow, nil
}

func (l *fakeLocker) ReleaseSweepLock(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released++
	return nil
}

func TestRunner_TickRunsJob(t *testing.T) {
	job := &countingJob{name: "sweep"}
	runner := NewRunner(job, time.Hour, nil)

	runner.tick(context.Background())
	runner.tick(context.Background())

	assert.Equal(t, int32(2), job.runs.Load())
}

func TestRunner_OverlappingTickSkipped(t *testing.T) {
	job := &countingJob{name: "sweep", block: make(chan struct{})}
	runner := NewRunner(job, time.Hour, nil)

	done := make(chan struct{})
	go func() {
		runner.tick(context.Background())
		close(done)
	}()

	// Wait for the first tick to be inside Run, then fire a second one.
	assert.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, time.Millisecond)
	runner.tick(context.Background())
	assert.Equal(t, int32(1), job.runs.Load())

	close(job.block)
	<-done
}

func TestRunner_SweepLock(t *testing.T) {
	t.Run("lock held elsewhere skips the tick", func(t *testing.T) {
		job := &countingJob{name: "sweep"}
		locker := &fakeLocker{allow: false}
		runner := NewRunner(job, time.Hour, locker)

		runner.tick(context.Background())

		assert.Equal(t, int32(0), job.runs.Load())
		assert.Equal(t, 1, locker.acquired)
		assert.Equal(t, 0, locker.released)
	})

	t.Run("acquired lock is released after the run", func(t *testing.T) {
		job := &countingJob{name: "sweep"}
		locker := &fakeLocker{allow: true}
		runner := NewRunner(job, time.Hour, locker)

		runner.tick(context.Background())

		assert.Equal(t, int32(1), job.runs.Load())
		assert.Equal(t, 1, locker.released)
	})
}

func TestRunner_StartStopsOnCancel(t *testing.T) {
	job := &countingJob{name: "sweep"}
	runner := NewRunner(job, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}
