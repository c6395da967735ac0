package sheetsync

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Runner executes sync runs on a small fixed pool of workers fed by a
// bounded trigger channel. The dispatcher fires triggers and never waits.
// When the channel is saturated a trigger is coalesced away: some run that
// has not started yet is already queued, and it will read fresh data when it
// does. Run failures are logged and contained; the next change event
// retriggers with a complete new snapshot.
type Runner struct {
	syncer   *Syncer
	triggers chan struct{}
	logger   *logrus.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewRunner starts workers goroutines draining the trigger channel.
func NewRunner(ctx context.Context, syncer *Syncer, workers, queueSize int, logger *logrus.Logger) *Runner {
	r := &Runner{
		syncer:   syncer,
		triggers: make(chan struct{}, queueSize),
		logger:   logger,
	}

	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.work(ctx)
	}

	return r
}

// Trigger schedules a sync run. Never blocks.
func (r *Runner) Trigger() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.triggers <- struct{}{}:
	default:
		r.logger.Debug("Sync already pending, trigger coalesced")
	}
}

func (r *Runner) work(ctx context.Context) {
	defer r.wg.Done()
	for range r.triggers {
		if ctx.Err() != nil {
			continue // drain remaining triggers without running
		}
		if err := r.syncer.RunOnce(ctx); err != nil {
			r.logger.Errorf("Sync run failed: %v", err)
		}
	}
}

// Close stops accepting triggers and waits for in-flight runs to finish, so
// shutdown never abandons a half-written sheet mid-call.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.triggers)
	r.mu.Unlock()

	r.wg.Wait()
}
