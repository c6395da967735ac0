// Package queue provides the unbounded FIFO between the change listener and
// the notification dispatcher. Events are tiny signals, so the queue carries
// no backpressure; Push never blocks.
package queue

import (
	"context"
	"sync"

	"badgetrack/internal/models"
)

// Queue is a FIFO of change events. Safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	items  []models.ChangeEvent
	signal chan struct{}
}

func New() *Queue {
	return &Queue{
		signal: make(chan struct{}, 1),
	}
}

// Push appends an event. Never blocks.
func (q *Queue) Push(ev models.ChangeEvent) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest event, blocking until one is available
// or ctx is cancelled.
func (q *Queue) Pop(ctx context.Context) (models.ChangeEvent, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items = q.items[1:]
			if len(q.items) > 0 {
				// More queued; keep the signal armed for the next Pop.
				select {
				case q.signal <- struct{}{}:
				default:
				}
			}
			q.mu.Unlock()
			return ev, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return models.ChangeEvent{}, ctx.Err()
		case <-q.signal:
		}
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
