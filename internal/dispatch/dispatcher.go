// Package dispatch consumes the change-event queue and fans each event out:
// one broadcast to the live websocket subscribers (plus the optional broker
// relay), one sync trigger. The loop never waits on a sync run, so events
// keep flowing even while the spreadsheet is being rewritten.
package dispatch

import (
	"context"

	"github.com/sirupsen/logrus"

	"badgetrack/internal/models"
)

// Broadcaster pushes a message to all live subscribers, best-effort.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg models.BroadcastMessage)
}

// Relay mirrors broadcast messages to an external broker.
type Relay interface {
	Publish(msg models.BroadcastMessage) error
}

// SyncTrigger schedules a sheet-sync run without blocking.
type SyncTrigger interface {
	Trigger()
}

// EventSource yields queued change events in arrival order.
type EventSource interface {
	Pop(ctx context.Context) (models.ChangeEvent, error)
}

// Dispatcher is the single consumer of the event queue.
type Dispatcher struct {
	source      EventSource
	broadcaster Broadcaster
	relay       Relay // nil when no broker is configured
	sync        SyncTrigger
	logger      *logrus.Logger
}

func New(source EventSource, broadcaster Broadcaster, relay Relay, sync SyncTrigger, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		source:      source,
		broadcaster: broadcaster,
		relay:       relay,
		sync:        sync,
		logger:      logger,
	}
}

// Run consumes events until ctx is cancelled. Each event produces exactly
// one broadcast, in receipt order, followed by one sync trigger.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("Dispatcher started")
	for {
		event, err := d.source.Pop(ctx)
		if err != nil {
			d.logger.Info("Dispatcher stopping")
			return err
		}
		d.dispatch(ctx, event)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, event models.ChangeEvent) {
	msg := models.BroadcastMessage{
		Type:    models.MessageTypeLogsChanged,
		Channel: event.Channel,
		Payload: event.Payload,
	}

	d.broadcaster.Broadcast(ctx, msg)

	if d.relay != nil {
		if err := d.relay.Publish(msg); err != nil {
			d.logger.Errorf("Broker relay failed: %v", err)
		}
	}

	d.sync.Trigger()
	d.logger.Debugf("Dispatched change event on %q", event.Channel)
}
