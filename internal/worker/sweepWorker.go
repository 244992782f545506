package worker

import (
	"context"
	"time"

	"ticket-office/internal/service"
	"ticket-office/pkg/scheduler"

	"github.com/sirupsen/logrus"
)

// EventSweepWorker periodically flips published events whose date has passed
// to completed, so they stop being sellable through any path.
type EventSweepWorker struct {
	eventService service.EventService
	interval     time.Duration
	attempts     int
}

func NewEventSweepWorker(eventService service.EventService, interval time.Duration, attempts int) *EventSweepWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if attempts <= 0 {
		attempts = 3
	}
	return &EventSweepWorker{
		eventService: eventService,
		interval:     interval,
		attempts:     attempts,
	}
}

func (w *EventSweepWorker) Start(ctx context.Context) {
	logrus.Info("Event sweep worker started")

	s := scheduler.NewScheduler("event_sweep", w.sweep, w.interval, w.attempts)

	// One sweep at startup catches events that ended while the service
	// was down.
	s.RunOnce(ctx)
	s.Start(ctx)
}

func (w *EventSweepWorker) sweep(ctx context.Context) error {
	completed, err := w.eventService.MarkPastEventsCompleted(ctx)
	if err != nil {
		return err
	}

	if completed > 0 {
		logrus.Infof("Marked %d past events completed", completed)
	} else {
		logrus.Debug("No past events to complete")
	}
	return nil
}
