package notify

import (
	"context"
	"errors"
	"time"

	"agenda/pkg/logger"
	"agenda/pkg/model"

	"github.com/google/uuid"
)

var ErrNotifierClosed = errors.New("notifier is closed")

// Notifier delivers booking and validation events to the outside world.
type Notifier interface {
	Notify(ctx context.Context, event model.Event) error
	Close() error
}

// NewEvent stamps an event about booking b with a fresh ID.
func NewEvent(eventType model.EventType, priority model.Priority, b model.Booking, now time.Time) model.Event {
	booking := b
	return model.Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		Priority:   priority,
		ResourceID: b.ResourceID,
		Date:       b.Date,
		BookingID:  b.ID,
		Booking:    &booking,
		OccurredAt: now.UTC(),
	}
}

type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.Component("notifier")}
}

func (n *LogNotifier) Notify(_ context.Context, event model.Event) error {
	level := n.log.Info
	if event.Priority == model.PriorityHigh {
		level = n.log.Warn
	}
	level("Booking event",
		"event_id", event.ID,
		"type", event.Type,
		"resource_id", event.ResourceID,
		"date", event.Date,
		"booking_id", event.BookingID,
		"conflicts", len(event.Conflicts),
		"warnings", len(event.Warnings),
	)
	return nil
}

func (n *LogNotifier) Close() error { return nil }

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event model.Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, n := range m {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
