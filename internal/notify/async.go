package notify

import (
	"context"
	"sync"
	"time"

	"agenda/pkg/logger"
	"agenda/pkg/model"
)

const deliveryTimeout = 5 * time.Second

// Async decouples callers from delivery. Events are queued on a bounded buffer
// and dropped with a warning when it is full; callers never block on the broker.
type Async struct {
	next  Notifier
	log   *logger.Logger
	queue chan model.Event

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAsync(next Notifier, buffer int, log *logger.Logger) *Async {
	if buffer <= 0 {
		buffer = 1
	}
	a := &Async{
		next:  next,
		log:   log.Component("notifier"),
		queue: make(chan model.Event, buffer),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) Notify(_ context.Context, event model.Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrNotifierClosed
	}

	select {
	case a.queue <- event:
	default:
		a.log.Warn("Notification buffer full, dropping event",
			"event_id", event.ID,
			"type", event.Type,
			"booking_id", event.BookingID,
		)
	}
	return nil
}

func (a *Async) run() {
	defer close(a.done)
	for event := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		if err := a.next.Notify(ctx, event); err != nil {
			a.log.Error("Failed to deliver event",
				"event_id", event.ID,
				"type", event.Type,
				"error", err,
			)
		}
		cancel()
	}
}

// Close stops accepting events, drains the buffer, then closes the wrapped notifier.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
	return a.next.Close()
}
