// Package lifecycle holds the booking status machine.
package lifecycle

import (
	bookingserrors "agenda/internal/bookings/errors"
	"agenda/pkg/model"
	"fmt"
	"time"
)

var transitions = map[model.BookingStatus][]model.BookingStatus{
	model.StatusPending:   {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed: {model.StatusCompleted, model.StatusCancelled, model.StatusNoShow},
}

// Allowed reports whether the table has an edge from -> to.
func Allowed(from, to model.BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition checks moving b to target at now, with times read in loc.
// Moving to the current status is a no-op and reports changed=false.
func Transition(b model.Booking, target model.BookingStatus, now time.Time, loc *time.Location) (bool, error) {
	if !target.IsValid() {
		return false, fmt.Errorf("%w: unknown status %q", bookingserrors.ErrInvalidTransition, target)
	}
	if b.Status == target {
		return false, nil
	}
	if !Allowed(b.Status, target) {
		return false, fmt.Errorf("%w: %s -> %s", bookingserrors.ErrInvalidTransition, b.Status, target)
	}

	start, err := model.At(b.Date, b.StartTime, loc)
	if err != nil {
		return false, err
	}
	end := start.Add(time.Duration(b.DurationMinutes) * time.Minute)

	switch target {
	case model.StatusCancelled:
		if !now.Before(start) {
			return false, fmt.Errorf("%w: cannot cancel once the booking has started", bookingserrors.ErrTransitionTooLate)
		}
	case model.StatusNoShow:
		if now.Before(start) {
			return false, fmt.Errorf("%w: cannot mark no-show before the start", bookingserrors.ErrTransitionTooEarly)
		}
	case model.StatusCompleted:
		if now.Before(end) {
			return false, fmt.Errorf("%w: cannot complete before the end", bookingserrors.ErrTransitionTooEarly)
		}
	}
	return true, nil
}
