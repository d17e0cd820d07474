package model

import "time"

type EventType string

const (
	EventBookingCreated       EventType = "booking.created"
	EventBookingStatusChanged EventType = "booking.status_changed"
	EventValidationConflict   EventType = "validation.conflict"
	EventValidationWarning    EventType = "validation.warning"
	EventInvariantViolation   EventType = "validation.invariant_violation"
)

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Event is what the notification collaborator receives.
type Event struct {
	ID             string        `json:"id"`
	Type           EventType     `json:"type"`
	Priority       Priority      `json:"priority"`
	ResourceID     string        `json:"resource_id"`
	Date           string        `json:"date"`
	BookingID      string        `json:"booking_id,omitempty"`
	Booking        *Booking      `json:"booking,omitempty"`
	PreviousStatus BookingStatus `json:"previous_status,omitempty"`
	Conflicts      []Conflict    `json:"conflicts,omitempty"`
	Warnings       []Warning     `json:"warnings,omitempty"`
	Suggestions    []Suggestion  `json:"suggestions,omitempty"`
	OccurredAt     time.Time     `json:"occurred_at"`
}

type ChangeOperation string

const (
	OperationInsert  ChangeOperation = "insert"
	OperationUpdate  ChangeOperation = "update"
	OperationReplace ChangeOperation = "replace"
	OperationDelete  ChangeOperation = "delete"
)

// BookingChange is one entry of the live booking feed.
type BookingChange struct {
	Operation ChangeOperation `json:"operation"`
	Booking   Booking         `json:"booking"`
}

// Revalidates reports whether the supervisor should re-run validation for the change.
func (c BookingChange) Revalidates() bool {
	switch c.Operation {
	case OperationInsert, OperationUpdate, OperationReplace:
		return c.Booking.Status.IsActive()
	}
	return false
}
