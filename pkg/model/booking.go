package model

import (
	"strings"
	"time"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
	StatusNoShow    BookingStatus = "no_show"
)

// IsActive reports whether a booking in this status holds capacity.
func (s BookingStatus) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s BookingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

func (s BookingStatus) IsValid() bool {
	return s.IsActive() || s.IsTerminal()
}

type Booking struct {
	ID              string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid"`
	ResourceID      string        `json:"resource_id" bson:"resource_id" validate:"required,min=1,max=100"`
	ServiceID       string        `json:"service_id" bson:"service_id" validate:"required,min=1,max=100"`
	Date            string        `json:"date" bson:"date" validate:"required,datetime=2006-01-02"`
	StartTime       int           `json:"start_time" bson:"start_time" validate:"minute_of_day"`
	EndTime         int           `json:"end_time" bson:"end_time"`
	DurationMinutes int           `json:"duration_minutes" bson:"duration_minutes" validate:"required,min=5,max=1440"`
	ClientName      string        `json:"client_name" bson:"client_name" validate:"required,min=2,max=100"`
	ClientEmail     string        `json:"client_email" bson:"client_email" validate:"required,email,max=254"`
	ClientPhone     string        `json:"client_phone,omitempty" bson:"client_phone,omitempty" validate:"omitempty,e164"`
	Notes           string        `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=1000"`
	Status          BookingStatus `json:"status" bson:"status"`
	Price           float64       `json:"price" bson:"price" validate:"min=0"`
	CreatedAt       time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" bson:"updated_at"`
}

// Interval returns [start, end) in minutes of day, derived from the duration.
func (b Booking) Interval() (int, int) {
	return b.StartTime, b.StartTime + b.DurationMinutes
}

// Normalize derives EndTime from StartTime and DurationMinutes.
func (b *Booking) Normalize() {
	b.EndTime = b.StartTime + b.DurationMinutes
}

func (b Booking) SameClient(email string) bool {
	a := strings.ToLower(strings.TrimSpace(b.ClientEmail))
	o := strings.ToLower(strings.TrimSpace(email))
	return a != "" && a == o
}

type TransitionRequest struct {
	Status BookingStatus `json:"status" validate:"required,oneof=pending confirmed completed cancelled no_show"`
}
