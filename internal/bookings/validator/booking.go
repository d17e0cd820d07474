package validator

import (
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"agenda/pkg/validate"
	"fmt"

	"github.com/go-playground/validator/v10"
)

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v, err := validate.New()
	if err != nil {
		log.Fatal("Failed to build booking validator", "error", err)
	}

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

// Validate checks the request shape only; scheduling conflicts are decided elsewhere.
func (v *BookingValidator) Validate(booking *model.Booking) error {
	if err := validate.Struct(v.validate, booking); err != nil {
		return err
	}

	if booking.StartTime+booking.DurationMinutes > model.MinutesInDay {
		return validate.ValidationErrors{{
			Field:   "DurationMinutes",
			Message: fmt.Sprintf("booking starting at %s must end by midnight", model.MinuteLabel(booking.StartTime)),
		}}
	}

	return nil
}

func (v *BookingValidator) ValidateTransition(req *model.TransitionRequest) error {
	return validate.Struct(v.validate, req)
}

type dayLookup struct {
	ResourceID string `validate:"required,max=100"`
	Date       string `validate:"required,datetime=2006-01-02"`
}

// ValidateLookup checks the key of a per-day read: a sanitized resource ID
// and a calendar date.
func (v *BookingValidator) ValidateLookup(resourceID, date string) error {
	return validate.Struct(v.validate, dayLookup{ResourceID: resourceID, Date: date})
}
