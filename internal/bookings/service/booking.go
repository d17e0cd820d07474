package service

import (
	"agenda/internal/bookings/admission"
	bookingserrors "agenda/internal/bookings/errors"
	"agenda/internal/bookings/lifecycle"
	"agenda/internal/bookings/repository"
	"agenda/internal/bookings/validator"
	"agenda/internal/notify"
	"agenda/internal/validation"
	"agenda/pkg/config"
	mongotx "agenda/pkg/db/mongo"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/model"
	"agenda/pkg/sanitizer"
	"agenda/pkg/validate"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

const dueBatchSize = 200

type BookingService interface {
	CreateBooking(ctx context.Context, candidate *model.Booking) (*CreateResult, error)
	ValidateBooking(ctx context.Context, candidate *model.Booking) (model.ValidationResult, error)
	Transition(ctx context.Context, id string, req *model.TransitionRequest) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListByResourceAndDate(ctx context.Context, resourceID, date string) ([]model.Booking, error)
	CompleteDue(ctx context.Context) (int, error)
}

// AvailabilityReader is the slice of the availability service admission needs.
type AvailabilityReader interface {
	ListRules(ctx context.Context, resourceID string) ([]model.AvailabilityRule, error)
	GetConfig(ctx context.Context, resourceID string) (model.ValidationConfig, error)
}

type CreateResult struct {
	Booking     *model.Booking     `json:"booking"`
	Warnings    []model.Warning    `json:"warnings"`
	Suggestions []model.Suggestion `json:"suggestions"`
}

type Dependencies struct {
	Repo         repository.BookingRepository
	Availability AvailabilityReader
	Validator    *validator.BookingValidator
	Conflicts    *validation.ConflictValidator
	Gate         *admission.Gate
	Locker       admission.Locker
	Notifier     notify.Notifier
	Now          func() time.Time
}

type bookingService struct {
	repo         repository.BookingRepository
	availability AvailabilityReader
	validator    *validator.BookingValidator
	conflicts    *validation.ConflictValidator
	advisor      *validation.AdvisoryAnalyzer
	gate         *admission.Gate
	locker       admission.Locker
	notifier     notify.Notifier
	now          func() time.Time
	cfg          *config.Config
}

func NewBookingService(deps Dependencies, cfg *config.Config) BookingService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Conflicts == nil {
		deps.Conflicts = validation.NewConflictValidator()
	}
	if deps.Locker == nil {
		deps.Locker = admission.LocalLocker{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLogNotifier(cfg.Log)
	}
	return &bookingService{
		repo:         deps.Repo,
		availability: deps.Availability,
		validator:    deps.Validator,
		conflicts:    deps.Conflicts,
		advisor:      validation.NewAdvisoryAnalyzer(deps.Conflicts, deps.Now),
		gate:         deps.Gate,
		locker:       deps.Locker,
		notifier:     deps.Notifier,
		now:          deps.Now,
		cfg:          cfg,
	}
}

// CreateBooking admits candidate as pending if, at the moment of insert, it has
// no critical conflict with the resource's bookings for that date. Admission for
// one resource+date is serialized in-process by the gate and across instances by
// the locker; the read-validate-insert runs in one transaction.
func (s *bookingService) CreateBooking(ctx context.Context, candidate *model.Booking) (*CreateResult, error) {
	s.prepare(candidate)
	if err := s.validateShape(candidate); err != nil {
		return nil, err
	}

	vc, err := s.availability.GetConfig(ctx, candidate.ResourceID)
	if err != nil {
		return nil, err
	}
	if err := s.checkNotPast(candidate, vc); err != nil {
		return nil, err
	}
	rules, err := s.availability.ListRules(ctx, candidate.ResourceID)
	if err != nil {
		return nil, err
	}

	candidate.ID = uuid.New().String()
	candidate.Status = model.StatusPending

	var snap validation.Snapshot
	var rejected model.ValidationResult
	key := model.AdmissionKey(candidate.ResourceID, candidate.Date)

	err = s.gate.Do(ctx, key, func(ctx context.Context) error {
		return s.locker.WithLock(ctx, key, func(ctx context.Context) error {
			return s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
				current, err := s.snapshot(sessCtx, candidate, rules)
				if err != nil {
					return err
				}
				snap = current

				result := s.conflicts.Validate(*candidate, snap, vc)
				if !result.IsValid {
					rejected = result
					return &bookingserrors.RejectionError{Conflicts: result.Critical()}
				}
				return s.repo.Create(sessCtx, candidate)
			})
		})
	})
	if err != nil {
		return nil, s.admissionError(ctx, candidate, rejected, err)
	}

	warnings, suggestions := s.advisor.Analyze(*candidate, snap, vc)

	event := notify.NewEvent(model.EventBookingCreated, model.PriorityNormal, *candidate, s.now())
	event.Warnings = warnings
	event.Suggestions = suggestions
	s.publish(ctx, event)

	s.cfg.Log.Info("Booking created",
		"id", candidate.ID,
		"resource_id", candidate.ResourceID,
		"date", candidate.Date,
		"start_time", model.MinuteLabel(candidate.StartTime),
		"duration_minutes", candidate.DurationMinutes,
		"warnings", len(warnings),
	)
	return &CreateResult{Booking: candidate, Warnings: warnings, Suggestions: suggestions}, nil
}

// ValidateBooking is a dry run of CreateBooking against fresh data. Nothing is written.
func (s *bookingService) ValidateBooking(ctx context.Context, candidate *model.Booking) (model.ValidationResult, error) {
	s.prepare(candidate)
	if err := s.validateShape(candidate); err != nil {
		return model.ValidationResult{}, err
	}

	vc, err := s.availability.GetConfig(ctx, candidate.ResourceID)
	if err != nil {
		return model.ValidationResult{}, err
	}
	if err := s.checkNotPast(candidate, vc); err != nil {
		return model.ValidationResult{}, err
	}
	rules, err := s.availability.ListRules(ctx, candidate.ResourceID)
	if err != nil {
		return model.ValidationResult{}, err
	}

	snap, err := s.snapshot(ctx, candidate, rules)
	if err != nil {
		return model.ValidationResult{}, unavailable(err)
	}

	result := s.conflicts.Validate(*candidate, snap, vc)
	// A rejected candidate gets no advisories; its conflicts say everything.
	result.Warnings, result.Suggestions = []model.Warning{}, []model.Suggestion{}
	if result.IsValid {
		result.Warnings, result.Suggestions = s.advisor.Analyze(*candidate, snap, vc)
	}
	return result, nil
}

// Transition moves a booking through the lifecycle. Repeating a transition that
// already happened succeeds without a write.
func (s *bookingService) Transition(ctx context.Context, id string, req *model.TransitionRequest) (*model.Booking, error) {
	if err := s.validator.ValidateTransition(req); err != nil {
		return nil, validationError("Invalid transition request", err)
	}

	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	vc, err := s.availability.GetConfig(ctx, booking.ResourceID)
	if err != nil {
		return nil, err
	}

	changed, err := lifecycle.Transition(*booking, req.Status, s.now(), model.LoadLocation(vc.Timezone))
	if err != nil {
		return nil, transitionError(err)
	}
	if !changed {
		return booking, nil
	}

	previous := booking.Status
	updated, err := s.repo.UpdateStatus(ctx, booking.ID, previous, req.Status)
	if errors.Is(err, bookingserrors.ErrStaleStatus) {
		current, findErr := s.GetByID(ctx, booking.ID)
		if findErr != nil {
			return nil, findErr
		}
		if current.Status == req.Status {
			return current, nil
		}
		return nil, apperrors.Conflict(fmt.Sprintf("Booking moved to %s concurrently", current.Status))
	}
	if err != nil {
		s.cfg.Log.Error("Failed to update booking status", "id", booking.ID, "error", err)
		return nil, unavailable(err)
	}

	event := notify.NewEvent(model.EventBookingStatusChanged, model.PriorityNormal, *updated, s.now())
	event.PreviousStatus = previous
	s.publish(ctx, event)

	s.cfg.Log.Info("Booking status changed",
		"id", updated.ID,
		"from", previous,
		"to", updated.Status,
	)
	return updated, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	if err := uuid.Validate(id); err != nil {
		return nil, apperrors.Wrap(bookingserrors.ErrInvalidID, apperrors.CodeInvalidInput, "Invalid booking ID format", http.StatusBadRequest)
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		s.cfg.Log.Error("Failed to retrieve booking", "id", id, "error", err)
		return nil, unavailable(err)
	}
	return booking, nil
}

func (s *bookingService) ListByResourceAndDate(ctx context.Context, resourceID, date string) ([]model.Booking, error) {
	resourceID = sanitizer.SanitizeIdentifier(resourceID)
	date = sanitizer.NormalizeDate(date)
	if err := s.validator.ValidateLookup(resourceID, date); err != nil {
		return nil, validationError("Invalid booking lookup", err)
	}

	// Day lists change with every admission and are read from storage, never cached.
	bookings, err := s.repo.FindByResourceAndDate(ctx, resourceID, date)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "resource_id", resourceID, "date", date, "error", err)
		return nil, unavailable(err)
	}
	return bookings, nil
}

// CompleteDue completes confirmed bookings whose end has passed. Bookings that
// are not over yet in their resource's timezone are left alone.
func (s *bookingService) CompleteDue(ctx context.Context) (int, error) {
	horizon := s.now().UTC().AddDate(0, 0, 1).Format(model.DateLayout)
	due, err := s.repo.FindDue(ctx, model.StatusConfirmed, horizon, dueBatchSize)
	if err != nil {
		return 0, unavailable(err)
	}

	completed := 0
	for _, b := range due {
		if ctx.Err() != nil {
			return completed, ctx.Err()
		}
		_, err := s.Transition(ctx, b.ID, &model.TransitionRequest{Status: model.StatusCompleted})
		switch {
		case err == nil:
			completed++
		case apperrors.HasCode(err, apperrors.CodeValidation), apperrors.HasCode(err, apperrors.CodeConflict):
			// not over yet, or someone else moved it
		default:
			s.cfg.Log.Warn("Failed to complete booking", "id", b.ID, "error", err)
		}
	}
	return completed, nil
}

// --- Helpers ---

func (s *bookingService) prepare(b *model.Booking) {
	b.ResourceID = sanitizer.SanitizeIdentifier(b.ResourceID)
	b.ServiceID = sanitizer.SanitizeIdentifier(b.ServiceID)
	b.Date = sanitizer.NormalizeDate(b.Date)
	b.ClientName = sanitizer.NormalizeName(b.ClientName)
	b.ClientEmail = sanitizer.NormalizeEmail(b.ClientEmail)
	b.ClientPhone = sanitizer.SanitizePhone(b.ClientPhone)
	b.Notes = sanitizer.SanitizeNotes(b.Notes)
	b.Normalize()
}

func (s *bookingService) validateShape(b *model.Booking) error {
	if err := s.validator.Validate(b); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "resource_id", b.ResourceID, "error", err)
		return validationError("Booking validation failed", err)
	}
	return nil
}

func (s *bookingService) checkNotPast(b *model.Booking, vc model.ValidationConfig) error {
	start, err := model.At(b.Date, b.StartTime, model.LoadLocation(vc.Timezone))
	if err != nil {
		return apperrors.InvalidInput("date must be YYYY-MM-DD")
	}
	if !start.After(s.now()) {
		return apperrors.Wrap(bookingserrors.ErrStartInPast, apperrors.CodeValidation, "Booking start is in the past", http.StatusUnprocessableEntity)
	}
	return nil
}

// snapshot reads the sibling bookings and client history straight from storage.
func (s *bookingService) snapshot(ctx context.Context, candidate *model.Booking, rules []model.AvailabilityRule) (validation.Snapshot, error) {
	existing, err := s.repo.FindByResourceAndDate(ctx, candidate.ResourceID, candidate.Date)
	if err != nil {
		return validation.Snapshot{}, err
	}
	history, err := s.repo.CountByClient(ctx, candidate.ResourceID, candidate.ClientEmail)
	if err != nil {
		return validation.Snapshot{}, err
	}
	return validation.Snapshot{Existing: existing, Rules: rules, ClientHistory: int(history)}, nil
}

func (s *bookingService) admissionError(ctx context.Context, candidate *model.Booking, result model.ValidationResult, err error) error {
	var rejection *bookingserrors.RejectionError
	if errors.As(err, &rejection) {
		s.cfg.Log.Info("Booking rejected",
			"resource_id", candidate.ResourceID,
			"date", candidate.Date,
			"start_time", model.MinuteLabel(candidate.StartTime),
			"reason", rejection.Error(),
		)
		event := notify.NewEvent(model.EventValidationConflict, model.PriorityNormal, *candidate, s.now())
		event.BookingID = ""
		event.Conflicts = result.Conflicts
		s.publish(ctx, event)

		return apperrors.Rejected("Booking conflicts with the resource's schedule", rejection, map[string]any{
			"conflicts": result.Conflicts,
		})
	}

	switch {
	case errors.Is(err, admission.ErrLockNotAcquired):
		s.cfg.Log.Warn("Admission lock busy", "resource_id", candidate.ResourceID, "date", candidate.Date)
		return apperrors.Wrap(err, apperrors.CodeUnavailable, "Another booking for this day is being processed, please retry", http.StatusServiceUnavailable)
	case errors.Is(err, admission.ErrGateClosed):
		return apperrors.Wrap(err, apperrors.CodeUnavailable, "Service is shutting down", http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperrors.Timeout("Booking admission timed out")
	case errors.Is(err, mongotx.ErrTransactionsUnsupported):
		s.cfg.Log.Error("MongoDB must run as a replica set for booking admission", "error", err)
		return apperrors.Internal("Booking admission is misconfigured", err)
	}

	s.cfg.Log.Error("Failed to create booking", "resource_id", candidate.ResourceID, "date", candidate.Date, "error", err)
	return unavailable(err)
}

func (s *bookingService) publish(ctx context.Context, event model.Event) {
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to queue event", "type", event.Type, "booking_id", event.BookingID, "error", err)
	}
}

func validationError(message string, err error) error {
	var fields validate.ValidationErrors
	if errors.As(err, &fields) {
		return apperrors.Validation(message, fields.Fields())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}

func transitionError(err error) error {
	switch {
	case errors.Is(err, bookingserrors.ErrInvalidTransition):
		return apperrors.Wrap(err, apperrors.CodeConflict, err.Error(), http.StatusConflict)
	case errors.Is(err, bookingserrors.ErrTransitionTooEarly), errors.Is(err, bookingserrors.ErrTransitionTooLate):
		return apperrors.Wrap(err, apperrors.CodeValidation, err.Error(), http.StatusUnprocessableEntity)
	}
	return apperrors.Internal("Failed to apply transition", err)
}

func unavailable(err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Wrap(err, apperrors.CodeUnavailable, "Booking store is temporarily unavailable", http.StatusServiceUnavailable)
}
