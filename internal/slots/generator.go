// Package slots derives the bookable time slots of a resource for one date.
package slots

import (
	"agenda/internal/validation"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"context"
)

type AvailabilityReader interface {
	ListRules(ctx context.Context, resourceID string) ([]model.AvailabilityRule, error)
	GetConfig(ctx context.Context, resourceID string) (model.ValidationConfig, error)
}

type BookingReader interface {
	ListByResourceAndDate(ctx context.Context, resourceID, date string) ([]model.Booking, error)
}

type Generator struct {
	availability AvailabilityReader
	bookings     BookingReader
	validator    *validation.ConflictValidator
	log          *logger.Logger
}

func NewGenerator(availability AvailabilityReader, bookings BookingReader, validator *validation.ConflictValidator, log *logger.Logger) *Generator {
	return &Generator{
		availability: availability,
		bookings:     bookings,
		validator:    validator,
		log:          log,
	}
}

// GenerateSlots lists every candidate start for resourceID on date in ascending
// order, each probed against the current bookings. No applicable rule yields an
// empty list.
func (g *Generator) GenerateSlots(ctx context.Context, resourceID, date string) ([]model.TimeSlot, error) {
	if resourceID == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}
	if _, err := model.ParseDate(date); err != nil {
		return nil, apperrors.InvalidInput("date must be YYYY-MM-DD")
	}

	rules, err := g.availability.ListRules(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	applicable := model.RulesFor(rules, date)
	if len(applicable) == 0 {
		return []model.TimeSlot{}, nil
	}

	cfg, err := g.availability.GetConfig(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	existing, err := g.bookings.ListByResourceAndDate(ctx, resourceID, date)
	if err != nil {
		return nil, err
	}

	snap := validation.Snapshot{Existing: existing, Rules: rules, ClientHistory: -1}
	slots := Probe(g.validator, resourceID, date, snap, cfg)

	g.log.Debug("Slots generated",
		"resource_id", resourceID,
		"date", date,
		"count", len(slots),
		"bookings", len(existing),
	)
	return slots, nil
}

// Probe evaluates each slot start of the date without touching storage. When
// rules share a start, the first rule in start-time order decides its duration.
func Probe(v *validation.ConflictValidator, resourceID, date string, snap validation.Snapshot, cfg model.ValidationConfig) []model.TimeSlot {
	durations := make(map[int]int)
	for _, rule := range model.RulesFor(snap.Rules, date) {
		for _, start := range rule.SlotStarts() {
			if _, seen := durations[start]; !seen {
				durations[start] = rule.SlotDuration
			}
		}
	}

	starts := validation.SlotStarts(snap.Rules, date)
	slots := make([]model.TimeSlot, 0, len(starts))
	for _, start := range starts {
		probe := model.Booking{
			ResourceID:      resourceID,
			Date:            date,
			StartTime:       start,
			DurationMinutes: durations[start],
			Status:          model.StatusPending,
		}
		probe.Normalize()

		result := v.Check(probe, snap, cfg)
		used, capacity := v.SlotUsage(probe, snap, cfg)

		slot := model.TimeSlot{
			Time:              start,
			Label:             model.MinuteLabel(start),
			Available:         result.IsValid,
			RemainingCapacity: max(capacity-used, 0),
		}
		if critical := result.Critical(); len(critical) > 0 {
			slot.ConflictReason = critical[0].Type
		}
		slots = append(slots, slot)
	}
	return slots
}
