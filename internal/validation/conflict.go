package validation

import (
	"agenda/pkg/model"
	"fmt"
	"slices"
)

const MaxAlternatives = 3

// Snapshot is the point-in-time state a candidate is judged against.
type Snapshot struct {
	Existing []model.Booking
	Rules    []model.AvailabilityRule
	// ClientHistory counts the client's earlier bookings with the resource, any status.
	// Negative means unknown.
	ClientHistory int
}

// ConflictValidator decides hard conflicts. It performs no I/O and reads no clock.
type ConflictValidator struct{}

func NewConflictValidator() *ConflictValidator {
	return &ConflictValidator{}
}

// Validate runs every check and returns the full set of findings.
func (v *ConflictValidator) Validate(candidate model.Booking, snap Snapshot, cfg model.ValidationConfig) model.ValidationResult {
	result := v.Check(candidate, snap, cfg)

	var alternatives []int
	computed := false
	for i := range result.Conflicts {
		switch result.Conflicts[i].Type {
		case model.ConflictTimeOverlap, model.ConflictCapacityExceeded:
			if !computed {
				alternatives = v.Alternatives(candidate, snap, cfg, MaxAlternatives)
				computed = true
			}
			result.Conflicts[i].SuggestedAlternatives = alternatives
		}
	}
	return result
}

// Check is Validate without alternative suggestions.
func (v *ConflictValidator) Check(candidate model.Booking, snap Snapshot, cfg model.ValidationConfig) model.ValidationResult {
	siblings := activeSiblings(candidate, snap.Existing)

	conflicts := make([]model.Conflict, 0)
	conflicts = append(conflicts, v.checkOverlap(candidate, siblings, cfg)...)
	conflicts = append(conflicts, v.checkCapacity(candidate, siblings, snap.Rules, cfg)...)
	conflicts = append(conflicts, v.checkDuplicate(candidate, siblings)...)
	conflicts = append(conflicts, v.checkAvailability(candidate, snap.Rules)...)

	return model.ValidationResult{
		IsValid:     !hasCritical(conflicts),
		Conflicts:   conflicts,
		Warnings:    []model.Warning{},
		Suggestions: []model.Suggestion{},
	}
}

func (v *ConflictValidator) checkOverlap(candidate model.Booking, siblings []model.Booking, cfg model.ValidationConfig) []model.Conflict {
	if cfg.AllowOverlapping {
		return nil
	}
	pad := padding(cfg)

	var conflicts []model.Conflict
	for i := range siblings {
		existing := siblings[i]
		if !overlaps(candidate, existing, pad) {
			continue
		}
		msg := fmt.Sprintf("Overlaps booking %s at %s", existing.ID, span(existing))
		if pad > 0 {
			msg += fmt.Sprintf(" including the %d minute buffer", pad)
		}
		conflicts = append(conflicts, model.Conflict{
			Type:               model.ConflictTimeOverlap,
			Severity:           model.SeverityCritical,
			Message:            msg,
			ConflictingBooking: &existing,
		})
	}
	return conflicts
}

func (v *ConflictValidator) checkCapacity(candidate model.Booking, siblings []model.Booking, rules []model.AvailabilityRule, cfg model.ValidationConfig) []model.Conflict {
	var conflicts []model.Conflict

	if cfg.MaxBookingsPerDay > 0 && len(siblings) >= cfg.MaxBookingsPerDay {
		conflicts = append(conflicts, model.Conflict{
			Type:     model.ConflictCapacityExceeded,
			Severity: model.SeverityCritical,
			Message:  fmt.Sprintf("Daily limit of %d bookings reached for %s", cfg.MaxBookingsPerDay, candidate.Date),
		})
	}

	used, capacity := slotUsage(candidate, siblings, rules, cfg)
	if used >= capacity {
		conflicts = append(conflicts, model.Conflict{
			Type:     model.ConflictCapacityExceeded,
			Severity: model.SeverityCritical,
			Message:  fmt.Sprintf("Slot %s already holds %d of %d allowed bookings", span(candidate), used, capacity),
		})
	}
	return conflicts
}

func (v *ConflictValidator) checkDuplicate(candidate model.Booking, siblings []model.Booking) []model.Conflict {
	var conflicts []model.Conflict
	for i := range siblings {
		existing := siblings[i]
		if existing.StartTime != candidate.StartTime || !existing.SameClient(candidate.ClientEmail) {
			continue
		}
		conflicts = append(conflicts, model.Conflict{
			Type:               model.ConflictDuplicateBooking,
			Severity:           model.SeverityCritical,
			Message:            fmt.Sprintf("Client already holds booking %s on %s at %s", existing.ID, existing.Date, model.MinuteLabel(existing.StartTime)),
			ConflictingBooking: &existing,
		})
	}
	return conflicts
}

func (v *ConflictValidator) checkAvailability(candidate model.Booking, rules []model.AvailabilityRule) []model.Conflict {
	applicable := model.RulesFor(rules, candidate.Date)
	if len(applicable) == 0 {
		return []model.Conflict{{
			Type:     model.ConflictAvailabilityMismatch,
			Severity: model.SeverityCritical,
			Message:  fmt.Sprintf("Resource is not available on %s", candidate.Date),
		}}
	}

	start, end := candidate.Interval()
	for _, rule := range applicable {
		if rule.IsSlotStart(start) && end <= rule.EndTime {
			return nil
		}
	}
	return []model.Conflict{{
		Type:     model.ConflictAvailabilityMismatch,
		Severity: model.SeverityCritical,
		Message:  fmt.Sprintf("%s is not a bookable slot on %s", span(candidate), candidate.Date),
	}}
}

// AvailableStarts probes every slot start of the candidate's date with the
// candidate's duration and keeps those that would be accepted.
func (v *ConflictValidator) AvailableStarts(candidate model.Booking, snap Snapshot, cfg model.ValidationConfig) []int {
	var available []int
	for _, start := range SlotStarts(snap.Rules, candidate.Date) {
		probe := candidate
		probe.StartTime = start
		probe.Normalize()
		if v.Check(probe, snap, cfg).IsValid {
			available = append(available, start)
		}
	}
	return available
}

// Alternatives returns up to limit accepted starts other than the requested one,
// nearest first.
func (v *ConflictValidator) Alternatives(candidate model.Booking, snap Snapshot, cfg model.ValidationConfig, limit int) []int {
	var others []int
	for _, start := range v.AvailableStarts(candidate, snap, cfg) {
		if start != candidate.StartTime {
			others = append(others, start)
		}
	}
	return nearest(others, candidate.StartTime, limit)
}

// SlotUsage reports how many active bookings share the candidate's window and
// how many the window may hold.
func (v *ConflictValidator) SlotUsage(candidate model.Booking, snap Snapshot, cfg model.ValidationConfig) (int, int) {
	return slotUsage(candidate, activeSiblings(candidate, snap.Existing), snap.Rules, cfg)
}

// SlotStarts merges the slot starts of every rule applying on date, ascending and unique.
func SlotStarts(rules []model.AvailabilityRule, date string) []int {
	var starts []int
	for _, rule := range model.RulesFor(rules, date) {
		for _, s := range rule.SlotStarts() {
			if !slices.Contains(starts, s) {
				starts = append(starts, s)
			}
		}
	}
	slices.Sort(starts)
	return starts
}

// SlotCapacity is the number of simultaneous bookings allowed for the candidate's
// window: MaxBookingsPerSlot capped by the covering rule's MaxConcurrent.
func SlotCapacity(candidate model.Booking, rules []model.AvailabilityRule, cfg model.ValidationConfig) int {
	start, end := candidate.Interval()

	ruleCap := 0
	for _, rule := range model.RulesFor(rules, candidate.Date) {
		if rule.Covers(start, end) {
			ruleCap = max(rule.MaxConcurrent, 1)
			break
		}
	}

	switch {
	case ruleCap == 0 && cfg.MaxBookingsPerSlot > 0:
		return cfg.MaxBookingsPerSlot
	case ruleCap == 0:
		return 1
	case cfg.MaxBookingsPerSlot > 0:
		return min(ruleCap, cfg.MaxBookingsPerSlot)
	default:
		return ruleCap
	}
}

func slotUsage(candidate model.Booking, siblings []model.Booking, rules []model.AvailabilityRule, cfg model.ValidationConfig) (int, int) {
	pad := padding(cfg)
	used := 0
	for _, existing := range siblings {
		if overlaps(candidate, existing, pad) {
			used++
		}
	}
	return used, SlotCapacity(candidate, rules, cfg)
}

// activeSiblings keeps pending/confirmed bookings of the same resource and date,
// excluding the candidate itself, ordered by start time then ID.
func activeSiblings(candidate model.Booking, existing []model.Booking) []model.Booking {
	siblings := make([]model.Booking, 0, len(existing))
	for _, b := range existing {
		if !b.Status.IsActive() {
			continue
		}
		if b.ResourceID != candidate.ResourceID || b.Date != candidate.Date {
			continue
		}
		if candidate.ID != "" && b.ID == candidate.ID {
			continue
		}
		siblings = append(siblings, b)
	}
	slices.SortStableFunc(siblings, func(a, b model.Booking) int {
		if a.StartTime != b.StartTime {
			return a.StartTime - b.StartTime
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return siblings
}

func padding(cfg model.ValidationConfig) int {
	if !cfg.RequireBufferTime {
		return 0
	}
	return max(cfg.BufferTimeMinutes, 0)
}

// overlaps pads the existing booking by pad minutes on both sides; [s1,e1) and
// [s2,e2) intersect iff s1 < e2 && s2 < e1.
func overlaps(candidate, existing model.Booking, pad int) bool {
	cs, ce := candidate.Interval()
	es, ee := existing.Interval()
	es -= pad
	ee += pad
	return cs < ee && es < ce
}

func nearest(starts []int, target, limit int) []int {
	sorted := slices.Clone(starts)
	slices.SortStableFunc(sorted, func(a, b int) int {
		da, db := abs(a-target), abs(b-target)
		if da != db {
			return da - db
		}
		return a - b
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func hasCritical(conflicts []model.Conflict) bool {
	for _, c := range conflicts {
		if c.Severity == model.SeverityCritical {
			return true
		}
	}
	return false
}

func span(b model.Booking) string {
	start, end := b.Interval()
	return model.MinuteLabel(start) + "-" + model.MinuteLabel(end)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
