package validation

import (
	"agenda/pkg/model"
	"fmt"
	"time"
)

// AdvisoryAnalyzer produces non-blocking warnings and alternative-time suggestions.
type AdvisoryAnalyzer struct {
	validator *ConflictValidator
	now       func() time.Time
}

func NewAdvisoryAnalyzer(validator *ConflictValidator, now func() time.Time) *AdvisoryAnalyzer {
	if validator == nil {
		validator = NewConflictValidator()
	}
	if now == nil {
		now = time.Now
	}
	return &AdvisoryAnalyzer{validator: validator, now: now}
}

func (a *AdvisoryAnalyzer) Analyze(candidate model.Booking, snap Snapshot, cfg model.ValidationConfig) ([]model.Warning, []model.Suggestion) {
	warnings := make([]model.Warning, 0)

	if w, ok := a.deadlineWarning(candidate, cfg); ok {
		warnings = append(warnings, w)
	}
	if w, ok := busyPeriodWarning(candidate, snap, cfg); ok {
		warnings = append(warnings, w)
	}
	if snap.ClientHistory == 0 {
		warnings = append(warnings, model.Warning{
			Type:     model.WarningFirstTimeClient,
			Severity: model.SeverityInfo,
			Message:  "First booking for this client with this resource",
		})
	}

	return warnings, a.suggestions(candidate, snap, cfg)
}

func (a *AdvisoryAnalyzer) deadlineWarning(candidate model.Booking, cfg model.ValidationConfig) (model.Warning, bool) {
	if !cfg.PreventLastMinuteBookings || cfg.LastMinuteThresholdHours <= 0 {
		return model.Warning{}, false
	}
	startsAt, err := model.At(candidate.Date, candidate.StartTime, model.LoadLocation(cfg.Timezone))
	if err != nil {
		return model.Warning{}, false
	}

	threshold := time.Duration(cfg.LastMinuteThresholdHours) * time.Hour
	until := startsAt.Sub(a.now())
	if until >= threshold {
		return model.Warning{}, false
	}
	return model.Warning{
		Type:     model.WarningCloseToDeadline,
		Severity: model.SeverityWarning,
		Message: fmt.Sprintf("Booking starts in %s, inside the %d hour last-minute window",
			until.Truncate(time.Minute), cfg.LastMinuteThresholdHours),
	}, true
}

// busyPeriodWarning fires once the day is at 80% or more of its limit.
func busyPeriodWarning(candidate model.Booking, snap Snapshot, cfg model.ValidationConfig) (model.Warning, bool) {
	if cfg.MaxBookingsPerDay <= 0 {
		return model.Warning{}, false
	}
	count := len(activeSiblings(candidate, snap.Existing))
	if count*5 < cfg.MaxBookingsPerDay*4 {
		return model.Warning{}, false
	}
	return model.Warning{
		Type:     model.WarningBusyPeriod,
		Severity: model.SeverityInfo,
		Message:  fmt.Sprintf("%s is busy: %d of %d daily bookings taken", candidate.Date, count, cfg.MaxBookingsPerDay),
	}, true
}

func (a *AdvisoryAnalyzer) suggestions(candidate model.Booking, snap Snapshot, cfg model.ValidationConfig) []model.Suggestion {
	suggestions := make([]model.Suggestion, 0)

	available := a.validator.AvailableStarts(candidate, snap, cfg)
	if len(available) < 2 {
		return suggestions
	}

	var others []int
	for _, start := range available {
		if start != candidate.StartTime {
			others = append(others, start)
		}
	}
	for _, start := range nearest(others, candidate.StartTime, MaxAlternatives) {
		label := model.MinuteLabel(start)
		suggestions = append(suggestions, model.Suggestion{
			Type:      model.SuggestionAlternativeTime,
			Date:      candidate.Date,
			StartTime: start,
			Label:     label,
			Message:   fmt.Sprintf("%s on %s is also available", label, candidate.Date),
		})
	}
	return suggestions
}
