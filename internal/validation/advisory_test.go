package validation

import (
	"agenda/pkg/model"
	"slices"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func warningTypes(warnings []model.Warning) []model.WarningType {
	var types []model.WarningType
	for _, w := range warnings {
		types = append(types, w.Type)
	}
	return types
}

func TestAnalyze_CloseToDeadline(t *testing.T) {
	cfg := model.ValidationConfig{
		ResourceID:                "dr-a",
		PreventLastMinuteBookings: true,
		LastMinuteThresholdHours:  2,
	}
	snap := Snapshot{Rules: []model.AvailabilityRule{mondayRule(1)}, ClientHistory: 3}
	candidate := booking("", 600, 30, "x@example.com", model.StatusPending)

	tests := []struct {
		name string
		now  time.Time
		cfg  model.ValidationConfig
		want bool
	}{
		{name: "one hour before", now: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC), cfg: cfg, want: true},
		{name: "exactly at threshold", now: time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC), cfg: cfg, want: false},
		{name: "day before", now: time.Date(2024, 1, 14, 9, 0, 0, 0, time.UTC), cfg: cfg, want: false},
		{
			name: "disabled",
			now:  time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
			cfg:  model.ValidationConfig{ResourceID: "dr-a", LastMinuteThresholdHours: 2},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdvisoryAnalyzer(NewConflictValidator(), fixedClock(tt.now))
			warnings, _ := a.Analyze(candidate, snap, tt.cfg)
			if got := slices.Contains(warningTypes(warnings), model.WarningCloseToDeadline); got != tt.want {
				t.Errorf("expected close_to_deadline=%v, got %v", tt.want, warningTypes(warnings))
			}
		})
	}
}

func TestAnalyze_DeadlineUsesResourceTimezone(t *testing.T) {
	cfg := model.ValidationConfig{
		ResourceID:                "dr-a",
		PreventLastMinuteBookings: true,
		LastMinuteThresholdHours:  2,
		Timezone:                  "America/New_York",
	}
	// 10:00 in New York is 15:00 UTC, five hours after this clock.
	a := NewAdvisoryAnalyzer(nil, fixedClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)))
	warnings, _ := a.Analyze(booking("", 600, 30, "x@example.com", model.StatusPending), Snapshot{ClientHistory: 1}, cfg)

	if slices.Contains(warningTypes(warnings), model.WarningCloseToDeadline) {
		t.Errorf("expected no deadline warning, got %v", warningTypes(warnings))
	}
}

func TestAnalyze_BusyPeriod(t *testing.T) {
	var existing []model.Booking
	for i, id := range []string{"a", "b", "c", "d"} {
		existing = append(existing, booking(id, 540+i*30, 30, id+"@example.com", model.StatusConfirmed))
	}
	a := NewAdvisoryAnalyzer(nil, fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	candidate := booking("", 690, 30, "x@example.com", model.StatusPending)

	tests := []struct {
		name   string
		maxDay int
		want   bool
	}{
		{name: "at eighty percent", maxDay: 5, want: true},
		{name: "below eighty percent", maxDay: 6, want: false},
		{name: "unlimited", maxDay: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := model.ValidationConfig{ResourceID: "dr-a", MaxBookingsPerDay: tt.maxDay}
			warnings, _ := a.Analyze(candidate, Snapshot{Existing: existing, ClientHistory: 1}, cfg)
			if got := slices.Contains(warningTypes(warnings), model.WarningBusyPeriod); got != tt.want {
				t.Errorf("expected busy_period=%v, got %v", tt.want, warningTypes(warnings))
			}
		})
	}
}

func TestAnalyze_FirstTimeClient(t *testing.T) {
	a := NewAdvisoryAnalyzer(nil, fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	candidate := booking("", 600, 30, "x@example.com", model.StatusPending)

	for history, want := range map[int]bool{0: true, 2: false, -1: false} {
		warnings, _ := a.Analyze(candidate, Snapshot{ClientHistory: history}, model.ValidationConfig{})
		if got := slices.Contains(warningTypes(warnings), model.WarningFirstTimeClient); got != want {
			t.Errorf("history %d: expected first_time_client=%v, got %v", history, want, warningTypes(warnings))
		}
	}
}

func TestAnalyze_AlternativeTimes(t *testing.T) {
	a := NewAdvisoryAnalyzer(nil, fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	snap := Snapshot{
		Existing:      []model.Booking{booking("a", 600, 30, "a@example.com", model.StatusConfirmed)},
		Rules:         []model.AvailabilityRule{mondayRule(1)},
		ClientHistory: 1,
	}

	_, suggestions := a.Analyze(booking("", 660, 30, "x@example.com", model.StatusPending), snap, strictConfig())

	var starts []int
	for _, s := range suggestions {
		if s.Type != model.SuggestionAlternativeTime || s.Date != monday {
			t.Errorf("unexpected suggestion %+v", s)
		}
		starts = append(starts, s.StartTime)
	}
	want := []int{630, 690, 570}
	if !slices.Equal(starts, want) {
		t.Errorf("expected %v, got %v", want, starts)
	}
	if suggestions[0].Label != "10:30" {
		t.Errorf("expected label 10:30, got %s", suggestions[0].Label)
	}
}

func TestAnalyze_NoSuggestionsWhenSingleSlot(t *testing.T) {
	a := NewAdvisoryAnalyzer(nil, fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	rule := mondayRule(1)
	rule.EndTime = rule.StartTime + 30

	_, suggestions := a.Analyze(booking("", 540, 30, "x@example.com", model.StatusPending),
		Snapshot{Rules: []model.AvailabilityRule{rule}, ClientHistory: 1}, strictConfig())
	if len(suggestions) != 0 {
		t.Errorf("expected no suggestions, got %v", suggestions)
	}
}
