package slots

import (
	"agenda/internal/validation"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"context"
	"errors"
	"reflect"
	"testing"
)

type mockAvailability struct {
	rules []model.AvailabilityRule
	cfg   model.ValidationConfig
	err   error
}

func (m *mockAvailability) ListRules(ctx context.Context, resourceID string) ([]model.AvailabilityRule, error) {
	return m.rules, m.err
}

func (m *mockAvailability) GetConfig(ctx context.Context, resourceID string) (model.ValidationConfig, error) {
	return m.cfg, nil
}

type mockBookings struct {
	bookings []model.Booking
}

func (m *mockBookings) ListByResourceAndDate(ctx context.Context, resourceID, date string) ([]model.Booking, error) {
	return m.bookings, nil
}

func mondayRule() model.AvailabilityRule {
	return model.AvailabilityRule{
		ID:            "rule-1",
		ResourceID:    "dr-a",
		DayOfWeek:     1,
		StartTime:     540,
		EndTime:       720,
		SlotDuration:  30,
		MaxConcurrent: 2,
		IsActive:      true,
	}
}

func newGenerator(rules []model.AvailabilityRule, cfg model.ValidationConfig, bookings []model.Booking) *Generator {
	return NewGenerator(
		&mockAvailability{rules: rules, cfg: cfg},
		&mockBookings{bookings: bookings},
		validation.NewConflictValidator(),
		logger.Discard(),
	)
}

func TestGenerateSlots_StepsAndAvailability(t *testing.T) {
	existing := []model.Booking{
		{ID: "a", ResourceID: "dr-a", Date: "2024-01-15", StartTime: 600, EndTime: 630, DurationMinutes: 30, Status: model.StatusConfirmed},
		{ID: "b", ResourceID: "dr-a", Date: "2024-01-15", StartTime: 600, EndTime: 630, DurationMinutes: 30, Status: model.StatusPending},
		{ID: "c", ResourceID: "dr-a", Date: "2024-01-15", StartTime: 660, EndTime: 690, DurationMinutes: 30, Status: model.StatusConfirmed},
	}
	g := newGenerator([]model.AvailabilityRule{mondayRule()}, model.ValidationConfig{ResourceID: "dr-a", AllowOverlapping: true}, existing)

	slots, err := g.GenerateSlots(context.Background(), "dr-a", "2024-01-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var times []int
	for _, s := range slots {
		times = append(times, s.Time)
	}
	if want := []int{540, 570, 600, 630, 660, 690}; !reflect.DeepEqual(times, want) {
		t.Fatalf("expected starts %v, got %v", want, times)
	}

	byTime := map[int]model.TimeSlot{}
	for _, s := range slots {
		byTime[s.Time] = s
	}
	if s := byTime[600]; s.Available || s.ConflictReason != model.ConflictCapacityExceeded || s.RemainingCapacity != 0 {
		t.Errorf("10:00 should be full, got %+v", s)
	}
	if s := byTime[660]; !s.Available || s.RemainingCapacity != 1 {
		t.Errorf("11:00 should have one seat left, got %+v", s)
	}
	if s := byTime[540]; !s.Available || s.RemainingCapacity != 2 || s.Label != "09:00" {
		t.Errorf("09:00 should be empty, got %+v", s)
	}
}

func TestGenerateSlots_BufferStep(t *testing.T) {
	rule := mondayRule()
	rule.SlotDuration = 45
	rule.BufferTime = 15
	g := newGenerator([]model.AvailabilityRule{rule}, model.ValidationConfig{ResourceID: "dr-a"}, nil)

	slots, err := g.GenerateSlots(context.Background(), "dr-a", "2024-01-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var times []int
	for _, s := range slots {
		times = append(times, s.Time)
	}
	// 09:00, 10:00, 11:00; 12:00 would end past the window.
	if want := []int{540, 600, 660}; !reflect.DeepEqual(times, want) {
		t.Errorf("expected %v, got %v", want, times)
	}
}

func TestGenerateSlots_EmptyWhenNoRuleApplies(t *testing.T) {
	exception := mondayRule()
	exception.Exceptions = []string{"2024-01-15"}

	tests := []struct {
		name  string
		rules []model.AvailabilityRule
		date  string
	}{
		{name: "other weekday", rules: []model.AvailabilityRule{mondayRule()}, date: "2024-01-16"},
		{name: "exception date", rules: []model.AvailabilityRule{exception}, date: "2024-01-15"},
		{name: "no rules", rules: nil, date: "2024-01-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGenerator(tt.rules, model.ValidationConfig{}, nil)
			slots, err := g.GenerateSlots(context.Background(), "dr-a", tt.date)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if slots == nil || len(slots) != 0 {
				t.Errorf("expected empty non-nil slice, got %v", slots)
			}
		})
	}
}

func TestGenerateSlots_Deterministic(t *testing.T) {
	afternoon := mondayRule()
	afternoon.ID = "rule-2"
	afternoon.StartTime = 780
	afternoon.EndTime = 840
	g := newGenerator([]model.AvailabilityRule{afternoon, mondayRule()}, model.ValidationConfig{ResourceID: "dr-a"}, nil)

	first, _ := g.GenerateSlots(context.Background(), "dr-a", "2024-01-15")
	second, _ := g.GenerateSlots(context.Background(), "dr-a", "2024-01-15")
	if !reflect.DeepEqual(first, second) {
		t.Error("slot lists differ between identical calls")
	}
	for i := 1; i < len(first); i++ {
		if first[i-1].Time >= first[i].Time {
			t.Fatalf("slots not strictly ascending at %d: %v", i, first)
		}
	}
}

func TestGenerateSlots_InputErrors(t *testing.T) {
	g := newGenerator(nil, model.ValidationConfig{}, nil)

	if _, err := g.GenerateSlots(context.Background(), "dr-a", "15/01/2024"); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for bad date, got %v", err)
	}
	if _, err := g.GenerateSlots(context.Background(), "", "2024-01-15"); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for empty resource, got %v", err)
	}

	failing := NewGenerator(&mockAvailability{err: errors.New("down")}, &mockBookings{}, validation.NewConflictValidator(), logger.Discard())
	if _, err := failing.GenerateSlots(context.Background(), "dr-a", "2024-01-15"); err == nil {
		t.Error("expected store error to propagate")
	}
}
