package validate

import (
	"agenda/pkg/model"
	"errors"
	"testing"
)

func TestStruct_AvailabilityRule(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	valid := model.AvailabilityRule{
		ResourceID:    "dr-a",
		DayOfWeek:     1,
		StartTime:     540,
		EndTime:       720,
		SlotDuration:  30,
		MaxConcurrent: 1,
		IsActive:      true,
	}

	tests := []struct {
		name      string
		mutate    func(r *model.AvailabilityRule)
		wantField string
	}{
		{name: "valid", mutate: func(r *model.AvailabilityRule) {}},
		{name: "end before start", mutate: func(r *model.AvailabilityRule) { r.EndTime = 500 }, wantField: "EndTime"},
		{name: "start past midnight", mutate: func(r *model.AvailabilityRule) { r.StartTime = 1440; r.EndTime = 1441 }, wantField: "StartTime"},
		{name: "day out of range", mutate: func(r *model.AvailabilityRule) { r.DayOfWeek = 7 }, wantField: "DayOfWeek"},
		{name: "slot too short", mutate: func(r *model.AvailabilityRule) { r.SlotDuration = 1 }, wantField: "SlotDuration"},
		{name: "bad exception date", mutate: func(r *model.AvailabilityRule) { r.Exceptions = []string{"15/01/2024"} }, wantField: "Exceptions[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := valid
			tt.mutate(&rule)

			err := Struct(v, &rule)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			if _, ok := verrs.Fields()[tt.wantField]; !ok {
				t.Errorf("expected error on %s, got %v", tt.wantField, verrs)
			}
		})
	}
}
