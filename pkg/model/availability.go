package model

import (
	"slices"
	"time"
)

type AvailabilityRule struct {
	ID            string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid"`
	ResourceID    string    `json:"resource_id" bson:"resource_id" validate:"required,min=1,max=100"`
	DayOfWeek     int       `json:"day_of_week" bson:"day_of_week" validate:"min=0,max=6"`
	StartTime     int       `json:"start_time" bson:"start_time" validate:"minute_of_day"`
	EndTime       int       `json:"end_time" bson:"end_time" validate:"minute_of_day,gtfield=StartTime"`
	SlotDuration  int       `json:"slot_duration" bson:"slot_duration" validate:"required,min=5,max=1440"`
	BufferTime    int       `json:"buffer_time" bson:"buffer_time" validate:"min=0,max=480"`
	MaxConcurrent int       `json:"max_concurrent" bson:"max_concurrent" validate:"required,min=1,max=200"`
	IsActive      bool      `json:"is_active" bson:"is_active"`
	Exceptions    []string  `json:"exceptions,omitempty" bson:"exceptions" validate:"omitempty,dive,datetime=2006-01-02"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
}

type AvailabilityRuleUpdate struct {
	DayOfWeek     *int      `json:"day_of_week,omitempty" validate:"omitempty,min=0,max=6"`
	StartTime     *int      `json:"start_time,omitempty" validate:"omitempty,minute_of_day"`
	EndTime       *int      `json:"end_time,omitempty" validate:"omitempty,minute_of_day"`
	SlotDuration  *int      `json:"slot_duration,omitempty" validate:"omitempty,min=5,max=1440"`
	BufferTime    *int      `json:"buffer_time,omitempty" validate:"omitempty,min=0,max=480"`
	MaxConcurrent *int      `json:"max_concurrent,omitempty" validate:"omitempty,min=1,max=200"`
	IsActive      *bool     `json:"is_active,omitempty"`
	Exceptions    *[]string `json:"exceptions,omitempty" validate:"omitempty,dive,datetime=2006-01-02"`
}

// AppliesOn reports whether the rule produces slots on date (YYYY-MM-DD).
func (r AvailabilityRule) AppliesOn(date string) bool {
	if !r.IsActive {
		return false
	}
	d, err := ParseDate(date)
	if err != nil {
		return false
	}
	if int(d.Weekday()) != r.DayOfWeek {
		return false
	}
	return !slices.Contains(r.Exceptions, date)
}

// SlotStarts lists candidate start minutes, stepping by slot duration plus buffer.
// A start is kept only when the whole slot fits before EndTime.
func (r AvailabilityRule) SlotStarts() []int {
	if r.SlotDuration <= 0 || r.StartTime >= r.EndTime {
		return nil
	}
	step := r.SlotDuration + max(r.BufferTime, 0)
	var starts []int
	for start := r.StartTime; start+r.SlotDuration <= r.EndTime; start += step {
		starts = append(starts, start)
	}
	return starts
}

func (r AvailabilityRule) Covers(start, end int) bool {
	return r.StartTime <= start && end <= r.EndTime
}

func (r AvailabilityRule) IsSlotStart(minute int) bool {
	return slices.Contains(r.SlotStarts(), minute)
}

// RulesFor keeps the rules that apply on date, ordered by start time.
func RulesFor(rules []AvailabilityRule, date string) []AvailabilityRule {
	var applicable []AvailabilityRule
	for _, r := range rules {
		if r.AppliesOn(date) {
			applicable = append(applicable, r)
		}
	}
	slices.SortStableFunc(applicable, func(a, b AvailabilityRule) int {
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
	return applicable
}
