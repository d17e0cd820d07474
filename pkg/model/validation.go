package model

import "time"

type ConflictType string

const (
	ConflictTimeOverlap          ConflictType = "time_overlap"
	ConflictCapacityExceeded     ConflictType = "capacity_exceeded"
	ConflictDuplicateBooking     ConflictType = "duplicate_booking"
	ConflictAvailabilityMismatch ConflictType = "availability_mismatch"
)

type WarningType string

const (
	WarningCloseToDeadline    WarningType = "close_to_deadline"
	WarningBusyPeriod         WarningType = "busy_period"
	WarningFirstTimeClient    WarningType = "first_time_client"
	WarningInvariantViolation WarningType = "invariant_violation"
)

type SuggestionType string

const SuggestionAlternativeTime SuggestionType = "alternative_time"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// ValidationConfig is the per-resource admission policy. Zero limits mean unlimited.
type ValidationConfig struct {
	ResourceID                string    `json:"resource_id" bson:"_id" validate:"required,min=1,max=100"`
	AllowOverlapping          bool      `json:"allow_overlapping" bson:"allow_overlapping"`
	RequireBufferTime         bool      `json:"require_buffer_time" bson:"require_buffer_time"`
	BufferTimeMinutes         int       `json:"buffer_time_minutes" bson:"buffer_time_minutes" validate:"min=0,max=480"`
	MaxBookingsPerDay         int       `json:"max_bookings_per_day" bson:"max_bookings_per_day" validate:"min=0,max=10000"`
	MaxBookingsPerSlot        int       `json:"max_bookings_per_slot" bson:"max_bookings_per_slot" validate:"min=0,max=200"`
	PreventLastMinuteBookings bool      `json:"prevent_last_minute_bookings" bson:"prevent_last_minute_bookings"`
	LastMinuteThresholdHours  int       `json:"last_minute_threshold_hours" bson:"last_minute_threshold_hours" validate:"min=0,max=720"`
	Timezone                  string    `json:"timezone,omitempty" bson:"timezone,omitempty" validate:"omitempty,timezone"`
	UpdatedAt                 time.Time `json:"updated_at" bson:"updated_at"`
}

type Conflict struct {
	Type                  ConflictType `json:"type"`
	Severity              Severity     `json:"severity"`
	Message               string       `json:"message"`
	ConflictingBooking    *Booking     `json:"conflicting_booking,omitempty"`
	SuggestedAlternatives []int        `json:"suggested_alternatives,omitempty"`
}

type Warning struct {
	Type     WarningType `json:"type"`
	Severity Severity    `json:"severity"`
	Message  string      `json:"message"`
}

type Suggestion struct {
	Type      SuggestionType `json:"type"`
	Date      string         `json:"date"`
	StartTime int            `json:"start_time"`
	Label     string         `json:"label"`
	Message   string         `json:"message"`
}

type ValidationResult struct {
	IsValid     bool         `json:"is_valid"`
	Conflicts   []Conflict   `json:"conflicts"`
	Warnings    []Warning    `json:"warnings"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Critical returns the blocking conflicts.
func (r ValidationResult) Critical() []Conflict {
	var out []Conflict
	for _, c := range r.Conflicts {
		if c.Severity == SeverityCritical {
			out = append(out, c)
		}
	}
	return out
}

type TimeSlot struct {
	Time              int          `json:"time"`
	Label             string       `json:"label"`
	Available         bool         `json:"available"`
	ConflictReason    ConflictType `json:"conflict_reason,omitempty"`
	RemainingCapacity int          `json:"remaining_capacity"`
}
