package models

import (
	"errors"
	"time"
)

// ScheduleStatus is the lifecycle of a pending-delay record. DONE and
// CANCELLED are terminal; a schedule in either state must never fire.
type ScheduleStatus string

const (
	ScheduleStatusPending   ScheduleStatus = "PENDING"
	ScheduleStatusDone      ScheduleStatus = "DONE"
	ScheduleStatusCancelled ScheduleStatus = "CANCELLED"
)

// Schedule is a durable record of a delayed resumption. Identifier is the
// deduplication key (for example trigger key plus entity id); Overrideable
// controls whether a new schedule with the same identifier replaces a
// pending one or is dropped.
type Schedule struct {
	ID                string         `json:"id"             validate:"required"`
	Identifier        string         `json:"identifier"     validate:"required"`
	Status            ScheduleStatus `json:"status"`
	ScheduleDate      time.Time      `json:"schedule_date"  validate:"required"`
	EventPayload      map[string]any `json:"event_payload,omitempty"`
	Overrideable      bool           `json:"overrideable"`
	ActivationID      string         `json:"activation_id,omitempty"`
	ScheduledActionID string         `json:"scheduled_action_id,omitempty"`
	CorrelationID     string         `json:"correlation_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

var (
	// ErrScheduleDateInPast is returned when the requested schedule date
	// precedes the creation time.
	ErrScheduleDateInPast = errors.New("schedule date must not be in the past")

	// ErrInvalidSchedule is returned when required schedule fields are missing.
	ErrInvalidSchedule = errors.New("invalid schedule configuration")
)

// NewSchedule creates a PENDING schedule, enforcing ScheduleDate >= now.
func NewSchedule(id, identifier string, scheduleDate time.Time, now time.Time) (*Schedule, error) {
	if id == "" || identifier == "" {
		return nil, ErrInvalidSchedule
	}

	if scheduleDate.Before(now) {
		return nil, ErrScheduleDateInPast
	}

	return &Schedule{
		ID:           id,
		Identifier:   identifier,
		Status:       ScheduleStatusPending,
		ScheduleDate: scheduleDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsDue reports whether a pending schedule should fire at the given time.
func (s *Schedule) IsDue(now time.Time) bool {
	return s.Status == ScheduleStatusPending && !s.ScheduleDate.After(now)
}

// Terminal reports whether the schedule can still fire.
func (s *Schedule) Terminal() bool {
	return s.Status == ScheduleStatusDone || s.Status == ScheduleStatusCancelled
}
