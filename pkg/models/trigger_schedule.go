package models

import (
	"time"

	"github.com/robfig/cron/v3"
)

// TriggerSchedule is a recurring cron-based trigger registration. The next
// due time is precomputed so the poller can query due entries without
// holding per-schedule timers.
type TriggerSchedule struct {
	ID             string         `json:"id"              validate:"required"`
	AutomationID   string         `json:"automation_id"   validate:"required"`
	CronExpression string         `json:"cron_expression" validate:"required"`
	EventPayload   map[string]any `json:"event_payload,omitempty"`
	NextDueAt      time.Time      `json:"next_due_at"`
	Active         bool           `json:"active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewTriggerSchedule creates an active recurring schedule with the first
// due time computed from now.
func NewTriggerSchedule(id, automationID, cronExpression string, now time.Time) (*TriggerSchedule, error) {
	ts := &TriggerSchedule{
		ID:             id,
		AutomationID:   automationID,
		CronExpression: cronExpression,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := ts.advance(now); err != nil {
		return nil, err
	}

	return ts, nil
}

// Advance recomputes NextDueAt from the given reference time.
func (ts *TriggerSchedule) Advance(now time.Time) error {
	return ts.advance(now)
}

func (ts *TriggerSchedule) advance(reference time.Time) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	schedule, err := parser.Parse(ts.CronExpression)
	if err != nil {
		return err
	}

	ts.NextDueAt = schedule.Next(reference)
	ts.UpdatedAt = reference

	return nil
}

// IsDue reports whether this recurring schedule should fire at now.
func (ts *TriggerSchedule) IsDue(now time.Time) bool {
	return ts.Active && !ts.NextDueAt.After(now)
}
