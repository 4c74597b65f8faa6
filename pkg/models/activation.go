package models

import (
	"fmt"
	"time"
)

// ActivationStatus is the state of one automation run. Transitions only
// move forward; terminal statuses are final.
type ActivationStatus string

const (
	ActivationStatusInitiated ActivationStatus = "INITIATED"
	ActivationStatusScheduled ActivationStatus = "SCHEDULED"
	ActivationStatusStarted   ActivationStatus = "STARTED"
	ActivationStatusEnded     ActivationStatus = "ENDED"
	ActivationStatusCancelled ActivationStatus = "CANCELLED"
	ActivationStatusFailed    ActivationStatus = "FAILED"
)

// Terminal reports whether the status is final.
func (s ActivationStatus) Terminal() bool {
	return s == ActivationStatusEnded || s == ActivationStatusCancelled || s == ActivationStatusFailed
}

var activationTransitions = map[ActivationStatus][]ActivationStatus{
	ActivationStatusInitiated: {
		ActivationStatusScheduled,
		ActivationStatusStarted,
		ActivationStatusCancelled,
		ActivationStatusFailed,
	},
	ActivationStatusScheduled: {
		ActivationStatusStarted,
		ActivationStatusCancelled,
		ActivationStatusFailed,
	},
	ActivationStatusStarted: {
		ActivationStatusEnded,
		ActivationStatusCancelled,
		ActivationStatusFailed,
	},
}

// Activation is one run instance of an automation in response to a
// trigger event. The configuration is snapshotted at creation time via
// ConfigurationCorrelationID; later automation edits do not affect it.
type Activation struct {
	ID                         string           `json:"id"`
	AutomationID               string           `json:"automation_id"`
	ConfigurationCorrelationID string           `json:"configuration_correlation_id"`
	Revision                   int64            `json:"revision"`
	Status                     ActivationStatus `json:"status"`
	TriggerKey                 string           `json:"trigger_key"`
	ExternalEntityID           string           `json:"external_entity_id,omitempty"`
	Payload                    map[string]any   `json:"payload,omitempty"`
	Output                     map[string]any   `json:"output,omitempty"`
	Error                      string           `json:"error,omitempty"`
	CreatedAt                  time.Time        `json:"created_at"`
	UpdatedAt                  time.Time        `json:"updated_at"`
	EndedAt                    *time.Time       `json:"ended_at,omitempty"`
}

// CanTransition reports whether moving to the given status is legal.
func (a *Activation) CanTransition(to ActivationStatus) bool {
	for _, allowed := range activationTransitions[a.Status] {
		if allowed == to {
			return true
		}
	}

	return false
}

// TransitionTo moves the activation forward or fails with an
// InvalidTransitionError. Timestamps are maintained here so callers only
// decide the target status.
func (a *Activation) TransitionTo(to ActivationStatus, now time.Time) error {
	if !a.CanTransition(to) {
		return &InvalidTransitionError{ActivationID: a.ID, From: a.Status, To: to}
	}

	a.Status = to
	a.UpdatedAt = now

	if to.Terminal() {
		endedAt := now
		a.EndedAt = &endedAt
	}

	return nil
}

// InvalidTransitionError reports an illegal activation status change.
type InvalidTransitionError struct {
	ActivationID string
	From         ActivationStatus
	To           ActivationStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("activation %s: illegal transition %s -> %s", e.ActivationID, e.From, e.To)
}
