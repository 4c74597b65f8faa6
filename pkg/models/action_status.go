package models

import "time"

// ActionStatusValue is the per-action execution state, tracked
// independently of the parent activation's status.
type ActionStatusValue string

const (
	ActionStatusStarted ActionStatusValue = "STARTED"
	ActionStatusEnded   ActionStatusValue = "ENDED"
	ActionStatusSkipped ActionStatusValue = "SKIPPED"
	ActionStatusFailed  ActionStatusValue = "FAILED"
)

// Terminal reports whether the action reached a final state.
func (s ActionStatusValue) Terminal() bool {
	return s == ActionStatusEnded || s == ActionStatusSkipped || s == ActionStatusFailed
}

// ActionStatus is the execution record for one action within one
// activation, keyed by (ActivationID, ActionID). ExecutionID identifies
// the in-flight run of an async app-defined action so its completion
// callback can be routed back.
type ActionStatus struct {
	ActivationID string            `json:"activation_id"`
	ActionID     string            `json:"action_id"`
	Status       ActionStatusValue `json:"status"`
	ExecutionID  string            `json:"execution_id,omitempty"`
	Output       map[string]any    `json:"output,omitempty"`
	ErrorReason  string            `json:"error_reason,omitempty"`
	// NextActionIDs lists the successors this action routed to. An ENDED
	// predecessor that did not select a successor counts as a skip
	// arrival there, which is how the untaken branch of a condition is
	// pruned at join points.
	NextActionIDs []string   `json:"next_action_ids,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// RoutedTo reports whether this record selected the given successor.
func (s *ActionStatus) RoutedTo(actionID string) bool {
	if s.Status != ActionStatusEnded {
		return false
	}

	for _, id := range s.NextActionIDs {
		if id == actionID {
			return true
		}
	}

	return false
}
