package activation

import (
	"errors"
	"fmt"
)

// ExternalActionError reports a failure inside an app-defined action
// executor. It fails the action, not the activation: sibling branches
// keep running and the activation can still end normally.
type ExternalActionError struct {
	AppID     string
	ActionKey string
	Err       error
}

func (e *ExternalActionError) Error() string {
	return fmt.Sprintf("action %s/%s failed: %v", e.AppID, e.ActionKey, e.Err)
}

func (e *ExternalActionError) Unwrap() error {
	return e.Err
}

// IsExternalActionError checks whether err came from an action executor.
func IsExternalActionError(err error) bool {
	var actionErr *ExternalActionError

	return errors.As(err, &actionErr)
}

// SchedulerError reports a failure to create or claim a durable schedule.
// The engine retries these before failing the action.
type SchedulerError struct {
	Identifier string
	Err        error
}

func (e *SchedulerError) Error() string {
	return fmt.Sprintf("schedule %s: %v", e.Identifier, e.Err)
}

func (e *SchedulerError) Unwrap() error {
	return e.Err
}
